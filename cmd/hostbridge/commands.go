package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dop251/goja"
	"golang.org/x/term"

	"github.com/reglet-dev/hostbridge/bindings"
	"github.com/reglet-dev/hostbridge/config"
	"github.com/reglet-dev/hostbridge/host"
	"github.com/reglet-dev/hostbridge/hostobject"
	"github.com/reglet-dev/hostbridge/log"
)

// errUsage marks argument errors; the flag set has already printed usage.
var errUsage = errors.New("invalid arguments")

func newFlags(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML configuration file")
	return fs, configPath
}

// newExecutor loads the configuration and builds an executor logging to stderr.
func newExecutor(ctx context.Context, configPath string, stderr io.Writer) (*host.Executor, *config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, nil, err
		}
	}

	logger := cfg.Log.Logger(log.WithWriter(stderr))
	opts, err := host.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	e, err := host.NewExecutor(ctx, append(opts, host.WithLogger(logger))...)
	if err != nil {
		return nil, nil, err
	}

	for _, m := range cfg.Wasm.Modules {
		data, err := os.ReadFile(m.Path)
		if err != nil {
			_ = e.Close(ctx)
			return nil, nil, fmt.Errorf("loading module %s: %w", m.Name, err)
		}
		if _, err := e.LoadPlugin(ctx, m.Name, data); err != nil {
			_ = e.Close(ctx)
			return nil, nil, err
		}
		logger.Info("module loaded", "module", m.Name, "path", m.Path)
	}
	return e, cfg, nil
}

func runScript(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlags("run", stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: hostbridge run [-config file] script.js")
		return errUsage
	}

	path := fs.Arg(0)
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	e, _, err := newExecutor(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	result, err := e.RunScript(ctx, path, string(src))
	if err != nil {
		return err
	}
	return printResult(stdout, result)
}

func runREPL(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs, configPath := newFlags("repl", stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	e, _, err := newExecutor(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	interactive := false
	if f, ok := stdin.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	scanner := bufio.NewScanner(stdin)
	for n := 1; ; n++ {
		if interactive {
			fmt.Fprint(stdout, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ".exit" {
			return nil
		}

		result, err := e.RunScript(ctx, fmt.Sprintf("repl:%d", n), line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(stdout, "error:", err)
			continue
		}
		if err := printResult(stdout, result); err != nil {
			fmt.Fprintln(stdout, "error:", err)
		}
	}
}

func runWasm(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlags("wasm", stderr)
	call := fs.String("call", "", "export to call after loading")
	input := fs.String("input", "", "JSON input passed to the export")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: hostbridge wasm [-config file] [-call export] [-input json] module.wasm")
		return errUsage
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	e, _, err := newExecutor(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	plugin, err := e.LoadPlugin(ctx, "main", data)
	if err != nil {
		return err
	}
	defer plugin.Close(ctx)

	if *call == "" {
		return nil
	}
	var in []byte
	if *input != "" {
		if !json.Valid([]byte(*input)) {
			return fmt.Errorf("-input is not valid JSON")
		}
		in = []byte(*input)
	}
	out, err := plugin.Call(ctx, *call, in)
	if err != nil {
		return err
	}
	if len(out) > 0 {
		fmt.Fprintln(stdout, string(out))
	}
	return nil
}

func runSchema(stdout io.Writer) error {
	data, err := config.Schema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

// exported describes one script-visible type for inspect.
type exported struct {
	global string
	names  []string
	kind   func(name string) string
}

func describe[T any](global string, decl *hostobject.Declaration[T, goja.Value]) (exported, error) {
	exports, err := decl.Exports()
	if err != nil {
		return exported{}, err
	}
	return exported{
		global: global,
		names:  exports.Names(),
		kind: func(name string) string {
			kinds := []string{exports.Resolve(name).Kind.String()}
			if exports.Getters().Has(name) && exports.Callables().Has(name) {
				kinds = append(kinds, hostobject.KindGetter.String()+" (shadowed)")
			}
			if exports.ResolveSetter(name).Found() {
				kinds = append(kinds, hostobject.KindSetter.String())
			}
			return strings.Join(kinds, ",")
		},
	}, nil
}

func runInspect(stdout io.Writer) error {
	types := []func() (exported, error){
		func() (exported, error) { return describe("HostBridge", bindings.ModuleExports) },
		func() (exported, error) { return describe("console", bindings.ConsoleExports) },
		func() (exported, error) { return describe(host.CounterName, bindings.CounterExports) },
		func() (exported, error) { return describe("<context>", bindings.ContextExports) },
		func() (exported, error) { return describe("<sharedValue>", bindings.SharedValueExports) },
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OBJECT\tPROPERTY\tKIND")
	for _, describeType := range types {
		t, err := describeType()
		if err != nil {
			return err
		}
		for _, name := range t.names {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.global, name, t.kind(name))
		}
	}
	return w.Flush()
}

func printResult(w io.Writer, result any) error {
	if result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		_, err = fmt.Fprintf(w, "%v\n", result)
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
