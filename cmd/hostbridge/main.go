// Command hostbridge runs scripts and wasm guests against host objects.
//
// Usage:
//
//	hostbridge run [-config file] script.js
//	hostbridge repl [-config file]
//	hostbridge wasm [-config file] [-call export] [-input json] module.wasm
//	hostbridge schema
//	hostbridge inspect
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "run":
		err = runScript(ctx, args[1:], stdout, stderr)
	case "repl":
		err = runREPL(ctx, args[1:], stdin, stdout, stderr)
	case "wasm":
		err = runWasm(ctx, args[1:], stdout, stderr)
	case "schema":
		err = runSchema(stdout)
	case "inspect":
		err = runInspect(stdout)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		usage(stderr)
		return 2
	}

	if errors.Is(err, errUsage) {
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage:
  hostbridge run [-config file] script.js
  hostbridge repl [-config file]
  hostbridge wasm [-config file] [-call export] [-input json] module.wasm
  hostbridge schema
  hostbridge inspect
`)
}
