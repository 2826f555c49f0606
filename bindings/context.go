package bindings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dop251/goja"

	"github.com/reglet-dev/hostbridge/hostobject"
	jsrt "github.com/reglet-dev/hostbridge/infrastructure/goja"
)

// ErrContextClosed is returned for work submitted to a closed Context.
var ErrContextClosed = errors.New("context is closed")

// Context is a named execution context: a separate script runtime driven by
// its own goroutine. Work submitted from other goroutines is queued and
// executed there, one item at a time.
type Context struct {
	name   string
	rt     *jsrt.Runtime
	logger *slog.Logger
	work   chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewContext starts a Context. The context's runtime gets its own console.
func NewContext(name string, logger *slog.Logger, opts ...jsrt.Option) (*Context, error) {
	logger = logger.With("context", name)
	rt := jsrt.New(append([]jsrt.Option{jsrt.WithLogger(logger)}, opts...)...)
	if _, err := jsrt.Bind(rt, "console", NewConsole(logger), ConsoleExports); err != nil {
		return nil, fmt.Errorf("creating context %s: %w", name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Context{
		name:   name,
		rt:     rt,
		logger: logger,
		work:   make(chan func()),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.loop()
	logger.Debug("bindings: context started")
	return c, nil
}

// Name returns the context's name.
func (c *Context) Name() string {
	return c.name
}

func (c *Context) loop() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.work:
			fn()
		case <-c.ctx.Done():
			return
		}
	}
}

// do runs fn on the context goroutine and waits for it to finish.
func (c *Context) do(ctx context.Context, fn func(ctx context.Context)) error {
	if c.ctx.Err() != nil {
		return ErrContextClosed
	}
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	unlink := context.AfterFunc(c.ctx, stop)
	defer unlink()

	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn(runCtx)
	}

	select {
	case c.work <- job:
	case <-c.ctx.Done():
		return ErrContextClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Run evaluates src inside the context and returns the exported result.
// Results holding functions or host objects other than shared values fail
// with ErrNotShareable.
func (c *Context) Run(ctx context.Context, src string) (any, error) {
	var (
		result any
		runErr error
	)
	err := c.do(ctx, func(ctx context.Context) {
		v, err := c.rt.RunString(ctx, c.name, src)
		if err != nil {
			runErr = err
			return
		}
		result, runErr = exportValue(c.rt, v)
	})
	if err != nil {
		return nil, err
	}
	return result, runErr
}

// Share installs sv as the global name inside the context.
func (c *Context) Share(ctx context.Context, name string, sv *SharedValue) error {
	var bindErr error
	err := c.do(ctx, func(context.Context) {
		_, bindErr = jsrt.Bind(c.rt, name, sv, SharedValueExports)
	})
	if err != nil {
		return err
	}
	return bindErr
}

// Compile evaluates src, the source text of a function, inside the context.
// Variables the function closed over in another runtime are not carried.
func (c *Context) Compile(ctx context.Context, src string) (*Function, error) {
	var (
		fn         goja.Callable
		compileErr error
	)
	err := c.do(ctx, func(ctx context.Context) {
		v, err := c.rt.RunString(ctx, c.name, "("+src+")")
		if err != nil {
			compileErr = err
			return
		}
		var ok bool
		if fn, ok = goja.AssertFunction(v); !ok {
			compileErr = fmt.Errorf("context %s: source does not evaluate to a function", c.name)
		}
	})
	if err != nil {
		return nil, err
	}
	if compileErr != nil {
		return nil, compileErr
	}
	return &Function{ctx: c, fn: fn}, nil
}

// Function is a function living in a Context. Calls run on the context
// goroutine.
type Function struct {
	ctx *Context
	fn  goja.Callable
}

// Call invokes the function with args, plain Go values or shared values.
func (f *Function) Call(ctx context.Context, args ...any) (any, error) {
	for _, arg := range args {
		if _, ok := arg.(*SharedValue); ok {
			continue
		}
		if err := checkShareable(arg); err != nil {
			return nil, err
		}
	}

	var (
		result  any
		callErr error
	)
	c := f.ctx
	err := c.do(ctx, func(ctx context.Context) {
		callErr = c.rt.Do(ctx, func(vm *goja.Runtime) error {
			values := make([]goja.Value, len(args))
			for i, arg := range args {
				v, err := importValue(c.rt, arg)
				if err != nil {
					return err
				}
				values[i] = v
			}
			v, err := f.fn(goja.Undefined(), values...)
			if err != nil {
				return err
			}
			result, err = exportValue(c.rt, v)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, callErr
}

// Close stops the context goroutine and closes every host object of its
// runtime. A script still running is interrupted.
func (c *Context) Close() {
	c.once.Do(func() {
		c.cancel()
		<-c.done
		c.rt.Close()
		c.logger.Debug("bindings: context closed")
	})
}

// exportValue converts v into a value another runtime can import.
func exportValue(rt *jsrt.Runtime, v goja.Value) (any, error) {
	if recv, ok := rt.HostObject(v); ok {
		if sv, ok := recv.(*SharedValue); ok {
			return sv, nil
		}
		return nil, ErrNotShareable
	}
	if v == nil {
		return nil, nil
	}
	exported := v.Export()
	if err := checkShareable(exported); err != nil {
		return nil, err
	}
	return exported, nil
}

// importValue is the inverse of exportValue. Call it on rt's goroutine.
func importValue(rt *jsrt.Runtime, v any) (goja.Value, error) {
	if sv, ok := v.(*SharedValue); ok {
		obj, _, err := jsrt.Wrap(rt, sv, SharedValueExports)
		if err != nil {
			return nil, err
		}
		return obj, nil
	}
	return rt.ToValue(v), nil
}

// crossError turns an error raised in another VM into a plain error.
// Exception values belong to the VM that threw them and cannot be rethrown
// into the caller's.
func (c *Context) crossError(err error) error {
	if errors.Is(err, ErrNotShareable) || errors.Is(err, ErrContextClosed) {
		return err
	}
	return fmt.Errorf("context %s: %s", c.name, err)
}

func (c *Context) getName(rt hostobject.Runtime[goja.Value]) (goja.Value, error) {
	return jsrt.Of(rt).ToValue(c.name), nil
}

func (c *Context) run(call hostobject.Call[goja.Value]) (goja.Value, error) {
	src := call.Argument(0)
	if goja.IsUndefined(src) {
		return nil, errors.New("run: expected source text")
	}
	caller := jsrt.Of(call.Runtime)
	result, err := c.Run(caller.Context(), src.String())
	if err != nil {
		return nil, c.crossError(err)
	}
	return importValue(caller, result)
}

func (c *Context) share(call hostobject.Call[goja.Value]) (goja.Value, error) {
	name := call.Argument(0)
	if goja.IsUndefined(name) {
		return nil, errors.New("share: expected a global name")
	}
	caller := jsrt.Of(call.Runtime)
	recv, _ := caller.HostObject(call.Argument(1))
	sv, ok := recv.(*SharedValue)
	if !ok {
		return nil, errors.New("share: expected a shared value")
	}
	return nil, c.Share(caller.Context(), name.String(), sv)
}

// wrapFunction exposes f to the caller runtime as a script function.
func (c *Context) wrapFunction(caller *jsrt.Runtime, f *Function) goja.Value {
	return caller.NewFunction("runInContext", func(_ goja.Value, args []goja.Value) (goja.Value, error) {
		in := make([]any, len(args))
		for i, arg := range args {
			v, err := exportValue(caller, arg)
			if err != nil {
				return nil, err
			}
			in[i] = v
		}
		result, err := f.Call(caller.Context(), in...)
		if err != nil {
			return nil, c.crossError(err)
		}
		return importValue(caller, result)
	})
}

// ContextExports declares Context for script runtimes.
var ContextExports = hostobject.Declare(func(b *hostobject.Builder[*Context, goja.Value]) {
	b.Use(hostobject.Logging[*Context, goja.Value](nil))
	b.Get("name", (*Context).getName)
	b.Func("run", (*Context).run)
	b.Func("share", (*Context).share)
})
