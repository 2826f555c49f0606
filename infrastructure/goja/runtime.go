package goja

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"weak"

	"github.com/dop251/goja"

	"github.com/reglet-dev/hostbridge/hostobject"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime's logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithSetPolicy sets the policy applied to writes of unknown properties on
// every host object of the runtime.
func WithSetPolicy(p hostobject.SetPolicy) Option {
	return func(r *Runtime) {
		r.setPolicy = p
	}
}

// Runtime is a goja VM able to host Go objects.
// It implements hostobject.Runtime[goja.Value].
//
// Script execution is serialized: RunString and Do never enter the VM
// concurrently. Bind and Wrap do not lock the VM; call them before running
// scripts or from inside Do and exported members.
//
// Wrapped objects are tracked weakly: once the script drops a host object
// and every function read from it, the runtime forgets it.
type Runtime struct {
	vm        *goja.Runtime
	mu        sync.Mutex
	logger    *slog.Logger
	setPolicy hostobject.SetPolicy
	active    context.Context

	trackMu sync.Mutex
	objects map[weak.Pointer[goja.Object]]any
	closers map[uint64]func()
	nextID  uint64
}

var _ hostobject.Runtime[goja.Value] = (*Runtime)(nil)

// New creates a Runtime with a fresh VM.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		vm:      goja.New(),
		logger:  slog.Default(),
		objects: make(map[weak.Pointer[goja.Object]]any),
		closers: make(map[uint64]func()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Of returns the *Runtime behind rt. Members exported to this runtime receive
// it as their runtime handle.
func Of(rt hostobject.Runtime[goja.Value]) *Runtime {
	return rt.(*Runtime)
}

// VM returns the underlying goja VM.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

// Undefined implements hostobject.Runtime.
func (r *Runtime) Undefined() goja.Value {
	return goja.Undefined()
}

// NewFunction implements hostobject.Runtime. Errors returned by fn are thrown
// into the script.
func (r *Runtime) NewFunction(name string, fn hostobject.NativeFunction[goja.Value]) goja.Value {
	f := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		result, err := fn(call.This, call.Arguments)
		if err != nil {
			r.Throw(err)
		}
		if result == nil {
			return goja.Undefined()
		}
		return result
	}).(*goja.Object)
	_ = f.DefineDataProperty("name", r.vm.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	return f
}

// ToValue converts a Go value into a script value.
func (r *Runtime) ToValue(v any) goja.Value {
	return r.vm.ToValue(v)
}

// Throw raises err as a script exception. It must only be called while the VM
// is executing, e.g. from an exported member. An exception that came out of
// the VM is rethrown with its original value.
func (r *Runtime) Throw(err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex.Value())
	}
	panic(r.vm.NewGoError(err))
}

// Set installs a global.
func (r *Runtime) Set(name string, value any) error {
	return r.vm.Set(name, value)
}

// RunString evaluates src. Cancelling ctx interrupts the script.
func (r *Runtime) RunString(ctx context.Context, name, src string) (goja.Value, error) {
	var result goja.Value
	err := r.Do(ctx, func(vm *goja.Runtime) error {
		r.logger.DebugContext(ctx, "goja: running script", "script", name, "bytes", len(src))
		v, err := vm.RunScript(name, src)
		if err != nil {
			return fmt.Errorf("running %s: %w", name, err)
		}
		result = v
		return nil
	})
	return result, err
}

// Do runs fn with exclusive access to the VM. Cancelling ctx interrupts any
// script fn is running.
func (r *Runtime) Do(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(ctx.Err())
	})
	r.active = ctx
	defer func() {
		r.active = nil
		stop()
		r.vm.ClearInterrupt()
	}()

	return fn(r.vm)
}

// Context returns the context of the Do or RunString call currently executing,
// or context.Background() outside of one. Members use it to bound blocking
// work they do on behalf of the script.
func (r *Runtime) Context() context.Context {
	if r.active == nil {
		return context.Background()
	}
	return r.active
}

// Close closes every host object wrapped by the runtime. Function values the
// VM still references fail when called.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trackMu.Lock()
	closers := r.closers
	r.closers = make(map[uint64]func())
	r.objects = make(map[weak.Pointer[goja.Object]]any)
	r.trackMu.Unlock()

	for _, closeObject := range closers {
		closeObject()
	}
}

// track records a wrapped object until v and obj are both unreachable.
// obj outlives v while the script holds functions read from it, and Close
// must still reach it then.
func track[T any](r *Runtime, v *goja.Object, recv T, obj *hostobject.Object[T, goja.Value]) {
	key := weak.Make(v)
	ref := weak.Make(obj)

	r.trackMu.Lock()
	r.nextID++
	id := r.nextID
	r.objects[key] = recv
	r.closers[id] = func() {
		if o := ref.Value(); o != nil {
			o.Close()
		}
	}
	r.trackMu.Unlock()

	runtime.AddCleanup(v, r.forgetObject, key)
	runtime.AddCleanup(obj, r.forgetCloser, id)
}

func (r *Runtime) forgetObject(key weak.Pointer[goja.Object]) {
	r.trackMu.Lock()
	defer r.trackMu.Unlock()
	delete(r.objects, key)
}

func (r *Runtime) forgetCloser(id uint64) {
	r.trackMu.Lock()
	defer r.trackMu.Unlock()
	delete(r.closers, id)
}

// tracked returns the number of live wrapped objects and closers.
func (r *Runtime) tracked() (objects, closers int) {
	r.trackMu.Lock()
	defer r.trackMu.Unlock()
	return len(r.objects), len(r.closers)
}
