package bindings

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dop251/goja"

	"github.com/reglet-dev/hostbridge/hostobject"
	jsrt "github.com/reglet-dev/hostbridge/infrastructure/goja"
)

// Version is reported by HostBridge.version.
const Version = "0.1.0"

// Module is the HostBridge global: the script-side factory for shared values
// and contexts. It owns the contexts it creates.
type Module struct {
	logger      *slog.Logger
	contextOpts []jsrt.Option

	mu       sync.Mutex
	contexts []*Context
	fallback *Context
}

// DefaultContextName names the context createRunInContextFn uses when the
// script passes none.
const DefaultContextName = "default"

// NewModule creates a Module. opts apply to the runtime of every context the
// module creates.
func NewModule(logger *slog.Logger, opts ...jsrt.Option) *Module {
	return &Module{logger: logger, contextOpts: opts}
}

// Contexts returns the contexts created so far.
func (m *Module) Contexts() []*Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Context(nil), m.contexts...)
}

// Close closes every context created by the module.
func (m *Module) Close() {
	m.mu.Lock()
	contexts := m.contexts
	m.contexts = nil
	m.fallback = nil
	m.mu.Unlock()

	for _, c := range contexts {
		c.Close()
	}
}

func (m *Module) createSharedValue(call hostobject.Call[goja.Value]) (goja.Value, error) {
	initial := call.Argument(0).Export()
	if err := checkShareable(initial); err != nil {
		return nil, err
	}
	obj, _, err := jsrt.Wrap(jsrt.Of(call.Runtime), NewSharedValue(initial), SharedValueExports)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (m *Module) createContext(call hostobject.Call[goja.Value]) (goja.Value, error) {
	name := call.Argument(0)
	if goja.IsUndefined(name) || name.String() == "" {
		return nil, errors.New("createContext: expected a context name")
	}

	c, err := NewContext(name.String(), m.logger, m.contextOpts...)
	if err != nil {
		return nil, err
	}
	obj, _, err := jsrt.Wrap(jsrt.Of(call.Runtime), c, ContextExports)
	if err != nil {
		c.Close()
		return nil, err
	}

	m.mu.Lock()
	m.contexts = append(m.contexts, c)
	m.mu.Unlock()
	return obj, nil
}

// defaultContext returns the context shared by createRunInContextFn calls
// without an explicit context, starting it on first use.
func (m *Module) defaultContext() (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fallback != nil {
		return m.fallback, nil
	}
	c, err := NewContext(DefaultContextName, m.logger, m.contextOpts...)
	if err != nil {
		return nil, err
	}
	m.fallback = c
	m.contexts = append(m.contexts, c)
	return c, nil
}

func (m *Module) createRunInContextFn(call hostobject.Call[goja.Value]) (goja.Value, error) {
	fn := call.Argument(0)
	if _, ok := goja.AssertFunction(fn); !ok {
		return nil, errors.New("createRunInContextFn: expected a function")
	}
	caller := jsrt.Of(call.Runtime)

	var c *Context
	if target := call.Argument(1); goja.IsUndefined(target) || goja.IsNull(target) {
		var err error
		if c, err = m.defaultContext(); err != nil {
			return nil, err
		}
	} else {
		recv, _ := caller.HostObject(target)
		var ok bool
		if c, ok = recv.(*Context); !ok {
			return nil, errors.New("createRunInContextFn: expected a context")
		}
	}

	f, err := c.Compile(caller.Context(), fn.String())
	if err != nil {
		return nil, c.crossError(err)
	}
	return c.wrapFunction(caller, f), nil
}

func (m *Module) version(rt hostobject.Runtime[goja.Value]) (goja.Value, error) {
	return jsrt.Of(rt).ToValue(Version), nil
}

// ModuleExports declares Module for script runtimes.
var ModuleExports = hostobject.Declare(func(b *hostobject.Builder[*Module, goja.Value]) {
	b.Use(hostobject.PanicRecovery[*Module, goja.Value]())
	b.Func("createSharedValue", (*Module).createSharedValue)
	b.Func("createContext", (*Module).createContext)
	b.Func("createRunInContextFn", (*Module).createRunInContextFn)
	b.Get("version", (*Module).version)
})

// Install binds m as the HostBridge global and a Console as the console
// global of rt.
func Install(rt *jsrt.Runtime, m *Module) error {
	if _, err := jsrt.Bind(rt, "HostBridge", m, ModuleExports); err != nil {
		return fmt.Errorf("installing bindings: %w", err)
	}
	if _, err := jsrt.Bind(rt, "console", NewConsole(rt.Logger()), ConsoleExports); err != nil {
		return fmt.Errorf("installing bindings: %w", err)
	}
	return nil
}
