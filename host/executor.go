package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/reglet-dev/hostbridge/bindings"
	jsrt "github.com/reglet-dev/hostbridge/infrastructure/goja"
	hostwazero "github.com/reglet-dev/hostbridge/infrastructure/wazero"
)

// CounterName is the global (and guest object) name of the executor's Counter.
const CounterName = "counter"

// reservedNames cannot be used for shared values.
var reservedNames = []string{"HostBridge", "console", CounterName}

// ErrReservedName is returned for shared values named like a built-in global.
var ErrReservedName = errors.New("name is reserved")

// Executor runs scripts and wasm guests against one set of host objects.
type Executor struct {
	cfg     executorConfig
	scripts *jsrt.Runtime
	module  *bindings.Module
	counter *bindings.Counter
	shared  map[string]*bindings.SharedValue
	objects *hostwazero.ObjectSet
	runtime wazero.Runtime
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Executor{
		cfg:     cfg,
		counter: &bindings.Counter{},
		shared:  make(map[string]*bindings.SharedValue, len(cfg.shared)),
	}
	if err := e.initScripts(); err != nil {
		e.scripts.Close()
		e.module.Close()
		return nil, err
	}
	if err := e.initWasm(ctx); err != nil {
		e.scripts.Close()
		e.module.Close()
		return nil, err
	}

	cfg.logger.Debug("host: executor ready",
		"shared", cfg.sharedOrder,
		"module", cfg.moduleName,
		"set_policy", cfg.setPolicy)
	return e, nil
}

func (e *Executor) initScripts() error {
	e.scripts = jsrt.New(
		jsrt.WithLogger(e.cfg.logger),
		jsrt.WithSetPolicy(e.cfg.setPolicy),
	)
	e.module = bindings.NewModule(e.cfg.logger, jsrt.WithSetPolicy(e.cfg.setPolicy))
	if err := bindings.Install(e.scripts, e.module); err != nil {
		return err
	}
	if _, err := jsrt.Bind(e.scripts, CounterName, e.counter, bindings.CounterExports); err != nil {
		return err
	}

	for _, name := range e.cfg.sharedOrder {
		if slices.Contains(reservedNames, name) {
			return fmt.Errorf("shared value %s: %w", name, ErrReservedName)
		}
		sv := bindings.NewSharedValue(e.cfg.shared[name])
		if _, err := jsrt.Bind(e.scripts, name, sv, bindings.SharedValueExports); err != nil {
			return err
		}
		e.shared[name] = sv
	}
	return nil
}

func (e *Executor) initWasm(ctx context.Context) error {
	objectOpts := []hostwazero.ObjectOption{
		hostwazero.WithSetPolicy(e.cfg.setPolicy),
		hostwazero.WithObjectLogger(e.cfg.logger),
		hostwazero.WithObject(CounterName, e.counter, bindings.CounterJSONExports),
	}
	for _, name := range e.cfg.sharedOrder {
		objectOpts = append(objectOpts, hostwazero.WithObject(name, e.shared[name], bindings.SharedValueJSONExports))
	}
	if len(e.cfg.allow) > 0 {
		policy, err := hostwazero.NewPolicy(e.cfg.allow...)
		if err != nil {
			return fmt.Errorf("guest policy: %w", err)
		}
		objectOpts = append(objectOpts, hostwazero.WithPolicy(policy))
	}
	objects, err := hostwazero.NewObjectSet(objectOpts...)
	if err != nil {
		return fmt.Errorf("failed to create object set: %w", err)
	}
	e.objects = objects

	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	adapterOpts := []hostwazero.AdapterOption{
		hostwazero.WithModuleName(e.cfg.moduleName),
		hostwazero.WithMaxRequestSize(e.cfg.maxRequestSize),
		hostwazero.WithLogger(e.cfg.logger),
	}
	for _, h := range e.cfg.hostFunctions {
		adapterOpts = append(adapterOpts, hostwazero.WithCustomHandler(h))
	}
	err = hostwazero.RegisterWithRuntime(ctx, rt, objects, adapterOpts...)
	if err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("failed to register host objects: %w", err)
	}
	e.runtime = rt
	return nil
}

// Scripts returns the script runtime.
func (e *Executor) Scripts() *jsrt.Runtime {
	return e.scripts
}

// Objects returns the objects served to guests.
func (e *Executor) Objects() *hostwazero.ObjectSet {
	return e.objects
}

// Counter returns the executor's Counter.
func (e *Executor) Counter() *bindings.Counter {
	return e.counter
}

// Shared returns the shared value declared under name.
func (e *Executor) Shared(name string) (*bindings.SharedValue, bool) {
	sv, ok := e.shared[name]
	return sv, ok
}

// RunScript evaluates src and returns its exported result. The configured
// script timeout applies on top of ctx.
func (e *Executor) RunScript(ctx context.Context, name, src string) (any, error) {
	if e.cfg.scriptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.scriptTimeout)
		defer cancel()
	}
	v, err := e.scripts.RunString(ctx, name, src)
	if err != nil {
		return nil, err
	}
	return v.Export(), nil
}

// Close releases resources held by the executor. Host objects are closed
// first, so functions scripts or guests still hold fail when called.
func (e *Executor) Close(ctx context.Context) error {
	e.module.Close()
	e.scripts.Close()
	e.objects.Close()
	return e.runtime.Close(ctx)
}

// PluginInstance represents an instantiated wasm guest.
type PluginInstance struct {
	name   string
	module api.Module
}

// LoadPlugin instantiates a wasm guest under name. Reactor guests are
// initialized through their _initialize export.
func (e *Executor) LoadPlugin(ctx context.Context, name string, wasmBytes []byte) (*PluginInstance, error) {
	ctx = hostwazero.WithGuestName(ctx, name)
	modCfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize")

	mod, err := e.runtime.InstantiateWithConfig(ctx, wasmBytes, modCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module %s: %w", name, err)
	}
	e.cfg.logger.Debug("host: plugin loaded", "plugin", name, "exports", len(mod.ExportedFunctionDefinitions()))
	return &PluginInstance{name: name, module: mod}, nil
}

// Module returns the instantiated guest module.
func (p *PluginInstance) Module() api.Module {
	return p.module
}

// Name returns the name the plugin was loaded under.
func (p *PluginInstance) Name() string {
	return p.name
}

// Call invokes a guest export that takes a packed JSON input and returns a
// packed JSON output. A nil input calls the export without arguments.
func (p *PluginInstance) Call(ctx context.Context, export string, input []byte) ([]byte, error) {
	ctx = hostwazero.WithGuestName(ctx, p.name)
	packed, err := p.callRaw(ctx, export, input)
	if err != nil {
		return nil, err
	}
	return p.readPacked(ctx, packed)
}

// CallJSON marshals in, calls export and unmarshals its output into out.
func (p *PluginInstance) CallJSON(ctx context.Context, export string, in, out any) error {
	input, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding input for %s: %w", export, err)
	}
	data, err := p.Call(ctx, export, input)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding output of %s: %w", export, err)
	}
	return nil
}

// Close closes the guest module.
func (p *PluginInstance) Close(ctx context.Context) error {
	return p.module.Close(ctx)
}

func (p *PluginInstance) callRaw(ctx context.Context, name string, input []byte) (uint64, error) {
	f := p.module.ExportedFunction(name)
	if f == nil {
		return 0, fmt.Errorf("export %q not found", name)
	}

	var results []uint64
	var err error

	if input == nil {
		results, err = f.Call(ctx)
	} else {
		allocate := p.module.ExportedFunction("allocate")
		if allocate == nil {
			return 0, fmt.Errorf("guest does not export 'allocate'")
		}
		resAlloc, errAlloc := allocate.Call(ctx, uint64(len(input)))
		if errAlloc != nil {
			return 0, fmt.Errorf("failed to allocate in guest: %w", errAlloc)
		}
		if len(resAlloc) == 0 {
			return 0, fmt.Errorf("allocate returned no results")
		}
		ptr := uint32(resAlloc[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
		if !p.module.Memory().Write(ptr, input) {
			return 0, fmt.Errorf("failed to write input to guest memory")
		}
		results, err = f.Call(ctx, uint64(ptr)<<32|uint64(len(input)))
	}

	if err != nil {
		return 0, fmt.Errorf("calling %s: %w", name, err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

func (p *PluginInstance) readPacked(ctx context.Context, packed uint64) ([]byte, error) {
	ptr := uint32(packed >> 32) //nolint:gosec // G115: Packed format stores 32-bit values
	length := uint32(packed)    //nolint:gosec // G115: Packed format stores 32-bit values
	if length == 0 {
		return nil, nil
	}
	data, ok := p.module.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("failed to read response from memory")
	}
	// Memory views are invalidated by the guest's next allocation.
	out := make([]byte, length)
	copy(out, data)
	if deallocate := p.module.ExportedFunction("deallocate"); deallocate != nil {
		if _, err := deallocate.Call(ctx, uint64(ptr), uint64(length)); err != nil {
			return nil, fmt.Errorf("releasing response buffer: %w", err)
		}
	}
	return out, nil
}
