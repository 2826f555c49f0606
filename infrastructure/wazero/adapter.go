package wazero

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/hostbridge/log"
	"github.com/reglet-dev/hostbridge/wireformat"
)

// DefaultModuleName is the host module guests import from.
const DefaultModuleName = "hostbridge"

// DefaultMaxRequestSize is the default limit for requests read from guest memory.
const DefaultMaxRequestSize = 1 << 20

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// ModuleName is the host module name (default: "hostbridge").
	ModuleName string

	// MaxRequestSize limits the size of incoming requests from guest memory.
	// Default is 1MB.
	MaxRequestSize uint32

	// Logger receives adapter diagnostics and the records guests send to
	// log_message (default: slog.Default()).
	Logger *slog.Logger

	// CustomHandlers adds exports that don't use the packed i64
	// request/response pattern.
	CustomHandlers []CustomHandler
}

// CustomHandler is a raw host function exported next to the object
// operations. Its signature is free; it does not use the JSON protocol.
type CustomHandler struct {
	// Name is the exported function name.
	Name string

	// Handler is the wazero GoModuleFunc implementation.
	Handler api.GoModuleFunc

	// ParamTypes are the WASM parameter types.
	ParamTypes []api.ValueType

	// ResultTypes are the WASM result types.
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name (default: "hostbridge").
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the maximum request size from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithLogger sets the adapter's logger.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		c.Logger = l
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:     DefaultModuleName,
		MaxRequestSize: DefaultMaxRequestSize,
		Logger:         slog.Default(),
	}
}

// RegisterWithRuntime instantiates the host module that serves objects to
// guests. Every operation in Ops is exported under its name, followed by
// log_message and any custom handlers.
//
// Object operations take a packed i64 (ptr<<32 | len) pointing at a JSON
// wireformat.ObjectRequest in guest memory. The JSON response is written into memory obtained
// from the guest's "allocate" export and returned the same way; 0 means the
// response could not be delivered.
//
// Example:
//
//	objects, _ := wazero.NewObjectSet(
//	    wazero.WithObject("counter", &bindings.Counter{}, bindings.CounterJSONExports),
//	)
//	err := wazero.RegisterWithRuntime(ctx, runtime, objects)
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, objects *ObjectSet, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)

	for _, op := range wireformat.Ops {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				handleObjectCall(ctx, mod, stack, objects, op, cfg)
			}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
			Export(string(op))
	}

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			handleLogMessage(ctx, mod, stack, cfg)
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export(wireformat.LogMessage)

	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiating host module %s: %w", cfg.ModuleName, err)
	}
	return nil
}

// readRequest reads the request a packed pointer refers to.
func readRequest(mod api.Module, packed uint64, maxRequestSize uint32) ([]byte, *wireformat.ErrorResponse) {
	ptr, length := unpackPtrLen(packed)
	if length > maxRequestSize {
		errResp := wireformat.NewValidationError(fmt.Sprintf("request size %d exceeds maximum %d bytes", length, maxRequestSize))
		return nil, &errResp
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		errResp := wireformat.NewInternalError("failed to read request from guest memory")
		return nil, &errResp
	}
	return data, nil
}

func handleObjectCall(ctx context.Context, mod api.Module, stack []uint64, objects *ObjectSet, op wireformat.Op, cfg AdapterConfig) {
	request, errResp := readRequest(mod, stack[0], cfg.MaxRequestSize)
	if errResp != nil {
		cfg.Logger.ErrorContext(ctx, "wazero: "+errResp.Message, "function", op, "guest", GuestName(ctx, mod))
		stack[0] = writeResponse(ctx, mod, errResp.ToJSON(), cfg.Logger)
		return
	}
	stack[0] = writeResponse(ctx, mod, objects.Handle(ctx, op, request), cfg.Logger)
}

func handleLogMessage(ctx context.Context, mod api.Module, stack []uint64, cfg AdapterConfig) {
	data, errResp := readRequest(mod, stack[0], cfg.MaxRequestSize)
	if errResp != nil {
		cfg.Logger.ErrorContext(ctx, "wazero: "+errResp.Message, "function", wireformat.LogMessage, "guest", GuestName(ctx, mod))
		return
	}
	msg, err := log.DecodeMessage(data)
	if err != nil {
		cfg.Logger.ErrorContext(ctx, "wazero: dropping guest log message", "guest", GuestName(ctx, mod), "error", err)
		return
	}
	log.Replay(ctx, cfg.Logger, msg, slog.String("guest", GuestName(ctx, mod)))
}

// writeResponse allocates memory in the guest and writes the response bytes.
// Returns packed ptr+len or 0 on failure.
func writeResponse(ctx context.Context, mod api.Module, data []byte, logger *slog.Logger) uint64 {
	allocateFn := mod.ExportedFunction("allocate")
	if allocateFn == nil {
		logger.ErrorContext(ctx, "wazero: guest module missing 'allocate' export")
		return 0
	}

	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil {
		logger.ErrorContext(ctx, "wazero: failed to call guest allocate", "error", err)
		return 0
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit

	if !mod.Memory().Write(ptr, data) {
		logger.ErrorContext(ctx, "wazero: failed to write response to guest memory")
		return 0
	}

	return packPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: Data length is bounded by config
}

// packPtrLen packs a pointer and length into a single i64.
// Upper 32 bits: pointer, lower 32 bits: length.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtrLen unpacks a pointer and length from a packed i64.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)           //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: Packed format stores 32-bit values
	return ptr, length
}
