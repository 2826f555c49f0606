// Package wazero serves host objects to WebAssembly guests running in wazero.
//
// Guests import a host module (default "hostbridge") exporting:
//
//   - object_get, object_set, object_call, object_keys: JSON requests in,
//     JSON responses out, both passed as packed i64 pointer+length
//   - log_message: a JSON log record replayed through slog
//
// Responses are written into memory the guest hands out from its "allocate"
// export. A callable read through object_get is returned as
// {"$function":"name"} and invoked with object_call.
//
// An optional Policy limits guests to properties matching glob patterns such
// as "counter.*".
//
// # Basic Usage
//
//	objects, err := wazero.NewObjectSet(
//	    wazero.WithObject("counter", &bindings.Counter{}, bindings.CounterJSONExports),
//	)
//	if err != nil {
//	    return err
//	}
//	runtime := wazero.NewRuntime(ctx)
//	err = wazero.RegisterWithRuntime(ctx, runtime, objects)
package wazero
