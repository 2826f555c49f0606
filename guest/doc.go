// Package guest is the wasm side of hostbridge: Go programs compiled for
// wasip1 use it to reach the host objects an Executor serves.
//
//	n, err := guest.Call("counter", "increment")
//	count, err := guest.Get("counter", "count")
//
// Values travel as JSON; decode them with encoding/json. A callable read with
// Get decodes as a wireformat.FunctionRef.
//
// Inside a guest, importing the package also installs a slog handler that
// forwards records to the host's log_message export.
//
// The imports are bound to the host module "hostbridge" at compile time; the
// host must keep its default module name for these guests.
package guest
