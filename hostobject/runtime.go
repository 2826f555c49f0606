package hostobject

// Runtime is the part of an embedding runtime the bridge needs.
// V is the runtime's dynamic value type; the bridge never inspects it.
type Runtime[V any] interface {
	// Undefined returns the value reported for a property that does not exist.
	Undefined() V

	// NewFunction materializes a runtime function value that forwards to fn.
	// Every call must return a new, distinct function value.
	NewFunction(name string, fn NativeFunction[V]) V
}

// NativeFunction is the Go side of a runtime function value.
// this is the receiver the script invoked the function on.
type NativeFunction[V any] func(this V, args []V) (V, error)

// Call describes a single invocation of an exported callable.
type Call[V any] struct {
	// Runtime is the runtime the call originates from.
	Runtime Runtime[V]

	// Name is the property name the callable was read through.
	Name string

	// This is the script-side receiver of the call.
	This V

	// Args holds the call arguments in order.
	Args []V
}

// Argument returns the i-th argument, or the runtime's undefined value when
// fewer arguments were passed.
func (c Call[V]) Argument(i int) V {
	if i >= 0 && i < len(c.Args) {
		return c.Args[i]
	}
	return c.Runtime.Undefined()
}

// Len returns the number of arguments passed.
func (c Call[V]) Len() int {
	return len(c.Args)
}
