package wazero

import (
	"encoding/json"

	"github.com/reglet-dev/hostbridge/hostobject"
	"github.com/reglet-dev/hostbridge/wireformat"
)

// Function is the value a guest sees for a callable member. It encodes as
// {"$function":"name"}; the guest invokes it with object_call.
type Function struct {
	Name string
	fn   hostobject.NativeFunction[any]
}

// MarshalJSON implements json.Marshaler.
func (f *Function) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireformat.FunctionRef{Function: f.Name})
}

// Invoke calls the function.
func (f *Function) Invoke(args []any) (any, error) {
	return f.fn(nil, args)
}

// jsonRuntime is the hostobject runtime of guests: values are whatever
// encoding/json produces and consumes. Undefined is JSON null.
type jsonRuntime struct{}

var _ hostobject.Runtime[any] = jsonRuntime{}

func (jsonRuntime) Undefined() any {
	return nil
}

func (jsonRuntime) NewFunction(name string, fn hostobject.NativeFunction[any]) any {
	return &Function{Name: name, fn: fn}
}
