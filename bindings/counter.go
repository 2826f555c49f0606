package bindings

import (
	"sync/atomic"

	"github.com/dop251/goja"

	"github.com/reglet-dev/hostbridge/hostobject"
	jsrt "github.com/reglet-dev/hostbridge/infrastructure/goja"
)

// Counter is a minimal host object: a readable count and an increment function.
// It is safe to share between runtimes.
type Counter struct {
	n atomic.Int64
}

// Increment adds one and returns the new count.
func (c *Counter) Increment() int64 {
	return c.n.Add(1)
}

// Count returns the current count.
func (c *Counter) Count() int64 {
	return c.n.Load()
}

// CounterExports declares Counter for script runtimes.
var CounterExports = hostobject.Declare(func(b *hostobject.Builder[*Counter, goja.Value]) {
	b.Func("increment", func(c *Counter, call hostobject.Call[goja.Value]) (goja.Value, error) {
		return jsrt.Of(call.Runtime).ToValue(c.Increment()), nil
	})
	b.Get("count", func(c *Counter, rt hostobject.Runtime[goja.Value]) (goja.Value, error) {
		return jsrt.Of(rt).ToValue(c.Count()), nil
	})
})

// CounterJSONExports declares Counter for runtimes exchanging plain JSON values.
var CounterJSONExports = hostobject.Declare(func(b *hostobject.Builder[*Counter, any]) {
	b.Use(hostobject.Logging[*Counter, any](nil))
	b.Func("increment", func(c *Counter, call hostobject.Call[any]) (any, error) {
		return c.Increment(), nil
	})
	b.Get("count", func(c *Counter, rt hostobject.Runtime[any]) (any, error) {
		return c.Count(), nil
	})
})
