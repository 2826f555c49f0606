package hostobject

// callableCache memoizes the function values materialized for one Object.
// Entries live as long as the object; there is no eviction.
type callableCache[V any] struct {
	entries map[string]V
}

// getOrCreate returns the wrapper stored under name, calling create to
// materialize and store it on the first request.
func (c *callableCache[V]) getOrCreate(name string, create func() V) V {
	if fn, ok := c.entries[name]; ok {
		return fn
	}
	if c.entries == nil {
		c.entries = make(map[string]V)
	}
	fn := create()
	c.entries[name] = fn
	return fn
}

func (c *callableCache[V]) len() int {
	return len(c.entries)
}

func (c *callableCache[V]) clear() {
	c.entries = nil
}
