package hostobject

import (
	"fmt"
	"log/slog"
)

// SetPolicy decides what Set does with a name that has no setter.
type SetPolicy uint8

const (
	// SetIgnore silently drops writes to unknown properties.
	SetIgnore SetPolicy = iota
	// SetStrict reports writes to unknown properties as *UnknownPropertyError.
	SetStrict
)

func (p SetPolicy) String() string {
	if p == SetStrict {
		return "strict"
	}
	return "ignore"
}

// ParseSetPolicy parses "ignore" or "strict".
func ParseSetPolicy(s string) (SetPolicy, error) {
	switch s {
	case "", "ignore":
		return SetIgnore, nil
	case "strict":
		return SetStrict, nil
	default:
		return SetIgnore, fmt.Errorf("unknown set policy %q", s)
	}
}

// Option configures an Object.
type Option func(*objectConfig)

type objectConfig struct {
	logger    *slog.Logger
	setPolicy SetPolicy
}

// WithSetPolicy sets the policy for writes to unknown properties (default SetIgnore).
func WithSetPolicy(p SetPolicy) Option {
	return func(c *objectConfig) {
		c.setPolicy = p
	}
}

// WithLogger sets the logger used for object lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *objectConfig) {
		c.logger = l
	}
}

// Object is a receiver of type T exposed to a runtime with value type V.
type Object[T, V any] struct {
	recv    T
	exports *Exports[T, V]
	cache   callableCache[V]
	cfg     objectConfig
	closed  bool
}

// New binds recv to the export tables of decl.
// It fails if the declaration itself is invalid.
func New[T, V any](recv T, decl *Declaration[T, V], opts ...Option) (*Object[T, V], error) {
	exports, err := decl.Exports()
	if err != nil {
		return nil, err
	}

	cfg := objectConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Object[T, V]{
		recv:    recv,
		exports: exports,
		cfg:     cfg,
	}, nil
}

// Receiver returns the bound Go value.
func (o *Object[T, V]) Receiver() T {
	return o.recv
}

// Exports returns the export tables of the receiver type.
func (o *Object[T, V]) Exports() *Exports[T, V] {
	return o.exports
}

// Get reads property name.
//
// A callable yields the object's function value for that name, created on the
// first read and returned unchanged afterwards. A getter is invoked on every
// read. An unknown name yields rt.Undefined() and no error.
func (o *Object[T, V]) Get(rt Runtime[V], name string) (V, error) {
	if o.closed {
		var zero V
		return zero, &StaleObjectError{Type: o.exports.typeName, Name: name}
	}

	res := o.exports.Resolve(name)
	switch res.Kind {
	case KindCallable:
		return o.cache.getOrCreate(name, func() V {
			o.cfg.logger.Debug("hostobject: materializing callable",
				"type", o.exports.typeName, "name", name)
			return rt.NewFunction(name, o.bind(rt, name, res.Callable))
		}), nil
	case KindGetter:
		return res.Getter(o.recv, rt)
	default:
		return rt.Undefined(), nil
	}
}

// Set writes property name. Only setters are consulted; writes to names
// without a setter follow the object's SetPolicy.
func (o *Object[T, V]) Set(rt Runtime[V], name string, value V) error {
	if o.closed {
		return &StaleObjectError{Type: o.exports.typeName, Name: name}
	}

	res := o.exports.ResolveSetter(name)
	if !res.Found() {
		if o.cfg.setPolicy == SetStrict {
			return &UnknownPropertyError{Type: o.exports.typeName, Name: name}
		}
		return nil
	}
	return res.Setter(o.recv, rt, value)
}

// Keys returns every exported name exactly once, in a stable order.
func (o *Object[T, V]) Keys() []string {
	return o.exports.Names()
}

// Has reports whether name is exported in any category.
func (o *Object[T, V]) Has(name string) bool {
	return o.exports.Has(name)
}

// Close releases the callable cache. Function values handed out earlier stay
// reachable from the runtime but fail with *StaleObjectError when invoked.
func (o *Object[T, V]) Close() {
	if o.closed {
		return
	}
	o.closed = true
	o.cfg.logger.Debug("hostobject: closed",
		"type", o.exports.typeName, "callables", o.cache.len())
	o.cache.clear()
}

// Closed reports whether Close has been called.
func (o *Object[T, V]) Closed() bool {
	return o.closed
}

// bind returns the function behind a materialized callable. It closes over
// the object, not the receiver, so closing the object disables it.
func (o *Object[T, V]) bind(rt Runtime[V], name string, fn Callable[T, V]) NativeFunction[V] {
	return func(this V, args []V) (V, error) {
		if o.closed {
			var zero V
			return zero, &StaleObjectError{Type: o.exports.typeName, Name: name}
		}
		return fn(o.recv, Call[V]{
			Runtime: rt,
			Name:    name,
			This:    this,
			Args:    args,
		})
	}
}
