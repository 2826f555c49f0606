package hostobject

// Exports is the immutable set of export tables of receiver type T.
type Exports[T, V any] struct {
	typeName  string
	callables *Table[Callable[T, V]]
	getters   *Table[Getter[T, V]]
	setters   *Table[Setter[T, V]]
	names     []string // sorted union of all three tables
}

// Resolution is the outcome of resolving a property name.
// Exactly one member field is set, matching Kind.
type Resolution[T, V any] struct {
	Kind     Kind
	Name     string
	Callable Callable[T, V]
	Getter   Getter[T, V]
	Setter   Setter[T, V]
}

// Found reports whether the name resolved to a member.
func (r Resolution[T, V]) Found() bool {
	return r.Kind != KindNotFound
}

// TypeName returns the Go type name the tables were declared for.
func (e *Exports[T, V]) TypeName() string {
	return e.typeName
}

// Callables returns the callable table.
func (e *Exports[T, V]) Callables() *Table[Callable[T, V]] {
	return e.callables
}

// Getters returns the getter table.
func (e *Exports[T, V]) Getters() *Table[Getter[T, V]] {
	return e.getters
}

// Setters returns the setter table.
func (e *Exports[T, V]) Setters() *Table[Setter[T, V]] {
	return e.setters
}

// Resolve classifies name for a property read.
// The callable table is consulted first, so a callable shadows a getter of the
// same name.
func (e *Exports[T, V]) Resolve(name string) Resolution[T, V] {
	if fn, ok := e.callables.Lookup(name); ok {
		return Resolution[T, V]{Kind: KindCallable, Name: name, Callable: fn}
	}
	if fn, ok := e.getters.Lookup(name); ok {
		return Resolution[T, V]{Kind: KindGetter, Name: name, Getter: fn}
	}
	return Resolution[T, V]{Kind: KindNotFound, Name: name}
}

// ResolveSetter classifies name for a property write. Only setters are consulted.
func (e *Exports[T, V]) ResolveSetter(name string) Resolution[T, V] {
	if fn, ok := e.setters.Lookup(name); ok {
		return Resolution[T, V]{Kind: KindSetter, Name: name, Setter: fn}
	}
	return Resolution[T, V]{Kind: KindNotFound, Name: name}
}

// Has reports whether name appears in any table.
func (e *Exports[T, V]) Has(name string) bool {
	return e.callables.Has(name) || e.getters.Has(name) || e.setters.Has(name)
}

// Names returns every exported name exactly once, sorted.
func (e *Exports[T, V]) Names() []string {
	result := make([]string, len(e.names))
	copy(result, e.names)
	return result
}
