package hostobject

// Callable is an exported function bound to the receiver type T, not to an
// instance. Method expressions such as (*Counter).Increment fit directly.
type Callable[T, V any] func(recv T, call Call[V]) (V, error)

// Getter reads an exported property. Getters run on every access.
type Getter[T, V any] func(recv T, rt Runtime[V]) (V, error)

// Setter writes an exported property.
type Setter[T, V any] func(recv T, rt Runtime[V], value V) error

// Kind classifies a property name against a type's export tables.
type Kind uint8

const (
	KindNotFound Kind = iota
	KindCallable
	KindGetter
	KindSetter
)

func (k Kind) String() string {
	switch k {
	case KindCallable:
		return "callable"
	case KindGetter:
		return "getter"
	case KindSetter:
		return "setter"
	default:
		return "not_found"
	}
}
