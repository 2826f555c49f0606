package hostobject

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
)

// Declaration holds the export tables of receiver type T.
// The tables are built on first access and shared by every Object of the type.
//
// Declarations are meant to live in package-level variables:
//
//	var counterExports = hostobject.Declare(func(b *hostobject.Builder[*Counter, goja.Value]) {
//	    b.Func("increment", (*Counter).increment)
//	    b.Get("count", (*Counter).count)
//	})
type Declaration[T, V any] struct {
	build       func(*Builder[T, V])
	once        sync.Once
	initialized atomic.Bool
	exports     *Exports[T, V]
	err         error
}

// Declare registers the build function that populates T's export tables.
// build runs at most once, on the first call to Exports.
func Declare[T, V any](build func(*Builder[T, V])) *Declaration[T, V] {
	return &Declaration[T, V]{build: build}
}

// Exports returns T's export tables, building them on first access.
// A declaration error is reported on every call; tables are never partially built.
// A panic in the build function becomes a declaration error wrapping ErrBuildPanic.
func (d *Declaration[T, V]) Exports() (*Exports[T, V], error) {
	d.once.Do(func() {
		defer d.initialized.Store(true)

		b := newBuilder[T, V]()
		defer func() {
			if r := recover(); r != nil {
				d.exports = nil
				d.err = &DeclarationError{
					Type: b.typeName,
					Err:  fmt.Errorf("%w: %v", ErrBuildPanic, r),
				}
			}
		}()
		if d.build != nil {
			d.build(b)
		}
		if len(b.errors) > 0 {
			d.err = b.errors[0] // Report first error
			return
		}
		d.exports = b.finish()
	})
	return d.exports, d.err
}

// MustExports is like Exports but panics on a declaration error.
func (d *Declaration[T, V]) MustExports() *Exports[T, V] {
	exports, err := d.Exports()
	if err != nil {
		panic(err)
	}
	return exports
}

// Initialized reports whether the tables have been built (or failed to build).
func (d *Declaration[T, V]) Initialized() bool {
	return d.initialized.Load()
}

// Builder accumulates T's members during declaration.
// Duplicate names within one category are rejected; the same name may appear
// in different categories, e.g. a getter and a setter for one property.
type Builder[T, V any] struct {
	typeName   string
	callables  *tableBuilder[Callable[T, V]]
	getters    *tableBuilder[Getter[T, V]]
	setters    *tableBuilder[Setter[T, V]]
	middleware []Middleware[T, V]
	errors     []error
}

func newBuilder[T, V any]() *Builder[T, V] {
	return &Builder[T, V]{
		typeName:  reflect.TypeFor[T]().String(),
		callables: newTableBuilder[Callable[T, V]](KindCallable),
		getters:   newTableBuilder[Getter[T, V]](KindGetter),
		setters:   newTableBuilder[Setter[T, V]](KindSetter),
	}
}

// Func exports fn as a callable property.
func (b *Builder[T, V]) Func(name string, fn Callable[T, V]) *Builder[T, V] {
	if fn == nil {
		b.fail(&DeclarationError{Kind: KindCallable, Name: name, Err: ErrNilMember})
		return b
	}
	b.fail(b.callables.add(name, fn))
	return b
}

// Get exports fn as a readable property.
func (b *Builder[T, V]) Get(name string, fn Getter[T, V]) *Builder[T, V] {
	if fn == nil {
		b.fail(&DeclarationError{Kind: KindGetter, Name: name, Err: ErrNilMember})
		return b
	}
	b.fail(b.getters.add(name, fn))
	return b
}

// Set exports fn as a writable property.
func (b *Builder[T, V]) Set(name string, fn Setter[T, V]) *Builder[T, V] {
	if fn == nil {
		b.fail(&DeclarationError{Kind: KindSetter, Name: name, Err: ErrNilMember})
		return b
	}
	b.fail(b.setters.add(name, fn))
	return b
}

// Property exports a read/write property pair.
func (b *Builder[T, V]) Property(name string, get Getter[T, V], set Setter[T, V]) *Builder[T, V] {
	return b.Get(name, get).Set(name, set)
}

// Use adds middleware wrapped around every callable of the type.
// Middleware executes in FIFO order (first added wraps outermost).
func (b *Builder[T, V]) Use(mw ...Middleware[T, V]) *Builder[T, V] {
	b.middleware = append(b.middleware, mw...)
	return b
}

func (b *Builder[T, V]) fail(err error) {
	if err == nil {
		return
	}
	var declErr *DeclarationError
	if errors.As(err, &declErr) && declErr.Type == "" {
		declErr.Type = b.typeName
	}
	b.errors = append(b.errors, err)
}

func (b *Builder[T, V]) finish() *Exports[T, V] {
	chain := func(fn Callable[T, V]) Callable[T, V] {
		// Apply middleware in reverse order so first middleware wraps outermost
		for i := len(b.middleware) - 1; i >= 0; i-- {
			fn = b.middleware[i](fn)
		}
		return fn
	}

	e := &Exports[T, V]{
		typeName:  b.typeName,
		callables: b.callables.build(chain),
		getters:   b.getters.build(nil),
		setters:   b.setters.build(nil),
	}
	e.names = unionNames(e.callables.names, e.getters.names, e.setters.names)
	return e
}

func unionNames(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, list := range lists {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
