package bindings

import (
	"errors"
	"sync"

	"github.com/dop251/goja"

	"github.com/reglet-dev/hostbridge/hostobject"
	jsrt "github.com/reglet-dev/hostbridge/infrastructure/goja"
)

// ErrNotShareable is returned when a value holding a function or a host
// object would cross from one runtime to another.
var ErrNotShareable = errors.New("functions and host objects cannot be shared between runtimes")

// SharedValue is a value readable and writable from several runtimes.
// It holds plain Go data (what goja's Export produces) and is safe for
// concurrent use; each runtime converts it into its own value representation
// on read.
type SharedValue struct {
	mu        sync.RWMutex
	value     any
	listeners map[uint64]listener
	nextID    uint64
}

type listener struct {
	rt *jsrt.Runtime
	fn goja.Callable
}

// NewSharedValue creates a SharedValue holding initial.
func NewSharedValue(initial any) *SharedValue {
	return &SharedValue{value: initial}
}

// Load returns the current value.
func (s *SharedValue) Load() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Store replaces the current value. Listeners are not notified.
func (s *SharedValue) Store(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
}

func (s *SharedValue) addListener(rt *jsrt.Runtime, fn goja.Callable) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[uint64]listener)
	}
	s.nextID++
	s.listeners[s.nextID] = listener{rt: rt, fn: fn}
	return s.nextID
}

func (s *SharedValue) removeListener(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

// listenersOf returns the listeners registered from rt. Listeners of other
// runtimes are never called here: their VM belongs to another goroutine.
func (s *SharedValue) listenersOf(rt *jsrt.Runtime) []goja.Callable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var fns []goja.Callable
	for _, l := range s.listeners {
		if l.rt == rt {
			fns = append(fns, l.fn)
		}
	}
	return fns
}

func (s *SharedValue) getValue(rt hostobject.Runtime[goja.Value]) (goja.Value, error) {
	return jsrt.Of(rt).ToValue(s.Load()), nil
}

func (s *SharedValue) setValue(rt hostobject.Runtime[goja.Value], v goja.Value) error {
	var exported any
	if v != nil {
		exported = v.Export()
	}
	if err := checkShareable(exported); err != nil {
		return err
	}
	s.Store(exported)

	r := jsrt.Of(rt)
	for _, fn := range s.listenersOf(r) {
		if _, err := fn(goja.Undefined(), v); err != nil {
			return err
		}
	}
	return nil
}

func (s *SharedValue) listen(call hostobject.Call[goja.Value]) (goja.Value, error) {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		return nil, errors.New("addListener: expected a function")
	}
	r := jsrt.Of(call.Runtime)
	id := s.addListener(r, fn)
	return r.ToValue(func(goja.FunctionCall) goja.Value {
		s.removeListener(id)
		return goja.Undefined()
	}), nil
}

// SharedValueExports declares SharedValue for script runtimes.
var SharedValueExports = hostobject.Declare(func(b *hostobject.Builder[*SharedValue, goja.Value]) {
	b.Property("value", (*SharedValue).getValue, (*SharedValue).setValue)
	b.Func("addListener", (*SharedValue).listen)
})

// SharedValueJSONExports declares SharedValue for runtimes exchanging plain
// JSON values.
var SharedValueJSONExports = hostobject.Declare(func(b *hostobject.Builder[*SharedValue, any]) {
	b.Property("value",
		func(s *SharedValue, rt hostobject.Runtime[any]) (any, error) {
			return s.Load(), nil
		},
		func(s *SharedValue, rt hostobject.Runtime[any], v any) error {
			s.Store(v)
			return nil
		})
})
