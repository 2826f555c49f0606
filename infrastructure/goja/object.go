package goja

import (
	"fmt"
	"weak"

	"github.com/dop251/goja"

	"github.com/reglet-dev/hostbridge/hostobject"
)

// dynamicObject answers goja's property protocol from a host object.
type dynamicObject[T any] struct {
	rt  *Runtime
	obj *hostobject.Object[T, goja.Value]
}

var _ goja.DynamicObject = (*dynamicObject[struct{}])(nil)

// Get returns nil for names the type does not export so that goja continues
// the lookup on the prototype chain (toString, hasOwnProperty, ...).
func (d *dynamicObject[T]) Get(key string) goja.Value {
	if !d.obj.Has(key) {
		return nil
	}
	v, err := d.obj.Get(d.rt, key)
	if err != nil {
		d.rt.Throw(err)
	}
	return v
}

func (d *dynamicObject[T]) Set(key string, val goja.Value) bool {
	if err := d.obj.Set(d.rt, key, val); err != nil {
		d.rt.Throw(err)
	}
	return true
}

func (d *dynamicObject[T]) Has(key string) bool {
	return d.obj.Has(key)
}

// Delete refuses: exported members are fixed by the type's declaration.
func (d *dynamicObject[T]) Delete(key string) bool {
	return false
}

func (d *dynamicObject[T]) Keys() []string {
	return d.obj.Keys()
}

// Wrap exposes recv to the runtime and returns the script value together with
// the host object backing it. The value is not installed anywhere; return it
// from a member or pass it to Set.
func Wrap[T any](rt *Runtime, recv T, decl *hostobject.Declaration[T, goja.Value]) (*goja.Object, *hostobject.Object[T, goja.Value], error) {
	obj, err := hostobject.New(recv, decl,
		hostobject.WithSetPolicy(rt.setPolicy),
		hostobject.WithLogger(rt.logger),
	)
	if err != nil {
		return nil, nil, err
	}

	v := rt.vm.NewDynamicObject(&dynamicObject[T]{rt: rt, obj: obj})
	track(rt, v, recv, obj)
	return v, obj, nil
}

// Bind wraps recv and installs it as the global name.
func Bind[T any](rt *Runtime, name string, recv T, decl *hostobject.Declaration[T, goja.Value]) (*hostobject.Object[T, goja.Value], error) {
	v, obj, err := Wrap(rt, recv, decl)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", name, err)
	}
	if err := rt.vm.Set(name, v); err != nil {
		obj.Close()
		return nil, fmt.Errorf("binding %s: %w", name, err)
	}
	rt.logger.Debug("goja: bound host object", "global", name, "type", obj.Exports().TypeName())
	return obj, nil
}

// HostObject returns the Go receiver behind a value created by Wrap or Bind.
func (r *Runtime) HostObject(v goja.Value) (any, bool) {
	o, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	r.trackMu.Lock()
	defer r.trackMu.Unlock()
	recv, ok := r.objects[weak.Make(o)]
	return recv, ok
}
