package bindings

import (
	"reflect"

	"github.com/dop251/goja"
)

// checkShareable fails with ErrNotShareable if v, exported from one VM, holds
// a function or a host object anywhere inside it. Both stay bound to the VM
// that created them.
func checkShareable(v any) error {
	if boundToVM(reflect.ValueOf(v), make(map[uintptr]bool)) {
		return ErrNotShareable
	}
	return nil
}

var dynamicObjectType = reflect.TypeFor[goja.DynamicObject]()

func boundToVM(v reflect.Value, seen map[uintptr]bool) bool {
	if !v.IsValid() {
		return false
	}
	if v.Type().Implements(dynamicObjectType) {
		return true
	}
	switch v.Kind() {
	case reflect.Func:
		return true
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return false
		}
		return boundToVM(v.Elem(), seen)
	case reflect.Map:
		if v.IsNil() || seen[v.Pointer()] {
			return false
		}
		seen[v.Pointer()] = true
		iter := v.MapRange()
		for iter.Next() {
			if boundToVM(iter.Value(), seen) {
				return true
			}
		}
	case reflect.Slice:
		if v.IsNil() {
			return false
		}
		if v.Len() > 0 {
			if seen[v.Pointer()] {
				return false
			}
			seen[v.Pointer()] = true
		}
		for i := range v.Len() {
			if boundToVM(v.Index(i), seen) {
				return true
			}
		}
	case reflect.Array:
		for i := range v.Len() {
			if boundToVM(v.Index(i), seen) {
				return true
			}
		}
	}
	return false
}
