// Package testutil provides common test utilities for hostbridge tests.
package testutil

import (
	"github.com/reglet-dev/hostbridge/hostobject"
)

// undefined is the absent-property sentinel of Runtime.
type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the value Runtime reports for unknown properties.
var Undefined any = undefined{}

// Function is the function value Runtime materializes. Each call to
// NewFunction returns a distinct pointer, so identity can be checked with
// assert.Same.
type Function struct {
	Fn   hostobject.NativeFunction[any]
	Name string
}

// Invoke calls the function with a nil receiver.
func (f *Function) Invoke(args ...any) (any, error) {
	return f.Fn(nil, args)
}

// Runtime is an in-memory hostobject.Runtime[any].
type Runtime struct {
	// Created counts the function values materialized so far.
	Created int
}

// NewRuntime creates an empty Runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Undefined implements hostobject.Runtime.
func (r *Runtime) Undefined() any {
	return Undefined
}

// NewFunction implements hostobject.Runtime.
func (r *Runtime) NewFunction(name string, fn hostobject.NativeFunction[any]) any {
	r.Created++
	return &Function{Name: name, Fn: fn}
}
