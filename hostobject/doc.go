// Package hostobject exposes Go values to an embedded dynamic-language runtime
// as property-bearing objects.
//
// A receiver type declares its exported members once through Declare: callables,
// property getters and property setters, each keyed by the property name the
// script sees. The resulting export tables are built lazily on first use and
// shared by every instance of the type.
//
// An Object binds one receiver to its type's tables and answers the three
// operations an embedding runtime issues against a host object: Get, Set and
// Keys. Callables read through Get are materialized once per object and name,
// so scripts observe a stable function identity across repeated reads.
//
// The package has no dependency on a particular engine. The runtime's value type
// is the type parameter V and the engine is reached through the Runtime
// interface; see infrastructure/goja and infrastructure/wazero for adapters.
//
// Objects are not safe for concurrent use. All access to an Object must be
// serialized onto the goroutine driving its runtime.
package hostobject
