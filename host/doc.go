// Package host runs scripts and WebAssembly guests against one set of host
// objects.
//
// An Executor owns a goja runtime with the HostBridge and console globals
// installed, and a wazero runtime whose guests import the same objects from
// the "hostbridge" host module. Shared values configured on the executor are
// visible on both sides: as globals to scripts and as named objects to guests.
package host
