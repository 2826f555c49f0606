// Package bindings provides the host object types installed into script
// runtimes: Counter, SharedValue, Console, Context and the HostBridge module
// global that creates shared values and contexts from scripts.
package bindings
