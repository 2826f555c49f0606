// Package goja embeds the goja JavaScript engine as a host object runtime.
//
// Host objects are installed as goja dynamic objects: property reads, writes,
// `in` checks and enumeration are answered by a hostobject.Object, so exported
// callables keep their identity (`o.f === o.f`) and getters are evaluated on
// every access.
package goja
