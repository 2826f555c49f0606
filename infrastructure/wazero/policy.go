package wazero

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern is returned for malformed access patterns.
var ErrInvalidPattern = errors.New("invalid access pattern")

// Policy decides which properties guests may reach. Each pattern is a glob
// over "object.property", e.g. "counter.*" or "progress.value". A nil
// Policy allows everything.
type Policy struct {
	allow []string
}

// NewPolicy compiles patterns. It fails on the first malformed one.
func NewPolicy(patterns ...string) (*Policy, error) {
	for _, p := range patterns {
		if p == "" || !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	return &Policy{allow: append([]string(nil), patterns...)}, nil
}

// Patterns returns the allow patterns.
func (p *Policy) Patterns() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.allow...)
}

// Allows reports whether object.name matches at least one pattern.
func (p *Policy) Allows(object, name string) bool {
	if p == nil {
		return true
	}
	target := object + "." + name
	for _, pattern := range p.allow {
		if matched, _ := doublestar.Match(pattern, target); matched {
			return true
		}
	}
	return false
}

// filter returns the names of object that p allows.
func (p *Policy) filter(object string, names []string) []string {
	if p == nil {
		return names
	}
	allowed := make([]string, 0, len(names))
	for _, name := range names {
		if p.Allows(object, name) {
			allowed = append(allowed, name)
		}
	}
	return allowed
}
