package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RequireFunction asserts that v is a *Function and returns it.
func RequireFunction(t *testing.T, v any, msgAndArgs ...interface{}) *Function {
	t.Helper()
	fn, ok := v.(*Function)
	require.True(t, ok, msgAndArgs...)
	return fn
}

// MustInvoke calls the function value v and fails the test on error.
func MustInvoke(t *testing.T, v any, args ...any) any {
	t.Helper()
	result, err := RequireFunction(t, v).Invoke(args...)
	require.NoError(t, err)
	return result
}

// AssertKeys asserts that keys holds exactly the expected names, each once,
// in any order.
func AssertKeys(t *testing.T, expected, keys []string, msgAndArgs ...interface{}) {
	t.Helper()

	seen := make(map[string]int, len(keys))
	for _, k := range keys {
		seen[k]++
		assert.Equal(t, 1, seen[k], "key %q listed more than once", k)
	}
	assert.ElementsMatch(t, expected, keys, msgAndArgs...)
}
