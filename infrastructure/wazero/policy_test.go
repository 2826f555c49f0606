package wazero

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/hostbridge/wireformat"
)

func TestPolicy_Allows(t *testing.T) {
	policy, err := NewPolicy("counter.*", "thermostat.target")
	require.NoError(t, err)

	tests := []struct {
		object string
		name   string
		want   bool
	}{
		{object: "counter", name: "increment", want: true},
		{object: "counter", name: "count", want: true},
		{object: "thermostat", name: "target", want: true},
		{object: "thermostat", name: "raise", want: false},
		{object: "progress", name: "value", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.object+"."+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Allows(tt.object, tt.name))
		})
	}

	var open *Policy
	assert.True(t, open.Allows("anything", "at_all"))
	assert.Nil(t, open.Patterns())
	assert.Equal(t, []string{"counter.*", "thermostat.target"}, policy.Patterns())
}

func TestNewPolicy_Invalid(t *testing.T) {
	for _, pattern := range []string{"", "counter.[inc"} {
		_, err := NewPolicy("counter.*", pattern)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidPattern)
	}
}

func TestObjectSet_Policy(t *testing.T) {
	policy, err := NewPolicy("counter.*", "thermostat.target")
	require.NoError(t, err)
	objects := newTestSet(t, WithPolicy(policy))

	out := handle(t, objects, wireformat.OpCall, wireformat.ObjectRequest{Object: "counter", Name: "increment"})
	assert.Equal(t, float64(1), out["value"])

	out = handle(t, objects, wireformat.OpCall, wireformat.ObjectRequest{Object: "thermostat", Name: "raise", Args: []any{2.0}})
	assert.Equal(t, wireformat.ErrorDenied, out["error"])
	assert.Equal(t, float64(403), out["code"])
	assert.Equal(t, "access denied: thermostat.raise", out["message"])

	out = handle(t, objects, wireformat.OpGet, wireformat.ObjectRequest{Object: "thermostat", Name: "target"})
	assert.Equal(t, float64(20), out["value"])

	keys := handle(t, objects, wireformat.OpKeys, wireformat.ObjectRequest{Object: "thermostat"})
	assert.Equal(t, []any{"target"}, keys["value"])
}

func TestObjectSet_PolicyHidesObjects(t *testing.T) {
	policy, err := NewPolicy("counter.count")
	require.NoError(t, err)
	objects := newTestSet(t, WithPolicy(policy))

	out := handle(t, objects, wireformat.OpKeys, wireformat.ObjectRequest{})
	assert.Equal(t, []any{"counter"}, out["value"])
	assert.Equal(t, []string{"counter", "thermostat"}, objects.Names())
}
