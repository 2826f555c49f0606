package guest_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/hostbridge/bindings"
	"github.com/reglet-dev/hostbridge/guest"
	hostwazero "github.com/reglet-dev/hostbridge/infrastructure/wazero"
	"github.com/reglet-dev/hostbridge/wireformat"
)

// newClient returns a client wired straight to an in-process object set.
func newClient(t *testing.T) (*guest.Client, *bindings.Counter, *bindings.SharedValue) {
	t.Helper()
	counter := &bindings.Counter{}
	progress := bindings.NewSharedValue(float64(0))

	objects, err := hostwazero.NewObjectSet(
		hostwazero.WithObject("counter", counter, bindings.CounterJSONExports),
		hostwazero.WithObject("progress", progress, bindings.SharedValueJSONExports),
	)
	require.NoError(t, err)
	t.Cleanup(objects.Close)

	client := guest.NewClient(func(op wireformat.Op, request []byte) []byte {
		return objects.Handle(context.Background(), op, request)
	})
	return client, counter, progress
}

func TestClient_CounterScenario(t *testing.T) {
	client, counter, _ := newClient(t)

	raw, err := client.Get("counter", "count")
	require.NoError(t, err)
	assert.JSONEq(t, "0", string(raw))

	raw, err = client.Get("counter", "increment")
	require.NoError(t, err)
	name, ok := guest.FunctionName(raw)
	require.True(t, ok)
	assert.Equal(t, "increment", name)

	for want := 1; want <= 2; want++ {
		raw, err = client.Call("counter", name)
		require.NoError(t, err)
		var n int
		require.NoError(t, json.Unmarshal(raw, &n))
		assert.Equal(t, want, n)
	}
	assert.Equal(t, int64(2), counter.Count())

	keys, err := client.Keys("counter")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"count", "increment"}, keys)
}

func TestClient_SetSharedValue(t *testing.T) {
	client, _, progress := newClient(t)

	require.NoError(t, client.Set("progress", "value", 0.5))
	assert.Equal(t, 0.5, progress.Load())

	raw, err := client.Get("progress", "value")
	require.NoError(t, err)
	assert.JSONEq(t, "0.5", string(raw))

	_, ok := guest.FunctionName(raw)
	assert.False(t, ok)
}

func TestClient_Objects(t *testing.T) {
	client, _, _ := newClient(t)

	names, err := client.Objects()
	require.NoError(t, err)
	assert.Equal(t, []string{"counter", "progress"}, names)
}

func TestClient_Errors(t *testing.T) {
	client, _, _ := newClient(t)

	_, err := client.Get("toaster", "power")
	require.Error(t, err)
	assert.True(t, guest.IsNotFound(err))
	assert.Contains(t, err.Error(), "(404)")

	_, err = client.Call("counter", "count")
	require.Error(t, err)
	assert.False(t, guest.IsNotFound(err))
	var hostErr *guest.Error
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, wireformat.ErrorValidation, hostErr.Kind)
	assert.Equal(t, 400, hostErr.Code)
}

// MockTransport records the requests a client sends.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(op wireformat.Op, request []byte) []byte {
	args := m.Called(op, string(request))
	return []byte(args.String(0))
}

func TestClient_Requests(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", wireformat.OpSet, `{"object":"progress","name":"value","value":"done"}`).
		Return(`{"value":null}`).Once()
	transport.On("Send", wireformat.OpCall, `{"object":"counter","name":"add","args":[2,"x"]}`).
		Return(`{"value":7}`).Once()
	transport.On("Send", wireformat.OpKeys, `{"object":""}`).
		Return(`{"value":["counter"]}`).Once()

	client := guest.NewClient(transport.Send)

	require.NoError(t, client.Set("progress", "value", "done"))

	raw, err := client.Call("counter", "add", 2, "x")
	require.NoError(t, err)
	assert.JSONEq(t, "7", string(raw))

	names, err := client.Objects()
	require.NoError(t, err)
	assert.Equal(t, []string{"counter"}, names)

	transport.AssertExpectations(t)
}

func TestClient_BadResponse(t *testing.T) {
	client := guest.NewClient(func(wireformat.Op, []byte) []byte {
		return []byte("not json")
	})

	_, err := client.Get("counter", "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding object_get response")
}

func TestDefault_OutsideGuest(t *testing.T) {
	_, err := guest.Get("counter", "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only available inside a wasm guest")
}
