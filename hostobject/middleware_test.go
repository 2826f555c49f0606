package hostobject_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/hostbridge/hostobject"
	"github.com/reglet-dev/hostbridge/internal/testutil"
)

func TestPanicRecovery(t *testing.T) {
	decl := hostobject.Declare(func(b *hostobject.Builder[*counter, any]) {
		b.Use(hostobject.PanicRecovery[*counter, any]())
		b.Func("explode", func(c *counter, call hostobject.Call[any]) (any, error) {
			panic("test panic")
		})
		b.Func("fine", (*counter).increment)
	})
	rt := testutil.NewRuntime()
	_, obj := newCounter(t, decl)

	explode, err := obj.Get(rt, "explode")
	require.NoError(t, err)

	var result any
	assert.NotPanics(t, func() {
		result, err = testutil.RequireFunction(t, explode).Invoke()
	})
	assert.Nil(t, result)

	var memberErr *hostobject.MemberError
	require.ErrorAs(t, err, &memberErr)
	assert.Equal(t, "explode", memberErr.Name)
	assert.Equal(t, "test panic", memberErr.Panic)
	assert.Contains(t, err.Error(), "panic: test panic")

	fine, err := obj.Get(rt, "fine")
	require.NoError(t, err)
	assert.Equal(t, int64(1), testutil.MustInvoke(t, fine))
}

func TestPanicRecovery_ErrorValue(t *testing.T) {
	decl := hostobject.Declare(func(b *hostobject.Builder[*counter, any]) {
		b.Use(hostobject.PanicRecovery[*counter, any]())
		b.Func("explode", func(c *counter, call hostobject.Call[any]) (any, error) {
			panic(errors.New("boom"))
		})
	})
	rt := testutil.NewRuntime()
	_, obj := newCounter(t, decl)

	explode, err := obj.Get(rt, "explode")
	require.NoError(t, err)
	_, err = testutil.RequireFunction(t, explode).Invoke()
	assert.EqualError(t, err, "explode: panic: boom")
}

func TestMiddlewareOrder_FIFO(t *testing.T) {
	var callOrder []string
	trace := func(label string) hostobject.Middleware[*counter, any] {
		return func(next hostobject.Callable[*counter, any]) hostobject.Callable[*counter, any] {
			return func(c *counter, call hostobject.Call[any]) (any, error) {
				callOrder = append(callOrder, label+"-before")
				result, err := next(c, call)
				callOrder = append(callOrder, label+"-after")
				return result, err
			}
		}
	}

	decl := hostobject.Declare(func(b *hostobject.Builder[*counter, any]) {
		b.Use(trace("mw1"), trace("mw2"))
		b.Func("run", func(c *counter, call hostobject.Call[any]) (any, error) {
			callOrder = append(callOrder, "member")
			return nil, nil
		})
	})
	rt := testutil.NewRuntime()
	_, obj := newCounter(t, decl)

	run, err := obj.Get(rt, "run")
	require.NoError(t, err)
	testutil.MustInvoke(t, run)

	// FIFO order: mw1 wraps mw2 wraps member
	expected := []string{"mw1-before", "mw2-before", "member", "mw2-after", "mw1-after"}
	assert.Equal(t, expected, callOrder)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	decl := hostobject.Declare(func(b *hostobject.Builder[*counter, any]) {
		b.Use(hostobject.Logging[*counter, any](logger))
		b.Func("increment", (*counter).increment)
		b.Func("add", (*counter).add)
	})
	rt := testutil.NewRuntime()
	_, obj := newCounter(t, decl)

	inc, err := obj.Get(rt, "increment")
	require.NoError(t, err)
	testutil.MustInvoke(t, inc)
	assert.Contains(t, buf.String(), "callable completed")
	assert.Contains(t, buf.String(), "name=increment")

	add, err := obj.Get(rt, "add")
	require.NoError(t, err)
	_, err = testutil.RequireFunction(t, add).Invoke("not a number")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "callable failed")
	assert.Contains(t, buf.String(), "name=add")
}
