package host_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/reglet-dev/hostbridge/config"
	"github.com/reglet-dev/hostbridge/host"
	"github.com/reglet-dev/hostbridge/hostobject"
	hostwazero "github.com/reglet-dev/hostbridge/infrastructure/wazero"
	"github.com/reglet-dev/hostbridge/wireformat"
)

// ExecutorSuite exercises an executor with one shared value.
type ExecutorSuite struct {
	suite.Suite
	ctx      context.Context
	logs     bytes.Buffer
	executor *host.Executor
}

func (s *ExecutorSuite) SetupTest() {
	s.ctx = context.Background()
	s.logs.Reset()
	logger := slog.New(slog.NewTextHandler(&s.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e, err := host.NewExecutor(s.ctx,
		host.WithLogger(logger),
		host.WithSharedValue("progress", 0),
	)
	s.Require().NoError(err)
	s.executor = e
}

func (s *ExecutorSuite) TearDownTest() {
	s.NoError(s.executor.Close(s.ctx))
}

func (s *ExecutorSuite) guest(op wireformat.Op, req wireformat.ObjectRequest) map[string]any {
	payload, err := json.Marshal(req)
	s.Require().NoError(err)
	var out map[string]any
	s.Require().NoError(json.Unmarshal(s.executor.Objects().Handle(s.ctx, op, payload), &out))
	return out
}

func (s *ExecutorSuite) TestCounterScenario() {
	got, err := s.executor.RunScript(s.ctx, "counter.js", `
		const seen = [counter.count];
		counter.increment();
		seen.push(counter.count);
		counter.increment();
		seen.push(counter.count);
		seen.join(",");
	`)
	s.Require().NoError(err)
	s.Equal("0,1,2", got)
	s.Equal(int64(2), s.executor.Counter().Count())
}

func (s *ExecutorSuite) TestCounterSharedWithGuests() {
	_, err := s.executor.RunScript(s.ctx, "inc.js", `counter.increment()`)
	s.Require().NoError(err)

	out := s.guest(wireformat.OpCall, wireformat.ObjectRequest{Object: host.CounterName, Name: "increment"})
	s.Equal(float64(2), out["value"])

	got, err := s.executor.RunScript(s.ctx, "count.js", `counter.count`)
	s.Require().NoError(err)
	s.Equal(int64(2), got)
}

func (s *ExecutorSuite) TestSharedValueAcrossSides() {
	_, err := s.executor.RunScript(s.ctx, "set.js", `progress.value = 42`)
	s.Require().NoError(err)

	out := s.guest(wireformat.OpGet, wireformat.ObjectRequest{Object: "progress", Name: "value"})
	s.Equal(float64(42), out["value"])

	s.guest(wireformat.OpSet, wireformat.ObjectRequest{Object: "progress", Name: "value", Value: "done"})
	got, err := s.executor.RunScript(s.ctx, "get.js", `progress.value`)
	s.Require().NoError(err)
	s.Equal("done", got)

	sv, ok := s.executor.Shared("progress")
	s.Require().True(ok)
	s.Equal("done", sv.Load())
}

func (s *ExecutorSuite) TestGuestObjectNames() {
	out := s.guest(wireformat.OpKeys, wireformat.ObjectRequest{})
	s.Equal([]any{"counter", "progress"}, out["value"])
}

func (s *ExecutorSuite) TestBuiltinGlobals() {
	got, err := s.executor.RunScript(s.ctx, "globals.js", `
		console.log("from script");
		[typeof HostBridge.createContext, typeof console.log].join(",");
	`)
	s.Require().NoError(err)
	s.Equal("function,function", got)
	s.Contains(s.logs.String(), `msg="from script"`)
}

func (s *ExecutorSuite) TestScriptError() {
	_, err := s.executor.RunScript(s.ctx, "boom.js", `throw new Error("boom")`)
	s.Require().Error(err)
	s.Contains(err.Error(), "boom.js")
	s.Contains(err.Error(), "boom")
}

func (s *ExecutorSuite) TestLoadPlugin_Invalid() {
	_, err := s.executor.LoadPlugin(s.ctx, "broken", []byte("not wasm"))
	s.Require().Error(err)
	s.Contains(err.Error(), "failed to instantiate module broken")
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorSuite))
}

func TestNewExecutor(t *testing.T) {
	ctx := context.Background()
	e, err := host.NewExecutor(ctx)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.NoError(t, e.Close(ctx))
}

func TestNewExecutor_ReservedName(t *testing.T) {
	_, err := host.NewExecutor(context.Background(), host.WithSharedValue("console", 1))
	assert.ErrorIs(t, err, host.ErrReservedName)
}

func TestNewExecutor_InvalidSharedName(t *testing.T) {
	_, err := host.NewExecutor(context.Background(), host.WithSharedValue("", 1))
	assert.ErrorIs(t, err, hostwazero.ErrEmptyObjectName)
}

func TestExecutor_ScriptTimeout(t *testing.T) {
	ctx := context.Background()
	e, err := host.NewExecutor(ctx, host.WithScriptTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer e.Close(ctx)

	_, err = e.RunScript(ctx, "loop.js", `for (;;) {}`)
	var interrupted *goja.InterruptedError
	assert.ErrorAs(t, err, &interrupted)
}

func TestExecutor_ScriptTimeoutReachesContexts(t *testing.T) {
	ctx := context.Background()
	e, err := host.NewExecutor(ctx, host.WithScriptTimeout(100*time.Millisecond))
	require.NoError(t, err)
	defer e.Close(ctx)

	scripts := map[string]string{
		"run.js":      `HostBridge.createContext("w").run("for (;;) {}")`,
		"function.js": `HostBridge.createRunInContextFn(() => { for (;;) {} })()`,
	}
	for name, src := range scripts {
		t.Run(name, func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				_, err := e.RunScript(ctx, name, src)
				done <- err
			}()

			select {
			case err := <-done:
				require.Error(t, err)
			case <-time.After(3 * time.Second):
				t.Fatal("script still blocked after its timeout")
			}
		})
	}
}

func TestExecutor_StrictSetPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := host.NewExecutor(ctx, host.WithSetPolicy(hostobject.SetStrict))
	require.NoError(t, err)
	defer e.Close(ctx)

	_, err = e.RunScript(ctx, "strict.js", `counter.count = 5`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such property")
}

func TestExecutor_CloseInvalidatesHeldFunctions(t *testing.T) {
	ctx := context.Background()
	e, err := host.NewExecutor(ctx)
	require.NoError(t, err)

	_, err = e.RunScript(ctx, "hold.js", `var held = counter.increment`)
	require.NoError(t, err)
	require.NoError(t, e.Close(ctx))

	_, err = e.Scripts().RunString(ctx, "stale.js", `held()`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
objects: {set_policy: strict}
shared: {b: 2, a: 1}
wasm: {module_name: bridge, allow: ["a.*", "b.*"]}
`))
	require.NoError(t, err)

	opts, err := host.FromConfig(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	e, err := host.NewExecutor(ctx, opts...)
	require.NoError(t, err)
	defer e.Close(ctx)

	assert.Equal(t, []string{"a", "b", "counter"}, e.Objects().Names())
	got, err := e.RunScript(ctx, "shared.js", `a.value + b.value`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	out := e.Objects().Handle(ctx, wireformat.OpKeys, []byte(`{"object":""}`))
	assert.JSONEq(t, `{"value":["a","b"]}`, string(out))
}

func TestExecutor_GuestPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := host.NewExecutor(ctx,
		host.WithSharedValue("progress", 0),
		host.WithGuestPolicy("counter.count", "progress.*"),
	)
	require.NoError(t, err)
	defer e.Close(ctx)

	call := func(op wireformat.Op, req wireformat.ObjectRequest) map[string]any {
		payload, err := json.Marshal(req)
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, json.Unmarshal(e.Objects().Handle(ctx, op, payload), &out))
		return out
	}

	out := call(wireformat.OpCall, wireformat.ObjectRequest{Object: host.CounterName, Name: "increment"})
	assert.Equal(t, wireformat.ErrorDenied, out["error"])
	assert.Zero(t, e.Counter().Count())

	out = call(wireformat.OpGet, wireformat.ObjectRequest{Object: host.CounterName, Name: "count"})
	assert.Equal(t, float64(0), out["value"])

	// Scripts are not subject to the guest policy.
	_, err = e.RunScript(ctx, "inc.js", `counter.increment()`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Counter().Count())
}

func TestNewExecutor_InvalidGuestPolicy(t *testing.T) {
	_, err := host.NewExecutor(context.Background(), host.WithGuestPolicy("counter.[x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, hostwazero.ErrInvalidPattern)
}
