package hostobject

import (
	"log/slog"
	"time"
)

// Middleware wraps a Callable to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
//
// Example usage:
//
//	b.Use(func(next hostobject.Callable[*Counter, goja.Value]) hostobject.Callable[*Counter, goja.Value] {
//	    return func(c *Counter, call hostobject.Call[goja.Value]) (goja.Value, error) {
//	        metrics.Inc(call.Name)
//	        return next(c, call)
//	    }
//	})
type Middleware[T, V any] func(next Callable[T, V]) Callable[T, V]

// PanicRecovery returns a middleware that converts a panicking callable into a
// *MemberError instead of unwinding through the runtime.
func PanicRecovery[T, V any]() Middleware[T, V] {
	return func(next Callable[T, V]) Callable[T, V] {
		return func(recv T, call Call[V]) (result V, err error) {
			defer func() {
				if r := recover(); r != nil {
					var zero V
					result = zero
					err = panicError(call.Name, r)
				}
			}()
			return next(recv, call)
		}
	}
}

// Logging returns a middleware that logs each callable invocation at debug
// level and failures at warn level. A nil logger means slog.Default() at the
// time of the call.
func Logging[T, V any](logger *slog.Logger) Middleware[T, V] {
	return func(next Callable[T, V]) Callable[T, V] {
		return func(recv T, call Call[V]) (V, error) {
			logger := logger
			if logger == nil {
				logger = slog.Default()
			}
			start := time.Now()
			result, err := next(recv, call)
			if err != nil {
				logger.Warn("hostobject: callable failed",
					"name", call.Name, "args", call.Len(), "error", err)
			} else {
				logger.Debug("hostobject: callable completed",
					"name", call.Name, "args", call.Len(), "duration", time.Since(start))
			}
			return result, err
		}
	}
}
