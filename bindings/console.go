package bindings

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dop251/goja"

	"github.com/reglet-dev/hostbridge/hostobject"
)

// Console routes script logging to a slog.Logger.
type Console struct {
	logger *slog.Logger
}

// NewConsole creates a Console writing to logger.
func NewConsole(logger *slog.Logger) *Console {
	return &Console{logger: logger}
}

// logAt returns a callable logging its arguments, space separated, at level.
func logAt(level slog.Level) hostobject.Callable[*Console, goja.Value] {
	return func(c *Console, call hostobject.Call[goja.Value]) (goja.Value, error) {
		parts := make([]string, len(call.Args))
		for i, arg := range call.Args {
			parts[i] = arg.String()
		}
		c.logger.Log(context.Background(), level, strings.Join(parts, " "), "source", "script")
		return nil, nil
	}
}

// ConsoleExports declares Console for script runtimes.
var ConsoleExports = hostobject.Declare(func(b *hostobject.Builder[*Console, goja.Value]) {
	b.Func("log", logAt(slog.LevelInfo))
	b.Func("info", logAt(slog.LevelInfo))
	b.Func("debug", logAt(slog.LevelDebug))
	b.Func("warn", logAt(slog.LevelWarn))
	b.Func("error", logAt(slog.LevelError))
})
