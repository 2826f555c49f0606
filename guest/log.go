package guest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/hostbridge/log"
)

// LogHandler implements slog.Handler by forwarding each record, encoded as a
// log.LogMessageWire, to a sink (by default the host's log_message export).
type LogHandler struct {
	opts  handlerConfig
	attrs []slog.Attr
	group string
}

// HandlerOption configures the LogHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level slog.Leveler
	sink  func(record []byte)
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
		sink:  hostLog,
	}
}

// WithLevel sets the minimum log level to report.
// Records below this level are filtered on the guest side.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSink replaces the destination of encoded records.
func WithSink(sink func(record []byte)) HandlerOption {
	return func(c *handlerConfig) {
		c.sink = sink
	}
}

// NewLogHandler creates a LogHandler with the given options.
func NewLogHandler(opts ...HandlerOption) *LogHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LogHandler{opts: cfg}
}

// Enabled reports whether the handler handles records at the given level.
func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

// Handle encodes record and hands it to the sink.
func (h *LogHandler) Handle(_ context.Context, record slog.Record) error {
	if len(h.attrs) > 0 || h.group != "" {
		flat := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
		flat.AddAttrs(h.attrs...)
		record.Attrs(func(a slog.Attr) bool {
			flat.AddAttrs(h.qualify(a))
			return true
		})
		record = flat
	}

	data, err := json.Marshal(log.NewMessage(record))
	if err != nil {
		return fmt.Errorf("encoding log record: %w", err)
	}
	h.opts.sink(data)
	return nil
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.qualify(a))
	}
	return &next
}

// WithGroup returns a handler that prefixes later attribute keys with name.
// The wire format is flat, so groups become dotted keys.
func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	next.group = h.qualifyKey(name)
	return &next
}

func (h *LogHandler) qualifyKey(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func (h *LogHandler) qualify(a slog.Attr) slog.Attr {
	a.Key = h.qualifyKey(a.Key)
	return a
}
