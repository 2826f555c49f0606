package log

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// LogMessageWire is the JSON wire format of a log record sent by a guest.
type LogMessageWire struct {
	Timestamp time.Time     `json:"timestamp"`
	Attrs     []LogAttrWire `json:"attrs,omitempty"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
}

// LogAttrWire represents a single slog attribute for wire transfer.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`  // "string", "int64", "uint64", "bool", "float64", "time", "duration", "error", "json", "group", "any"
	Value string `json:"value"` // String representation of the value
}

// NewMessage converts a record into its wire form.
func NewMessage(record slog.Record) LogMessageWire {
	msg := LogMessageWire{
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}
	record.Attrs(func(attr slog.Attr) bool {
		msg.Attrs = append(msg.Attrs, toLogAttrWire(attr))
		return true
	})
	return msg
}

// DecodeMessage parses a JSON encoded LogMessageWire.
func DecodeMessage(data []byte) (LogMessageWire, error) {
	var msg LogMessageWire
	if err := json.Unmarshal(data, &msg); err != nil {
		return LogMessageWire{}, fmt.Errorf("decoding log message: %w", err)
	}
	return msg, nil
}

// Replay emits msg through logger. Unknown levels are logged at Info; extra
// attrs are appended after the message's own.
func Replay(ctx context.Context, logger *slog.Logger, msg LogMessageWire, extra ...slog.Attr) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(msg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if !logger.Enabled(ctx, level) {
		return
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	record := slog.NewRecord(ts, level, msg.Message, 0)
	for _, wire := range msg.Attrs {
		record.AddAttrs(fromLogAttrWire(wire))
	}
	record.AddAttrs(extra...)
	_ = logger.Handler().Handle(ctx, record)
}

// fromLogAttrWire is the inverse of toLogAttrWire. Values that fail to parse
// are kept as strings.
func fromLogAttrWire(wire LogAttrWire) slog.Attr {
	switch wire.Type {
	case "int64":
		if n, err := strconv.ParseInt(wire.Value, 10, 64); err == nil {
			return slog.Int64(wire.Key, n)
		}
	case "uint64":
		if n, err := strconv.ParseUint(wire.Value, 10, 64); err == nil {
			return slog.Uint64(wire.Key, n)
		}
	case "bool":
		if b, err := strconv.ParseBool(wire.Value); err == nil {
			return slog.Bool(wire.Key, b)
		}
	case "float64":
		if f, err := strconv.ParseFloat(wire.Value, 64); err == nil {
			return slog.Float64(wire.Key, f)
		}
	case "time":
		if ts, err := time.Parse(time.RFC3339Nano, wire.Value); err == nil {
			return slog.Time(wire.Key, ts)
		}
	case "duration":
		if d, err := time.ParseDuration(wire.Value); err == nil {
			return slog.Duration(wire.Key, d)
		}
	case "json":
		var v any
		if err := json.Unmarshal([]byte(wire.Value), &v); err == nil {
			return slog.Any(wire.Key, v)
		}
	}
	return slog.String(wire.Key, wire.Value)
}

// toLogAttrWire converts a slog.Attr to LogAttrWire.
func toLogAttrWire(attr slog.Attr) LogAttrWire {
	wire := LogAttrWire{
		Key: attr.Key,
	}
	// Resolve the attribute value
	attr.Value = attr.Value.Resolve()

	switch attr.Value.Kind() {
	case slog.KindString:
		wire.Type = "string"
		wire.Value = attr.Value.String()
	case slog.KindInt64:
		wire.Type = "int64"
		wire.Value = strconv.FormatInt(attr.Value.Int64(), 10)
	case slog.KindUint64:
		wire.Type = "uint64"
		wire.Value = strconv.FormatUint(attr.Value.Uint64(), 10)
	case slog.KindBool:
		wire.Type = "bool"
		wire.Value = strconv.FormatBool(attr.Value.Bool())
	case slog.KindFloat64:
		wire.Type = "float64"
		wire.Value = strconv.FormatFloat(attr.Value.Float64(), 'g', -1, 64)
	case slog.KindTime:
		wire.Type = "time"
		wire.Value = attr.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		wire.Type = "duration"
		wire.Value = attr.Value.Duration().String()
	case slog.KindAny:
		if v := attr.Value.Any(); v != nil {
			switch val := v.(type) {
			case error:
				wire.Type = "error"
				wire.Value = val.Error()
			default:
				if data, err := json.Marshal(val); err == nil {
					wire.Type = "json"
					wire.Value = string(data)
				} else {
					wire.Type = "any"
					wire.Value = fmt.Sprintf("%v", val)
				}
			}
		} else {
			wire.Type = "any"
			wire.Value = "<nil>"
		}
	case slog.KindGroup:
		// The wire format is flat; groups travel as their printed form.
		wire.Type = "group"
		wire.Value = fmt.Sprintf("%v", attr.Value.Any())
	case slog.KindLogValuer:
		return toLogAttrWire(slog.Attr{Key: attr.Key, Value: attr.Value.LogValuer().LogValue()})
	default:
		wire.Type = "any"
		wire.Value = fmt.Sprintf("%v", attr.Value.Any())
	}
	return wire
}
