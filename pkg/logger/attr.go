package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// JobID records the job identifier under the key "job_id".
// If id is nil, it returns an empty Attr.
func JobID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("job_id", id)
}

// BatchID records the batch identifier under the key "batch_id".
// If id is nil, it returns an empty Attr.
func BatchID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("batch_id", id)
}

// MessageID records the provider message identifier under the key "message_id".
// If id is nil, it returns an empty Attr.
func MessageID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("message_id", id)
}

// Attempt records the attempt number and its ceiling under the key "attempt".
func Attempt(n, maxAttempts int) slog.Attr {
	return Group("attempt", slog.Int("n", n), slog.Int("max", maxAttempts))
}

// Status records a state name under the key "status".
func Status(s string) slog.Attr {
	return slog.String("status", s)
}

// Count records a quantity under the key "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Delay records a wait interval under the key "delay".
func Delay(d time.Duration) slog.Attr {
	return slog.Duration("delay", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// EventType records the event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// Path records a filesystem path under the key "path".
func Path(p string) slog.Attr {
	return slog.String("path", p)
}
