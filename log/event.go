package log

import (
	"bytes"
	"strconv"
	"time"
)

// LogEvent accumulates one structured log line. Events are pooled by the
// owning logger and written as a single JSON object when Msg is called.
// A nil *LogEvent is safe to use; every method no-ops, which is how
// level filtering short-circuits without allocation.
type LogEvent struct {
	logger Logger
	buf    bytes.Buffer
	level  Level
	fields int
}

func newEvent(logger Logger) *LogEvent {
	return &LogEvent{logger: logger}
}

// Reset prepares a pooled event for reuse.
func (e *LogEvent) Reset() {
	e.buf.Reset()
	e.fields = 0
}

func (e *LogEvent) appendKey(key string) {
	if e.fields == 0 {
		e.buf.WriteByte('{')
	} else {
		e.buf.WriteByte(',')
	}
	e.fields++
	e.buf.WriteString(strconv.Quote(key))
	e.buf.WriteByte(':')
}

// Str appends a string field.
func (e *LogEvent) Str(key, value string) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(key)
	e.buf.WriteString(strconv.Quote(value))
	return e
}

// Int appends an integer field.
func (e *LogEvent) Int(key string, value int) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(key)
	e.buf.WriteString(strconv.Itoa(value))
	return e
}

// Uint64 appends an unsigned integer field.
func (e *LogEvent) Uint64(key string, value uint64) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(key)
	e.buf.WriteString(strconv.FormatUint(value, 10))
	return e
}

// Bool appends a boolean field.
func (e *LogEvent) Bool(key string, value bool) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(key)
	e.buf.WriteString(strconv.FormatBool(value))
	return e
}

// Err appends an "error" field. A nil error appends nothing.
func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil || err == nil {
		return e
	}
	return e.Str("error", err.Error())
}

// Time appends a timestamp field in RFC3339 with millisecond precision.
func (e *LogEvent) Time(key string, t *time.Time) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(key)
	e.buf.WriteString(strconv.Quote(t.Format("2006-01-02T15:04:05.000Z07:00")))
	return e
}

// Msg terminates the event with the given message and hands the completed
// line to the owning logger for output. The event must not be used after
// Msg returns.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	e.appendKey("msg")
	e.buf.WriteString(strconv.Quote(msg))
	e.buf.WriteByte('}')
	e.buf.WriteByte('\n')
	e.logger.OnEventEnd(e)
}
