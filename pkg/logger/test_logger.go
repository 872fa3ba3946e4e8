package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger captures log entries in memory for assertions in tests.
// Derived loggers (WithField etc.) share the parent's entry sink.
type TestLogger struct {
	sink   *entrySink
	fields map[string]interface{}
	err    error
	nop    *zerolog.Logger
}

// Entry is one captured log call
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Err     error
}

type entrySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewTestLogger creates a test logger with an empty sink
func NewTestLogger() *TestLogger {
	nop := zerolog.Nop()
	return &TestLogger{
		sink: &entrySink{},
		nop:  &nop,
	}
}

func (l *TestLogger) record(level, msg string, extra map[string]interface{}) {
	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.entries = append(l.sink.entries, Entry{
		Level:   level,
		Message: msg,
		Fields:  fields,
		Err:     l.err,
	})
}

func (l *TestLogger) Debug(msg string) { l.record("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.record("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.record("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.record("ERROR", msg, nil) }
func (l *TestLogger) Fatal(msg string) { l.record("FATAL", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.record("DEBUG", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.record("INFO", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.record("WARN", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.record("ERROR", msg, fields)
}

func (l *TestLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.record("FATAL", msg, fields)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	derived := l.derive()
	derived.fields[key] = value
	return derived
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	derived := l.derive()
	for k, v := range fields {
		derived.fields[k] = v
	}
	return derived
}

func (l *TestLogger) WithError(err error) Logger {
	derived := l.derive()
	derived.err = err
	return derived
}

func (l *TestLogger) GetZerolog() *zerolog.Logger {
	return l.nop
}

func (l *TestLogger) derive() *TestLogger {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	return &TestLogger{sink: l.sink, fields: fields, err: l.err, nop: l.nop}
}

// Entries returns a copy of all captured entries
func (l *TestLogger) Entries() []Entry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	entries := make([]Entry, len(l.sink.entries))
	copy(entries, l.sink.entries)
	return entries
}

// EntriesByLevel returns all captured entries of one level
func (l *TestLogger) EntriesByLevel(level string) []Entry {
	var filtered []Entry
	for _, e := range l.Entries() {
		if e.Level == level {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// HasMessage checks if a message with the given text was logged
func (l *TestLogger) HasMessage(text string) bool {
	for _, e := range l.Entries() {
		if e.Message == text {
			return true
		}
	}
	return false
}

// Clear drops all captured entries
func (l *TestLogger) Clear() {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.entries = l.sink.entries[:0]
}
