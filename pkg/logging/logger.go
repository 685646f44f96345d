package logging

import (
	"fmt"
	"sync"
)

// Logger is the leveled logging capability handed to every component.
// Components never reach for a global logger; they log through the
// Logger they were constructed with.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(err error, format string, args ...interface{})
	// With returns a Logger that tags messages with a nested subsystem.
	With(subsystem string) Logger
}

type subsystemLogger struct {
	subsystem string
}

// For returns a Logger that writes through the process-wide slog handler
// configured by InitForCLI, tagging every entry with subsystem.
func For(subsystem string) Logger {
	return &subsystemLogger{subsystem: subsystem}
}

func (l *subsystemLogger) Debug(format string, args ...interface{}) {
	emit(LevelDebug, l.subsystem, nil, format, args...)
}

func (l *subsystemLogger) Info(format string, args ...interface{}) {
	emit(LevelInfo, l.subsystem, nil, format, args...)
}

func (l *subsystemLogger) Warn(format string, args ...interface{}) {
	emit(LevelWarn, l.subsystem, nil, format, args...)
}

func (l *subsystemLogger) Error(err error, format string, args ...interface{}) {
	emit(LevelError, l.subsystem, err, format, args...)
}

func (l *subsystemLogger) With(subsystem string) Logger {
	return &subsystemLogger{subsystem: l.subsystem + "/" + subsystem}
}

type discardLogger struct{}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return discardLogger{}
}

func (discardLogger) Debug(string, ...interface{})        {}
func (discardLogger) Info(string, ...interface{})         {}
func (discardLogger) Warn(string, ...interface{})         {}
func (discardLogger) Error(error, string, ...interface{}) {}
func (d discardLogger) With(string) Logger                { return d }

// Entry is one message captured by a Recorder.
type Entry struct {
	Level     LogLevel
	Subsystem string
	Message   string
	Err       error
}

// Recorder is a Logger that keeps every entry in memory. It is meant for tests.
type Recorder struct {
	subsystem string
	mu        *sync.Mutex
	entries   *[]Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (r *Recorder) add(level LogLevel, err error, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, Entry{
		Level:     level,
		Subsystem: r.subsystem,
		Message:   fmt.Sprintf(format, args...),
		Err:       err,
	})
}

func (r *Recorder) Debug(format string, args ...interface{}) { r.add(LevelDebug, nil, format, args...) }
func (r *Recorder) Info(format string, args ...interface{})  { r.add(LevelInfo, nil, format, args...) }
func (r *Recorder) Warn(format string, args ...interface{})  { r.add(LevelWarn, nil, format, args...) }
func (r *Recorder) Error(err error, format string, args ...interface{}) {
	r.add(LevelError, err, format, args...)
}

func (r *Recorder) With(subsystem string) Logger {
	name := subsystem
	if r.subsystem != "" {
		name = r.subsystem + "/" + subsystem
	}
	return &Recorder{subsystem: name, mu: r.mu, entries: r.entries}
}

// Entries returns a copy of everything recorded so far, including entries
// from loggers derived with With.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(*r.entries))
	copy(out, *r.entries)
	return out
}

// Count returns the number of recorded entries at the given level.
func (r *Recorder) Count(level LogLevel) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
