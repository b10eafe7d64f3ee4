// Package trace records the per-request diagnostic log returned to callers as debugLog.
//
// A Trace lives in the request context. Every entry is also written to the
// structured logger, so the same story is visible in server logs.
package trace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/group-harmony/internal/logging"
	"github.com/rs/zerolog"
)

// Level is the severity of a trace entry.
type Level string

// Trace levels
const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Entry is one diagnostic line.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Step    string    `json:"step,omitempty"`
	Message string    `json:"message"`
}

// String renders the entry the way it appears in debugLog.
func (e Entry) String() string {
	if e.Step == "" {
		return e.Message
	}
	return fmt.Sprintf("[%s] %s", e.Step, e.Message)
}

// Trace is safe for concurrent use; resolver goroutines write to it in parallel.
type Trace struct {
	mu      sync.Mutex
	entries []Entry
	logger  zerolog.Logger
	now     func() time.Time
}

// New returns an empty trace that mirrors entries to logger.
//
//nolint:gocritic // zerolog.Logger is passed by value
func New(logger zerolog.Logger) *Trace {
	return &Trace{logger: logger, now: time.Now}
}

// Debugf records a debug entry for step.
func (t *Trace) Debugf(step, format string, args ...any) {
	t.add(LevelDebug, step, fmt.Sprintf(format, args...))
}

// Infof records an info entry for step.
func (t *Trace) Infof(step, format string, args ...any) {
	t.add(LevelInfo, step, fmt.Sprintf(format, args...))
}

// Warnf records a warning entry for step.
func (t *Trace) Warnf(step, format string, args ...any) {
	t.add(LevelWarn, step, fmt.Sprintf(format, args...))
}

// Errorf records an error entry for step.
func (t *Trace) Errorf(step, format string, args ...any) {
	t.add(LevelError, step, fmt.Sprintf(format, args...))
}

func (t *Trace) add(level Level, step, msg string) {
	if t == nil {
		return
	}

	t.mu.Lock()
	t.entries = append(t.entries, Entry{Time: t.now(), Level: level, Step: step, Message: msg})
	t.mu.Unlock()

	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = t.logger.Debug()
	case LevelWarn:
		ev = t.logger.Warn()
	case LevelError:
		ev = t.logger.Error()
	default:
		ev = t.logger.Info()
	}
	ev.Str("step", step).Msg(msg)
}

// Entries returns a copy of the recorded entries.
func (t *Trace) Entries() []Entry {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lines flattens the trace into the string array used by response bodies.
// It never returns nil so the field always serializes as an array.
func (t *Trace) Lines() []string {
	entries := t.Entries()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.String())
	}
	return lines
}

type contextKey struct{}

// WithTrace stores t in ctx.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the trace stored in ctx. When none is stored it returns
// a detached trace that still logs, so callers never need a nil check.
func FromContext(ctx context.Context) *Trace {
	if t, ok := ctx.Value(contextKey{}).(*Trace); ok && t != nil {
		return t
	}
	return New(*logging.Ctx(ctx))
}

// Start creates a trace bound to ctx's request logger and returns both.
func Start(ctx context.Context) (context.Context, *Trace) {
	t := New(*logging.Ctx(ctx))
	return WithTrace(ctx, t), t
}

// Ensure returns ctx's trace, starting one when ctx has none.
func Ensure(ctx context.Context) (context.Context, *Trace) {
	if t, ok := ctx.Value(contextKey{}).(*Trace); ok && t != nil {
		return ctx, t
	}
	return Start(ctx)
}
