// Package monitoring routes each package's ops, diag and trace log streams.
package monitoring

import (
	"io"
	"log"
	"sync"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// Logger is a set of prefixed streams for one package. A nil stream drops
// its messages.
type Logger struct {
	prefix string

	mu    sync.RWMutex
	ops   *log.Logger
	diag  *log.Logger
	trace *log.Logger
}

var (
	registryMu sync.Mutex
	registry   []*Logger
	current    LogWriters
)

// NewLogger registers a Logger with the given prefix (e.g. "[pid] "). It
// starts with the writers most recently passed to SetLogWriters.
func NewLogger(prefix string) *Logger {
	l := &Logger{prefix: prefix}

	registryMu.Lock()
	defer registryMu.Unlock()
	l.set(current)
	registry = append(registry, l)
	return l
}

// SetLogWriters configures the streams of every registered Logger.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	registryMu.Lock()
	defer registryMu.Unlock()
	current = w
	for _, l := range registry {
		l.set(w)
	}
}

// SetLogWriters configures only this Logger's streams.
func (l *Logger) SetLogWriters(w LogWriters) {
	l.set(w)
}

func (l *Logger) set(w LogWriters) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = newStream(l.prefix, w.Ops)
	l.diag = newStream(l.prefix, w.Diag)
	l.trace = newStream(l.prefix, w.Trace)
}

func newStream(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream (actionable warnings, errors, state changes).
func (l *Logger) Opsf(format string, args ...interface{}) {
	l.mu.RLock()
	s := l.ops
	l.mu.RUnlock()
	if s != nil {
		s.Printf(format, args...)
	}
}

// Diagf logs to the diag stream (configuration and tuning context).
func (l *Logger) Diagf(format string, args ...interface{}) {
	l.mu.RLock()
	s := l.diag
	l.mu.RUnlock()
	if s != nil {
		s.Printf(format, args...)
	}
}

// Tracef logs to the trace stream (per-frame detail).
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.mu.RLock()
	s := l.trace
	l.mu.RUnlock()
	if s != nil {
		s.Printf(format, args...)
	}
}
