package blackbox

import (
	"context"
	"sync"
)

// DefaultBatchSize is the number of frames a SessionWriter buffers before it
// writes them to the store.
const DefaultBatchSize = 512

// SessionWriter is a Sink that appends frames to one stored session in
// batches.
type SessionWriter struct {
	store     *Store
	sessionID string
	batchSize int

	mu      sync.Mutex
	pending []Frame
	crashes int
	inCrash bool
	closed  bool
}

// NewSessionWriter returns a writer for sessionID. batchSize < 1 uses
// DefaultBatchSize.
func (s *Store) NewSessionWriter(sessionID string, batchSize int) *SessionWriter {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &SessionWriter{
		store:     s,
		sessionID: sessionID,
		batchSize: batchSize,
		pending:   make([]Frame, 0, batchSize),
	}
}

// WriteFrame buffers f and writes the batch when it is full. Rising edges of
// the crash recovery flag are counted as crash events.
func (w *SessionWriter) WriteFrame(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if f.CrashRecovery && !w.inCrash {
		w.crashes++
	}
	w.inCrash = f.CrashRecovery
	w.pending = append(w.pending, f)
	if len(w.pending) < w.batchSize {
		return nil
	}
	return w.flushLocked(context.Background())
}

// Flush writes any buffered frames.
func (w *SessionWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *SessionWriter) flushLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.store.AppendFrames(ctx, w.sessionID, w.pending); err != nil {
		return err
	}
	w.pending = w.pending[:0]
	return nil
}

// CrashEvents returns the number of crash recoveries seen so far.
func (w *SessionWriter) CrashEvents() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.crashes
}

// Close flushes the remaining frames and records the session summary. It is
// safe to call more than once.
func (w *SessionWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := w.flushLocked(ctx); err != nil {
		return err
	}
	w.closed = true
	return w.store.FinishSession(ctx, w.sessionID, w.crashes)
}
