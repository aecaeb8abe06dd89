// Package testutil provides shared test helpers: HTTP request plumbing,
// log capture and a recording beeper for the control loop.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/banshee-data/flightcore/internal/monitoring"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// DecodeJSON unmarshals a recorder body into v, failing the test on error.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// CaptureLogs routes every monitoring stream into one buffer for the
// duration of the test.
func CaptureLogs(t testing.TB) *SyncBuffer {
	t.Helper()
	buf := &SyncBuffer{}
	monitoring.SetLogWriters(monitoring.LogWriters{Ops: buf, Diag: buf, Trace: buf})
	t.Cleanup(func() { monitoring.SetLogWriters(monitoring.LogWriters{}) })
	return buf
}

// SyncBuffer is a bytes.Buffer safe for concurrent writers.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// RecordingBeeper counts beeper transitions.
type RecordingBeeper struct {
	OnCalls  int
	OffCalls int
	on       bool
}

// On records an on request.
func (b *RecordingBeeper) On() {
	b.OnCalls++
	b.on = true
}

// Off records an off request.
func (b *RecordingBeeper) Off() {
	b.OffCalls++
	b.on = false
}

// Sounding reports whether the last request was On.
func (b *RecordingBeeper) Sounding() bool { return b.on }
