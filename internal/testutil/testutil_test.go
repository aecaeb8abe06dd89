package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/flightcore/internal/monitoring"
	"github.com/stretchr/testify/assert"
)

func TestAssertStatusCode(t *testing.T) {
	fakeT := &testing.T{}
	AssertStatusCode(fakeT, http.StatusOK, http.StatusOK)
	assert.False(t, fakeT.Failed())
}

func TestDecodeJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Body.WriteString(`{"id":"abc","frames":3}`)

	var got struct {
		ID     string `json:"id"`
		Frames int    `json:"frames"`
	}
	DecodeJSON(t, rec, &got)
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, 3, got.Frames)
}

func TestNewTestRequest(t *testing.T) {
	req := NewTestRequest(http.MethodDelete, "/api/sessions/x")
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/api/sessions/x", req.URL.Path)
}

func TestCaptureLogs(t *testing.T) {
	buf := CaptureLogs(t)
	monitoring.NewLogger("[testutil] ").Opsf("hello %d", 7)
	assert.Contains(t, buf.String(), "[testutil] ")
	assert.Contains(t, buf.String(), "hello 7")
}

func TestRecordingBeeper(t *testing.T) {
	b := &RecordingBeeper{}
	b.On()
	b.On()
	assert.True(t, b.Sounding())
	b.Off()
	assert.False(t, b.Sounding())
	assert.Equal(t, 2, b.OnCalls)
	assert.Equal(t, 1, b.OffCalls)
}
