package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWithin(t *testing.T) {
	root := t.TempDir()
	safe := filepath.Join(root, "safe")
	outside := filepath.Join(root, "outside")
	require.NoError(t, os.MkdirAll(safe, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	link := filepath.Join(safe, "link")
	require.NoError(t, os.Symlink(outside, link))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(safe, "run.png"), false},
		{"nested new file", filepath.Join(safe, "a", "b", "run.png"), false},
		{"dot dot", filepath.Join(safe, "..", "run.png"), true},
		{"absolute elsewhere", "/etc/passwd", true},
		{"through symlink", filepath.Join(link, "run.png"), true},
		{"symlink itself", link, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWithin(tt.path, safe)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	assert.NoError(t, ValidateOutputPath(filepath.Join(t.TempDir(), "chart.html")))
	assert.NoError(t, ValidateOutputPath("chart.html"))
	assert.Error(t, ValidateOutputPath("/proc/self/chart.html"))
}

func TestSanitizeFilename(t *testing.T) {
	for in, want := range map[string]string{
		"step-1a2b3c4d.png": "step-1a2b3c4d.png",
		"step run/../x":     "step_run_.._x",
		"":                  "unknown",
		"///":               "unknown",
		"..hidden":          "hidden",
		"crash (roll) 90°":  "crash_roll_90",
	} {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 500)), maxFilenameLen)
}
