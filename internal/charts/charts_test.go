package charts

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/pid"
)

func rampFrames(n int) []blackbox.Frame {
	frames := make([]blackbox.Frame, n)
	for i := range frames {
		v := float32(i)
		frames[i] = blackbox.Frame{
			Iteration: int64(i),
			TimeUs:    uint32(1000 + i*250),
			Setpoint:  [pid.AxisCount]float32{100, -50, 20},
			Gyro:      [pid.AxisCount]float32{v, -v / 2, v / 5},
			Sum:       [pid.AxisCount]float32{100 - v, v - 50, 20 - v/5},
		}
	}
	return frames
}

func TestDownsample(t *testing.T) {
	frames := rampFrames(10)
	assert.Len(t, Downsample(frames, 0), 10)
	assert.Len(t, Downsample(frames, 20), 10)

	got := Downsample(frames, 4)
	require.Len(t, got, 4)
	assert.Equal(t, []int64{0, 3, 6, 9}, []int64{got[0].Iteration, got[1].Iteration, got[2].Iteration, got[3].Iteration})
	assert.LessOrEqual(t, len(Downsample(rampFrames(1001), 100)), 100)
}

func TestElapsedMsAcrossWrap(t *testing.T) {
	frames := []blackbox.Frame{{TimeUs: 4294967000}, {TimeUs: 704}}
	assert.Equal(t, []float64{0, 1}, elapsedMs(frames))
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, "step", rampFrames(200)))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
	assert.Greater(t, img.Bounds().Dy(), 0)

	assert.Error(t, WritePNG(&bytes.Buffer{}, "empty", nil))
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHTML(&buf, rampFrames(50), HTMLOptions{Title: "crash run", Subtitle: "seed 7", AssetsHost: "/assets/"})
	require.NoError(t, err)

	page := buf.String()
	assert.True(t, strings.Contains(page, "<html"), "renders a full page")
	for _, want := range []string{"crash run - Roll", "crash run - Pitch", "crash run - Yaw", "setpoint", "gyro", "pid sum", "/assets/"} {
		assert.Contains(t, page, want)
	}
}
