package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/pid"
	"github.com/banshee-data/flightcore/internal/sim"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "step", *scenario)
	assert.Equal(t, int64(1), *recordEvery)
	assert.Equal(t, 115200, *serialBaud)
	assert.Empty(t, *dbPath)
}

func TestConfigFromFlags(t *testing.T) {
	cfg, err := configFromFlags()
	require.NoError(t, err)
	assert.Equal(t, "step", cfg.Scenario.Name)
	assert.Equal(t, pid.DefaultProfile(), cfg.Profile)
	assert.Equal(t, uint32(250), cfg.Loop.TargetLooptimeUs())

	old := *scenario
	t.Cleanup(func() { *scenario = old })
	*scenario = "loop-the-loop"
	_, err = configFromFlags()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hover")
}

func TestListScenarios(t *testing.T) {
	var buf bytes.Buffer
	listScenarios(&buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, len(sim.ScenarioNames()))
	assert.True(t, strings.HasPrefix(lines[0], "angle"))
}

func TestRunRecordsAndPlots(t *testing.T) {
	dir := t.TempDir()
	sc, err := sim.LookupScenario("step")
	require.NoError(t, err)
	cfg := config{
		Scenario:    sc,
		Profile:     pid.DefaultProfile(),
		Loop:        pid.DefaultLoopConfig(),
		Seed:        1,
		RecordEvery: 10,
		DBPath:      filepath.Join(dir, "bb.db"),
		Notes:       "cli",
		PNGPath:     filepath.Join(dir, "step.png"),
		HTMLPath:    filepath.Join(dir, "step.html"),
	}

	var out bytes.Buffer
	require.NoError(t, run(t.Context(), cfg, &out))
	assert.Contains(t, out.String(), "scenario step: 6000 ticks")
	assert.Contains(t, out.String(), "roll")

	store, err := blackbox.Open(cfg.DBPath)
	require.NoError(t, err)
	defer store.Close()
	sessions, err := store.Sessions(t.Context())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(600), sessions[0].FrameCount)
	assert.Equal(t, "cli", sessions[0].Notes)

	f, err := os.Open(cfg.PNGPath)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	require.NoError(t, err)

	html, err := os.ReadFile(cfg.HTMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "step (looptime 250us)")
}

func TestRunFailureRemovesSession(t *testing.T) {
	sc, _ := sim.LookupScenario("hover")
	cfg := config{
		Scenario:    sc,
		Profile:     pid.DefaultProfile(),
		RecordEvery: 1,
		DBPath:      filepath.Join(t.TempDir(), "bb.db"),
	}
	err := run(t.Context(), cfg, &bytes.Buffer{})
	require.Error(t, err, "a zero loop config cannot be flown")

	store, err := blackbox.Open(cfg.DBPath)
	require.NoError(t, err)
	defer store.Close()
	sessions, err := store.Sessions(t.Context())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRunBadSerialPort(t *testing.T) {
	sc, _ := sim.LookupScenario("hover")
	cfg := config{
		Scenario:    sc,
		Profile:     pid.DefaultProfile(),
		Loop:        pid.DefaultLoopConfig(),
		RecordEvery: 1,
		SerialPort:  filepath.Join(t.TempDir(), "no-such-tty"),
		Serial:      blackbox.PortOptions{Parity: "X"},
	}
	require.Error(t, run(t.Context(), cfg, &bytes.Buffer{}))
}
