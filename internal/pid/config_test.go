package pid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flightcore/internal/config"
)

func TestProfileFromDefaultsFileMatchesDefaultProfile(t *testing.T) {
	got, err := ProfileFromConfig(config.MustLoadDefaultConfig())
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultProfile(), got); diff != "" {
		t.Errorf("defaults file drifted from DefaultProfile (-want +got):\n%s", diff)
	}

	loop, err := LoopConfigFromConfig(config.MustLoadDefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultLoopConfig(), loop)
}

func TestProfileFromEmptyConfig(t *testing.T) {
	got, err := ProfileFromConfig(config.EmptyProfileConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), got)

	got, err = ProfileFromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), got)
}

func TestLoadProfileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
roll: {p: 45, i: 45, d: 32}
dterm_filter_type: fir
crash_recovery: beep
crash_delay_ms: 20
rate_accel_limit: 200
gyro_looptime_us: 250
pid_process_denom: 1
`), 0644))

	p, loop, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, Gains{45, 45, 32}, p.PID[PIDRoll])
	assert.Equal(t, DefaultProfile().PID[PIDPitch], p.PID[PIDPitch])
	assert.Equal(t, FilterFIR, p.DtermFilterType)
	assert.Equal(t, CrashRecoveryBeep, p.CrashRecovery)
	assert.Equal(t, uint16(20), p.CrashDelayMs)
	assert.Equal(t, uint16(200), p.RateAccelLimit)
	assert.Equal(t, LoopConfig{GyroLooptimeUs: 250, ProcessDenom: 1}, loop)

	c := ResolveCoefficients(&p, loop.TargetLooptimeUs())
	assert.InDelta(t, 5.0, c.MaxVelocity[AxisRoll], 1e-4)
}

func TestLoadProfileErrors(t *testing.T) {
	_, _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"level_angle_limit": 3}`), 0644))
	_, _, err = LoadProfile(path)
	assert.ErrorContains(t, err, "level_angle_limit")
}

func TestItermAccelerator(t *testing.T) {
	p := DefaultProfile()
	p.ItermAcceleratorGain = 3000

	assert.Equal(t, float32(1), ItermAccelerator(&p, 0))
	assert.Equal(t, float32(1), ItermAccelerator(&p, 350), "threshold itself does not boost")
	assert.InDelta(t, 3.0, ItermAccelerator(&p, 351), 1e-6)
	assert.InDelta(t, 3.0, ItermAccelerator(&p, -800), 1e-6)
}
