package pid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flightcore/internal/testutil"
	"github.com/banshee-data/flightcore/internal/timeutil"
)

func crashProfile(mode CrashRecoveryMode) Profile {
	p := DefaultProfile()
	p.CrashRecovery = mode
	p.DtermNotchHz = 0
	p.DtermLowpassHz = 0
	p.YawRateAccelLimit = 0
	return p
}

type crashRig struct {
	c      *Controller
	mixer  *fakeMixer
	beeper *testutil.RecordingBeeper
	in     *TickInput
	base   timeutil.TimeUs
	tick   int
}

func newCrashRig(p Profile) *crashRig {
	r := &crashRig{
		mixer:  &fakeMixer{mixRange: 1},
		beeper: &testutil.RecordingBeeper{},
		in:     levelInput(),
	}
	r.c = NewController(ControllerConfig{Profile: p, Loop: loop4k, Mixer: r.mixer, Beeper: r.beeper})
	return r
}

func (r *crashRig) step() timeutil.TimeUs {
	r.tick++
	now := r.base.Add(timeutil.DeltaUs(r.tick * tickUs))
	r.c.Update(now, r.in)
	return now
}

// trigger settles one quiet tick, then spins roll to 800 deg/s against a
// zero setpoint with the motors saturated.
func (r *crashRig) trigger(t *testing.T) timeutil.TimeUs {
	t.Helper()
	r.step()
	require.False(t, r.c.CrashRecoveryActive())
	r.in.Gyro[AxisRoll] = 800
	now := r.step()
	require.True(t, r.c.CrashRecoveryActive(), "crash should be detected")
	return now
}

func TestCrashRecoveryCompletesAfterTimeLimit(t *testing.T) {
	for _, base := range []timeutil.TimeUs{0, math.MaxUint32 - 100000} {
		r := newCrashRig(crashProfile(CrashRecoveryOn))
		r.base = base
		detectedAt := r.trigger(t)
		assert.Equal(t, detectedAt, r.c.Snapshot().Crash.DetectedAt)

		// 500ms limit at 250us per tick: 2000 ticks to reach it exactly.
		for i := 0; i < 2000; i++ {
			r.step()
			require.True(t, r.c.CrashRecoveryActive(), "tick %d", r.tick)
			require.Equal(t, [AxisCount]float32{}, r.c.Output().I, "integral held at zero")
		}
		r.step()
		assert.False(t, r.c.CrashRecoveryActive(), "recovered once the time limit passed")
	}
}

func TestCrashRecoveryLaw(t *testing.T) {
	r := newCrashRig(crashProfile(CrashRecoveryBeep))
	r.in.Attitude = [2]int16{50, 0}
	r.in.Gyro[AxisYaw] = 800
	r.trigger(t)
	assert.Zero(t, r.beeper.OnCalls, "recovery law starts after the delay window")

	r.in.Setpoint[AxisRoll] = 120
	r.step()
	require.True(t, r.c.CrashRecoveryActive())

	snap := r.c.Snapshot()
	assert.InDelta(t, -5*5, snap.Setpoint[AxisRoll], 1e-4, "pilot input replaced by leveling")
	assert.InDelta(t, 0, snap.Setpoint[AxisPitch], 1e-6)
	assert.InDelta(t, 0.032029*70*-200, snap.Output.P[AxisYaw], 1e-2, "yaw error clamped to crash_limit_yaw")
	assert.Equal(t, [AxisCount]float32{}, snap.Output.I)
	assert.True(t, r.beeper.Sounding())
	assert.Positive(t, r.beeper.OnCalls)
	assert.Zero(t, r.beeper.OffCalls)
}

func TestCrashRecoveryWithoutAccelerometer(t *testing.T) {
	r := newCrashRig(crashProfile(CrashRecoveryOn))
	r.in.AccPresent = false
	r.in.Attitude = [2]int16{450, 450} // far from level, but unknown to the controller
	r.trigger(t)

	r.in.Setpoint[AxisRoll] = 120
	r.step()
	assert.Equal(t, float32(120), r.c.Snapshot().Setpoint[AxisRoll], "no leveling without an accelerometer")

	for i := 0; i < 2000; i++ {
		r.step()
	}
	assert.False(t, r.c.CrashRecoveryActive())
}

func TestCrashRecoveryWaitsForLevel(t *testing.T) {
	r := newCrashRig(crashProfile(CrashRecoveryOn))
	r.in.Attitude = [2]int16{300, 0}
	r.trigger(t)

	for i := 0; i < 2500; i++ {
		r.step()
	}
	require.True(t, r.c.CrashRecoveryActive(), "30 degrees is outside the recovery angle")

	r.in.Attitude = [2]int16{99, -99}
	r.step()
	assert.False(t, r.c.CrashRecoveryActive())
}

func TestCrashRecoveryWhenSettled(t *testing.T) {
	r := newCrashRig(crashProfile(CrashRecoveryBeep))
	r.trigger(t)
	r.step()
	require.True(t, r.beeper.Sounding())

	r.mixer.mixRange = 0.5
	r.in.Gyro = [AxisCount]float32{50, -50, 99}
	r.step()
	assert.False(t, r.c.CrashRecoveryActive(), "slow rotation with headroom ends recovery early")
	assert.False(t, r.beeper.Sounding())
}

func TestCrashRecoverySettledNeedsHeadroom(t *testing.T) {
	r := newCrashRig(crashProfile(CrashRecoveryOn))
	r.trigger(t)

	r.in.Gyro = [AxisCount]float32{50, -50, 99}
	for i := 0; i < 100; i++ {
		r.step()
	}
	assert.True(t, r.c.CrashRecoveryActive(), "saturated motors keep recovery running")
}

func TestCrashEarlyAbort(t *testing.T) {
	tests := []struct {
		name  string
		apply func(in *TickInput)
	}{
		{"rate error drops", func(in *TickInput) { in.Gyro[AxisRoll] = 0 }},
		{"pilot commands a rate", func(in *TickInput) { in.Setpoint[AxisRoll] = 400 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := crashProfile(CrashRecoveryBeep)
			p.CrashDelayMs = 20
			r := newCrashRig(p)
			r.in.Attitude = [2]int16{50, 0}
			r.trigger(t)

			// Inside the delay the pilot still flies.
			r.step()
			require.True(t, r.c.CrashRecoveryActive())
			assert.Zero(t, r.c.Snapshot().Setpoint[AxisRoll])
			assert.Zero(t, r.beeper.OnCalls)

			tt.apply(r.in)
			r.step()
			assert.False(t, r.c.CrashRecoveryActive())
			assert.Equal(t, 1, r.beeper.OffCalls)
		})
	}
}

func TestCrashDelayWindowThenRecoveryLaw(t *testing.T) {
	p := crashProfile(CrashRecoveryOn)
	p.CrashDelayMs = 1
	r := newCrashRig(p)
	r.in.Attitude = [2]int16{50, 0}
	r.trigger(t)

	for i := 0; i < 4; i++ {
		r.step()
		assert.Zero(t, r.c.Snapshot().Setpoint[AxisRoll], "elapsed %d ticks", i+1)
	}
	r.step()
	assert.InDelta(t, -25, r.c.Snapshot().Setpoint[AxisRoll], 1e-4)
}

func TestCrashClearedOnDisarm(t *testing.T) {
	r := newCrashRig(crashProfile(CrashRecoveryBeep))
	r.trigger(t)
	r.step()
	require.True(t, r.beeper.Sounding())

	r.in.Armed = false
	r.step()
	assert.False(t, r.c.CrashRecoveryActive())
	assert.False(t, r.beeper.Sounding())

	for i := 0; i < 100; i++ {
		r.step()
		require.False(t, r.c.CrashRecoveryActive())
	}
}

func TestCrashNotDetected(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(p *Profile)
		apply func(r *crashRig)
	}{
		{"disarmed", nil, func(r *crashRig) { r.in.Armed = false }},
		{"crash recovery off", func(p *Profile) { p.CrashRecovery = CrashRecoveryOff }, nil},
		{"gyro overflow", nil, func(r *crashRig) { r.in.GyroOverflow = true }},
		{"motors not saturated", nil, func(r *crashRig) { r.mixer.mixRange = 0.99 }},
		{"pilot commanding a rate", nil, func(r *crashRig) { r.in.Setpoint[AxisRoll] = 360 }},
		{"rate error below threshold", func(p *Profile) { p.CrashGThreshold = 1500 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := crashProfile(CrashRecoveryOn)
			if tt.edit != nil {
				tt.edit(&p)
			}
			r := newCrashRig(p)
			if tt.apply != nil {
				tt.apply(r)
			}
			r.step()
			for i := 0; i < 200; i++ {
				r.in.Gyro[AxisRoll] = 1200 * float32(i%2)
				r.step()
				require.False(t, r.c.CrashRecoveryActive(), "tick %d", r.tick)
			}
		})
	}
}

func TestCrashYawNeverTriggers(t *testing.T) {
	r := newCrashRig(crashProfile(CrashRecoveryOn))
	r.step()
	r.in.Gyro[AxisYaw] = 1500
	r.step()
	r.in.Gyro[AxisYaw] = -1500
	r.step()
	assert.False(t, r.c.CrashRecoveryActive())
}
