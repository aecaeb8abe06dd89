package pid

import (
	"github.com/banshee-data/flightcore/internal/mathutil"
	"github.com/banshee-data/flightcore/internal/timeutil"
)

// Beeper is the audible alert driven during crash recovery.
type Beeper interface {
	On()
	Off()
}

type silentBeeper struct{}

func (silentBeeper) On()  {}
func (silentBeeper) Off() {}

// CrashState is the crash recovery flag and the time it was last set.
type CrashState struct {
	Active     bool            `json:"active"`
	DetectedAt timeutil.TimeUs `json:"detected_at_us"`
}

// crashRecovery is advanced once per tick by the controller, axis by axis.
type crashRecovery struct {
	state  CrashState
	beeper Beeper
}

func (r *crashRecovery) elapsed(now timeutil.TimeUs) timeutil.DeltaUs {
	return timeutil.CmpTimeUs(now, r.state.DetectedAt)
}

// recovering reports whether a detected crash has outlived the detection
// delay, so the recovery control law applies.
func (r *crashRecovery) recovering(now timeutil.TimeUs, c *Coefficients) bool {
	return r.state.Active && r.elapsed(now) > c.CrashTimeDelay
}

func (r *crashRecovery) enter(now timeutil.TimeUs, axis Axis) {
	r.state = CrashState{Active: true, DetectedAt: now}
	logger.Opsf("crash detected on %s at %dus", axis, now)
}

func (r *crashRecovery) exit(now timeutil.TimeUs, reason string) {
	r.state.Active = false
	r.beeper.Off()
	logger.Opsf("crash recovery %s after %dus", reason, r.elapsed(now))
}

// detect evaluates the crash trigger for one D-term axis. The caller has
// already checked that crash recovery is enabled, the craft is armed and the
// gyro has not overflowed.
func (r *crashRecovery) detect(now timeutil.TimeUs, axis Axis, c *Coefficients, mixRange, delta, errorRate, rawSetpoint float32) {
	if mixRange >= 1 && !r.state.Active &&
		mathutil.Abs(delta) > c.CrashDtermThreshold &&
		mathutil.Abs(errorRate) > c.CrashGyroThreshold &&
		mathutil.Abs(rawSetpoint) < c.CrashSetpointThreshold {
		r.enter(now, axis)
	}
	if r.state.Active && r.elapsed(now) < c.CrashTimeDelay &&
		(mathutil.Abs(errorRate) < c.CrashGyroThreshold || mathutil.Abs(rawSetpoint) > c.CrashSetpointThreshold) {
		r.exit(now, "aborted")
	}
}

// checkRecovered ends recovery once the time limit has passed or the craft
// has stopped rotating with motor headroom, provided it is near level. With
// no accelerometer the attitude cannot be checked and recovery ends
// unconditionally.
func (r *crashRecovery) checkRecovered(now timeutil.TimeUs, c *Coefficients, mixRange float32, in *TickInput) {
	settled := mixRange < 1 &&
		mathutil.Abs(in.Gyro[AxisRoll]) < c.CrashRecoveryRate &&
		mathutil.Abs(in.Gyro[AxisPitch]) < c.CrashRecoveryRate &&
		mathutil.Abs(in.Gyro[AxisYaw]) < c.CrashRecoveryRate
	if r.elapsed(now) <= c.CrashTimeLimit && !settled {
		return
	}
	if in.AccPresent {
		roll := mathutil.Abs(int32(in.Attitude[AxisRoll]) - int32(in.Trim[AxisRoll]))
		pitch := mathutil.Abs(int32(in.Attitude[AxisPitch]) - int32(in.Trim[AxisPitch]))
		if roll >= c.CrashRecoveryAngleDecidegrees || pitch >= c.CrashRecoveryAngleDecidegrees {
			return
		}
	}
	r.exit(now, "complete")
}

// clear drops any crash state on disarm.
func (r *crashRecovery) clear(now timeutil.TimeUs) {
	if r.state.Active {
		r.exit(now, "cleared on disarm")
	}
}
