package pid

import "github.com/banshee-data/flightcore/internal/mathutil"

// AccelerationLimiter bounds the per-tick change of each axis setpoint. The
// last accepted setpoint persists across ticks and mode changes.
type AccelerationLimiter struct {
	previous [AxisCount]float32
}

// Limit returns setpoint moved no further than maxVelocity from the
// previously accepted value for axis, and records the result.
func (a *AccelerationLimiter) Limit(axis Axis, setpoint, maxVelocity float32) float32 {
	velocity := setpoint - a.previous[axis]
	if mathutil.Abs(velocity) > maxVelocity {
		if velocity > 0 {
			setpoint = a.previous[axis] + maxVelocity
		} else {
			setpoint = a.previous[axis] - maxVelocity
		}
	}
	a.previous[axis] = setpoint
	return setpoint
}

// Previous returns the last accepted setpoint for axis.
func (a *AccelerationLimiter) Previous(axis Axis) float32 {
	return a.previous[axis]
}

// Inclination returns the larger of |roll| and |pitch| in degrees, given an
// attitude in decidegrees. 0 is level, 90 vertical, 180 inverted.
func Inclination(attitude [2]int16) float32 {
	return float32(mathutil.MaxAbs(int32(attitude[AxisRoll]), int32(attitude[AxisPitch]))) / 10
}

// HorizonLevelStrength returns the leveling weight in [0,1] for the given
// inclination in degrees: 1 at level, fading to 0 toward the horizon cutoff.
// Without expert mode the fade starts later, at twice the ratio.
func HorizonLevelStrength(c *Coefficients, inclination float32) float32 {
	var strength float32
	if c.HorizonTiltExpertMode {
		if c.HorizonTransition > 0 && c.HorizonCutoffDegrees > 0 {
			strength = mathutil.Constrain((c.HorizonCutoffDegrees-inclination)/c.HorizonCutoffDegrees, 0, 1)
		}
	} else if c.HorizonCutoffDegrees > 0 {
		strength = mathutil.Constrain((c.HorizonCutoffDegrees-inclination)*2/c.HorizonCutoffDegrees, 0, 1)
	}
	return mathutil.Constrain(strength, 0, 1)
}

// LevelInput is the per-axis state the leveling blend reads.
type LevelInput struct {
	Deflection  float32  // stick deflection in [-1, 1]
	NavAngle    float32  // external trim angle, degrees
	Attitude    int16    // this axis, decidegrees
	Trim        int16    // this axis, decidegrees
	AttitudeAll [2]int16 // roll and pitch, for inclination
}

// Level converts a rate setpoint into a self-leveling setpoint. Angle mode
// replaces the setpoint with a proportional angle correction. Horizon mode
// blends the correction in by HorizonLevelStrength, and without expert mode
// behaves like angle mode until the craft passes the level angle limit.
func Level(c *Coefficients, mode FlightMode, in LevelInput, setpoint float32) float32 {
	angle := c.LevelAngleLimit*in.Deflection + in.NavAngle
	angle = mathutil.Constrain(angle, -c.LevelAngleLimit, c.LevelAngleLimit)
	errorAngle := angle - float32(int32(in.Attitude)-int32(in.Trim))/10

	if mode.Has(ModeAngle) {
		return errorAngle * c.LevelGain
	}

	strength := HorizonLevelStrength(c, Inclination(in.AttitudeAll))
	if c.HorizonTiltExpertMode {
		return setpoint + errorAngle*c.HorizonGain*strength
	}
	if Inclination(in.AttitudeAll) < c.LevelAngleLimit {
		return errorAngle * c.HorizonGain
	}
	return setpoint + errorAngle*c.HorizonGain*strength
}

// levelsAxis reports whether leveling applies to axis in mode: roll and
// pitch in angle mode, roll only in horizon mode.
func levelsAxis(mode FlightMode, axis Axis) bool {
	if axis == AxisYaw {
		return false
	}
	if mode.Has(ModeAngle) {
		return true
	}
	return mode.Has(ModeHorizon) && axis == AxisRoll
}
