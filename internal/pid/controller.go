package pid

import (
	"strings"

	"github.com/banshee-data/flightcore/internal/mathutil"
	"github.com/banshee-data/flightcore/internal/timeutil"
)

// FlightMode is a bitmask of active stabilised flight modes. Zero is rate
// (acro) mode.
type FlightMode uint16

const (
	ModeAngle FlightMode = 1 << iota
	ModeHorizon
	ModeMag
	ModeBaro
	ModeGPSHome
	ModeGPSHold
	ModeHeadfree
	ModeFailsafe
)

var flightModeNames = []struct {
	mode FlightMode
	name string
}{
	{ModeAngle, "angle"},
	{ModeHorizon, "horizon"},
	{ModeMag, "mag"},
	{ModeBaro, "baro"},
	{ModeGPSHome, "gps_home"},
	{ModeGPSHold, "gps_hold"},
	{ModeHeadfree, "headfree"},
	{ModeFailsafe, "failsafe"},
}

// Has reports whether any bit of f is set in m.
func (m FlightMode) Has(f FlightMode) bool { return m&f != 0 }

func (m FlightMode) String() string {
	if m == 0 {
		return "rate"
	}
	var names []string
	for _, n := range flightModeNames {
		if m.Has(n.mode) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Mixer reports motor output saturation to the controller.
type Mixer interface {
	// MotorMixRange is the fraction of motor output range in use; >= 1 means
	// fully saturated.
	MotorMixRange() float32
	// IsOutputSaturated reports whether the motors cannot follow a further
	// correction of errorRate on axis.
	IsOutputSaturated(axis Axis, errorRate float32) bool
}

type idleMixer struct{}

func (idleMixer) MotorMixRange() float32               { return 0 }
func (idleMixer) IsOutputSaturated(Axis, float32) bool { return false }

// TickInput is everything the controller reads on one tick.
type TickInput struct {
	Setpoint     [AxisCount]float32 // requested rate, deg/s
	RcDeflection [AxisCount]float32 // stick deflection, [-1, 1]
	Gyro         [AxisCount]float32 // measured rate, deg/s
	Attitude     [2]int16           // roll, pitch in decidegrees
	Trim         [2]int16           // roll, pitch in decidegrees
	NavAngle     [2]float32         // external trim input, degrees

	Mode         FlightMode
	Armed        bool
	AccPresent   bool
	GyroOverflow bool

	ThrottlePIDAttenuation float32 // 1 = no attenuation
}

// Output holds the per-axis PID terms of the last tick.
type Output struct {
	P   [AxisCount]float32 `json:"p"`
	I   [AxisCount]float32 `json:"i"`
	D   [AxisCount]float32 `json:"d"`
	Sum [AxisCount]float32 `json:"sum"`
}

// Snapshot is a copy of the controller state after a tick.
type Snapshot struct {
	Time             timeutil.TimeUs    `json:"time_us"`
	Setpoint         [AxisCount]float32 `json:"setpoint"` // after shaping and crash substitution
	Output           Output             `json:"output"`
	Crash            CrashState         `json:"crash"`
	ItermAccelerator float32            `json:"iterm_accelerator"`
	MotorMixRange    float32            `json:"motor_mix_range"`
}

// ControllerConfig configures a new Controller. Nil Mixer and Beeper are
// replaced by an unsaturated mixer and a silent beeper.
type ControllerConfig struct {
	Profile Profile
	Loop    LoopConfig
	Mixer   Mixer
	Beeper  Beeper
}

// Controller runs the rate PID loop. It is not safe for concurrent use.
type Controller struct {
	profile Profile
	loop    LoopConfig
	coeffs  Coefficients
	filters *FilterChain
	mixer   Mixer

	limiter           AccelerationLimiter
	previousRateError [dtermAxes]float32
	previousTime      timeutil.TimeUs
	crash             crashRecovery

	itermAccelerator float32
	stabilisation    bool

	out           Output // out.I doubles as the integral accumulator
	setpoint      [AxisCount]float32
	lastTime      timeutil.TimeUs
	motorMixRange float32
}

// NewController returns a configured controller with stabilisation enabled.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		mixer:            cfg.Mixer,
		itermAccelerator: 1,
		stabilisation:    true,
	}
	if c.mixer == nil {
		c.mixer = idleMixer{}
	}
	c.crash.beeper = cfg.Beeper
	if c.crash.beeper == nil {
		c.crash.beeper = silentBeeper{}
	}
	c.Reconfigure(cfg.Profile, cfg.Loop)
	return c
}

// Reconfigure rebuilds the filter chain and runtime coefficients together.
// Integral and history state carry over.
func (c *Controller) Reconfigure(profile Profile, loop LoopConfig) {
	looptime := loop.TargetLooptimeUs()
	c.profile = profile
	c.loop = loop
	c.filters = BuildFilterChain(&c.profile, looptime)
	c.coeffs = ResolveCoefficients(&c.profile, looptime)
	logger.Diagf("reconfigured: looptime=%dus nyquist=%dHz dterm=%s/%dHz notch=%d/%dHz crash_recovery=%s",
		looptime, NyquistHz(looptime), profile.DtermFilterType, profile.DtermLowpassHz,
		profile.DtermNotchHz, profile.DtermNotchCutoff, profile.CrashRecovery)
}

// Update advances the controller by one tick at time now.
func (c *Controller) Update(now timeutil.TimeUs, in *TickInput) {
	k := &c.coeffs
	tpa := in.ThrottlePIDAttenuation
	mixRange := c.mixer.MotorMixRange()

	// D uses the measured tick interval; I uses the nominal period so
	// scheduling jitter cannot wind it up.
	deltaT := timeutil.CmpTimeUs(now, c.previousTime).Seconds()
	if deltaT <= 0 {
		deltaT = k.DT
	}
	c.previousTime = now

	dynCi := mathutil.MinC((1-mixRange)*k.ITermWindupPointInv, 1) * k.DT * c.itermAccelerator

	// Setpoint weighting on D only in rate mode.
	var dynCd float32
	if in.Mode == 0 {
		dynCd = k.DtermSetpointWeight
	}

	if !in.Armed {
		c.crash.clear(now)
	}
	detectCrash := k.CrashRecovery != CrashRecoveryOff && in.Armed && !in.GyroOverflow
	zeroOutput := !c.stabilisation || in.GyroOverflow

	for _, axis := range Axes {
		setpoint := in.Setpoint[axis]
		if k.MaxVelocity[axis] != 0 {
			setpoint = c.limiter.Limit(axis, setpoint, k.MaxVelocity[axis])
		}
		if levelsAxis(in.Mode, axis) {
			setpoint = Level(k, in.Mode, LevelInput{
				Deflection:  in.RcDeflection[axis],
				NavAngle:    in.NavAngle[axis],
				Attitude:    in.Attitude[axis],
				Trim:        in.Trim[axis],
				AttitudeAll: in.Attitude,
			}, setpoint)
		}

		gyroRate := in.Gyro[axis]
		errorRate := setpoint - gyroRate

		if c.crash.recovering(now, k) {
			if k.CrashRecovery == CrashRecoveryBeep {
				c.crash.beeper.On()
			}
			if axis == AxisYaw {
				errorRate = mathutil.Constrain(errorRate, -k.CrashLimitYaw, k.CrashLimitYaw)
			} else if in.AccPresent {
				errorAngle := -float32(int32(in.Attitude[axis])-int32(in.Trim[axis])) / 10
				setpoint = errorAngle * k.LevelGain
				errorRate = setpoint - gyroRate
			}
			// Pre-crash windup is meaningless now.
			c.out.I[axis] = 0
			c.crash.checkRecovered(now, k, mixRange, in)
		}

		c.out.P[axis] = k.Kp[axis] * errorRate * tpa
		if axis == AxisYaw {
			c.out.P[axis] = c.filters.YawLowpass.Apply(c.out.P[axis])
		}

		iterm := c.out.I[axis]
		itermNew := mathutil.Constrain(iterm+k.Ki[axis]*errorRate*dynCi, -k.ItermLimit, k.ItermLimit)
		if !c.mixer.IsOutputSaturated(axis, errorRate) || mathutil.Abs(itermNew) < mathutil.Abs(iterm) {
			c.out.I[axis] = itermNew
		}

		if axis != AxisYaw {
			filtered := c.filters.DtermNotch[axis].Apply(gyroRate)
			filtered = c.filters.DtermLowpass[axis].Apply(filtered)

			rD := dynCd*mathutil.MinC(mathutil.Abs(in.RcDeflection[axis])*k.RelaxFactor, 1)*setpoint - filtered
			var delta float32
			if deltaT > 0 {
				delta = (rD - c.previousRateError[axis]) / deltaT
			}
			c.previousRateError[axis] = rD

			if detectCrash {
				c.crash.detect(now, axis, k, mixRange, delta, errorRate, in.Setpoint[axis])
			}

			c.out.D[axis] = k.Kd[axis] * delta * tpa
			c.out.Sum[axis] = c.out.P[axis] + c.out.I[axis] + c.out.D[axis]
		} else {
			c.out.D[axis] = 0
			c.out.Sum[axis] = c.out.P[axis] + c.out.I[axis]
		}
		c.setpoint[axis] = setpoint

		if zeroOutput {
			c.out.P[axis] = 0
			c.out.I[axis] = 0
			c.out.D[axis] = 0
			c.out.Sum[axis] = 0
		}
	}

	c.lastTime = now
	c.motorMixRange = mixRange
}

// Output returns a copy of the last tick's PID terms.
func (c *Controller) Output() Output { return c.out }

// Snapshot returns a copy of the state after the last tick.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Time:             c.lastTime,
		Setpoint:         c.setpoint,
		Output:           c.out,
		Crash:            c.crash.state,
		ItermAccelerator: c.itermAccelerator,
		MotorMixRange:    c.motorMixRange,
	}
}

// ResetITerm zeroes the integral on every axis.
func (c *Controller) ResetITerm() {
	for i := range c.out.I {
		c.out.I[i] = 0
	}
}

// SetItermAccelerator sets the multiplier applied to integral growth.
func (c *Controller) SetItermAccelerator(v float32) { c.itermAccelerator = v }

// SetStabilisation enables or disables PID output. While disabled every
// term is forced to zero.
func (c *Controller) SetStabilisation(enabled bool) { c.stabilisation = enabled }

// CrashRecoveryActive reports whether crash recovery is in progress.
func (c *Controller) CrashRecoveryActive() bool { return c.crash.state.Active }

// Coefficients returns a copy of the resolved runtime coefficients.
func (c *Controller) Coefficients() Coefficients { return c.coeffs }

// Profile returns a copy of the active profile.
func (c *Controller) Profile() Profile { return c.profile }

// Loop returns the active loop configuration.
func (c *Controller) Loop() LoopConfig { return c.loop }
