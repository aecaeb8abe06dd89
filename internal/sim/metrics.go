package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/pid"
	"github.com/banshee-data/flightcore/internal/timeutil"
)

// stepThreshold is the smallest setpoint change, deg/s, treated as a step.
const stepThreshold = 1

// settleBandFloor is the narrowest settle band, deg/s.
const settleBandFloor = 5

// AxisMetrics summarises how well one axis tracked its setpoint.
type AxisMetrics struct {
	MeanError   float64 `json:"mean_error"`
	StdDevError float64 `json:"stddev_error"`
	RMSError    float64 `json:"rms_error"`
	MaxAbsError float64 `json:"max_abs_error"`

	// Step response to the last setpoint change, if there was one.
	StepSize         float64 `json:"step_size"`
	OvershootPercent float64 `json:"overshoot_percent"`
	SettleTimeMs     float64 `json:"settle_time_ms"` // -1 if the axis never settled
}

// Metrics holds per-axis tracking metrics for a run.
type Metrics struct {
	Frames int                        `json:"frames"`
	Axes   [pid.AxisCount]AxisMetrics `json:"axes"`
}

// ComputeMetrics derives tracking metrics from frames in time order. The
// error is setpoint minus gyro.
func ComputeMetrics(frames []blackbox.Frame) Metrics {
	m := Metrics{Frames: len(frames)}
	if len(frames) == 0 {
		return m
	}
	errs := make([]float64, len(frames))
	abs := make([]float64, len(frames))
	for _, axis := range pid.Axes {
		for i, f := range frames {
			errs[i] = float64(f.Setpoint[axis] - f.Gyro[axis])
			abs[i] = math.Abs(errs[i])
		}
		am := &m.Axes[axis]
		am.MeanError, am.StdDevError = stat.MeanStdDev(errs, nil)
		if len(errs) < 2 {
			am.StdDevError = 0
		}
		am.RMSError = floats.Norm(errs, 2) / math.Sqrt(float64(len(errs)))
		am.MaxAbsError = floats.Max(abs)
		stepResponse(frames, axis, am)
	}
	return m
}

// stepResponse fills the step fields from the last setpoint change on axis.
func stepResponse(frames []blackbox.Frame, axis pid.Axis, am *AxisMetrics) {
	target := float64(frames[len(frames)-1].Setpoint[axis])
	start := 0
	before := target
	for i := len(frames) - 1; i > 0; i-- {
		if math.Abs(float64(frames[i].Setpoint[axis]-frames[i-1].Setpoint[axis])) > 1e-3 {
			start = i
			before = float64(frames[i-1].Setpoint[axis])
			break
		}
	}
	step := target - before
	// A ramped setpoint shows as many small changes; measure from the ramp
	// start so StepSize reflects the whole move.
	for start > 1 {
		d := float64(frames[start-1].Setpoint[axis] - frames[start-2].Setpoint[axis])
		if math.Abs(d) <= 1e-3 || math.Signbit(d) != math.Signbit(step) {
			break
		}
		start--
		before = float64(frames[start-1].Setpoint[axis])
		step = target - before
	}
	if math.Abs(step) < stepThreshold {
		step = 0
	}
	am.StepSize = step

	band := math.Max(0.05*math.Abs(step), settleBandFloor)
	settledAt := -1
	for i := len(frames) - 1; i >= start; i-- {
		if math.Abs(float64(frames[i].Gyro[axis])-target) > band {
			break
		}
		settledAt = i
	}
	if settledAt < 0 {
		am.SettleTimeMs = -1
	} else {
		dt := timeutil.CmpTimeUs(timeutil.TimeUs(frames[settledAt].TimeUs), timeutil.TimeUs(frames[start].TimeUs))
		am.SettleTimeMs = float64(dt) / 1000
	}

	if step == 0 {
		return
	}
	var peak float64
	for _, f := range frames[start:] {
		if over := (float64(f.Gyro[axis]) - target) * math.Copysign(1, step); over > peak {
			peak = over
		}
	}
	am.OvershootPercent = peak / math.Abs(step) * 100
}
