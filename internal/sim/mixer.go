package sim

import (
	"github.com/banshee-data/flightcore/internal/mathutil"
	"github.com/banshee-data/flightcore/internal/pid"
)

// MixerScale converts PID sums to motor output fractions.
const MixerScale = 1000

// quadX holds the roll, pitch and yaw weights of each motor of an X quad:
// rear right, front right, rear left, front left.
var quadX = [4][pid.AxisCount]float32{
	{-1, 1, -1},
	{-1, -1, 1},
	{1, 1, 1},
	{1, -1, -1},
}

// QuadMixer turns PID sums into four motor outputs and reports how much of
// the output range the correction consumes. It implements pid.Mixer using
// the previous mix, as the flight loop does.
type QuadMixer struct {
	motors   [4]float32
	command  [pid.AxisCount]float32
	mixRange float32
}

// Mix computes motor outputs for sums at the given throttle in [0, 1]. When
// the correction spans more than the full range it is scaled down to fit.
func (m *QuadMixer) Mix(sum [pid.AxisCount]float32, throttle float32) {
	var mix [4]float32
	lo, hi := float32(0), float32(0)
	for i, w := range quadX {
		mix[i] = (w[0]*sum[0] + w[1]*sum[1] + w[2]*sum[2]) / MixerScale
		if i == 0 || mix[i] < lo {
			lo = mix[i]
		}
		if i == 0 || mix[i] > hi {
			hi = mix[i]
		}
	}
	m.mixRange = hi - lo

	scale := float32(1)
	if m.mixRange > 1 {
		scale = 1 / m.mixRange
	}
	for i := range mix {
		m.motors[i] = mathutil.Constrain(throttle+mix[i]*scale, 0, 1)
	}
	for axis := range sum {
		m.command[axis] = sum[axis] * scale
	}
}

// MotorMixRange implements pid.Mixer.
func (m *QuadMixer) MotorMixRange() float32 { return m.mixRange }

// IsOutputSaturated implements pid.Mixer. Any axis is saturated once the
// mix uses the full range.
func (m *QuadMixer) IsOutputSaturated(pid.Axis, float32) bool { return m.mixRange >= 1 }

// Motors returns the last motor outputs in [0, 1].
func (m *QuadMixer) Motors() [4]float32 { return m.motors }

// AxisCommand returns the PID sums after range scaling, which is what the
// airframe actually receives.
func (m *QuadMixer) AxisCommand() [pid.AxisCount]float32 { return m.command }
