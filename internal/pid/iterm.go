package pid

import "github.com/banshee-data/flightcore/internal/mathutil"

// ItermAccelerator returns the integral multiplier for a throttle moving at
// throttleSpeed (throttle command units per 100ms). Fast throttle changes
// boost the integral by ItermAcceleratorGain/1000, otherwise it is 1.
func ItermAccelerator(p *Profile, throttleSpeed float32) float32 {
	if mathutil.Abs(throttleSpeed) > float32(p.ItermThrottleThreshold) {
		return float32(p.ItermAcceleratorGain) * 0.001
	}
	return 1
}
