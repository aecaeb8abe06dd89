package pid

import "github.com/banshee-data/flightcore/internal/filter"

// dtermAxes is the number of axes with a derivative term (roll and pitch).
const dtermAxes = 2

// FilterChain holds the filter state used by the PID loop. It is rebuilt on
// every reconfigure and never shared between controllers.
type FilterChain struct {
	DtermNotch   [dtermAxes]filter.Filter
	DtermLowpass [dtermAxes]filter.Filter
	YawLowpass   filter.Filter
}

// NyquistHz returns half the loop rate, truncated to whole hertz.
func NyquistHz(looptimeUs uint32) uint32 {
	if looptimeUs == 0 {
		return 0
	}
	dT := float32(looptimeUs) * 0.000001
	return uint32((1 / dT) / 2)
}

// BuildFilterChain constructs fresh D-term and yaw P-term filters for p at
// a loop period of looptimeUs. A zero period yields identity filters.
// Stages whose configuration is unusable at this loop rate degrade to
// identity.
func BuildFilterChain(p *Profile, looptimeUs uint32) *FilterChain {
	fc := &FilterChain{YawLowpass: filter.Null{}}
	for i := 0; i < dtermAxes; i++ {
		fc.DtermNotch[i] = filter.Null{}
		fc.DtermLowpass[i] = filter.Null{}
	}
	if looptimeUs == 0 {
		return fc
	}

	dT := float32(looptimeUs) * 0.000001
	nyquist := NyquistHz(looptimeUs)

	notchHz := resolveNotchHz(uint32(p.DtermNotchHz), uint32(p.DtermNotchCutoff), nyquist)
	if notchHz != uint32(p.DtermNotchHz) {
		logger.Diagf("dterm notch %d Hz above nyquist %d Hz, using %d Hz", p.DtermNotchHz, nyquist, notchHz)
	}
	if notchHz != 0 && p.DtermNotchCutoff != 0 {
		q := filter.NotchQ(float32(notchHz), float32(p.DtermNotchCutoff))
		for i := 0; i < dtermAxes; i++ {
			fc.DtermNotch[i] = filter.NewBiquadNotch(float32(notchHz), looptimeUs, q)
		}
	}

	lpfHz := uint32(p.DtermLowpassHz)
	switch {
	case lpfHz == 0:
	case lpfHz > nyquist:
		logger.Diagf("dterm lpf %d Hz above nyquist %d Hz, disabled", lpfHz, nyquist)
	default:
		for i := 0; i < dtermAxes; i++ {
			switch p.DtermFilterType {
			case FilterPT1:
				fc.DtermLowpass[i] = filter.NewPT1(float32(lpfHz), dT)
			case FilterBiquad:
				fc.DtermLowpass[i] = filter.NewBiquadLowpass(float32(lpfHz), looptimeUs)
			case FilterFIR:
				fc.DtermLowpass[i] = filter.NewFIRDenoise(float32(lpfHz), looptimeUs)
			default:
				if i == 0 {
					logger.Diagf("unknown dterm filter type %v, dterm lpf disabled", p.DtermFilterType)
				}
			}
		}
	}

	yawHz := uint32(p.YawLowpassHz)
	switch {
	case yawHz == 0:
	case yawHz > nyquist:
		logger.Diagf("yaw lpf %d Hz above nyquist %d Hz, disabled", yawHz, nyquist)
	default:
		fc.YawLowpass = filter.NewPT1(float32(yawHz), dT)
	}
	return fc
}

// resolveNotchHz keeps the notch centre at or below nyquist. A centre above
// nyquist is clamped when the cutoff still fits, otherwise disabled.
func resolveNotchHz(centerHz, cutoffHz, nyquist uint32) uint32 {
	if centerHz <= nyquist {
		return centerHz
	}
	if cutoffHz < nyquist {
		return nyquist
	}
	return 0
}
