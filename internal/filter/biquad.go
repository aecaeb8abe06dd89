package filter

import "math"

// ButterworthQ is the Q of a second-order Butterworth low-pass.
const ButterworthQ = 0.70710678

// Biquad is a second-order IIR section in transposed direct form II.
type Biquad struct {
	kind Kind

	b0, b1, b2 float32
	a1, a2     float32
	x1, x2     float32
}

// NewBiquadLowpass builds a Butterworth low-pass at cutoffHz for a loop
// running every looptimeUs microseconds.
func NewBiquadLowpass(cutoffHz float32, looptimeUs uint32) *Biquad {
	return newBiquad(KindBiquadLowpass, cutoffHz, looptimeUs, ButterworthQ)
}

// NewBiquadNotch builds a notch centred on centerHz with quality q.
func NewBiquadNotch(centerHz float32, looptimeUs uint32, q float32) *Biquad {
	return newBiquad(KindBiquadNotch, centerHz, looptimeUs, q)
}

func newBiquad(kind Kind, freqHz float32, looptimeUs uint32, q float32) *Biquad {
	sampleRate := 1 / (float64(looptimeUs) * 0.000001)
	omega := 2 * math.Pi * float64(freqHz) / sampleRate
	sn, cs := math.Sincos(omega)
	alpha := sn / (2 * float64(q))

	var b0, b1, b2 float64
	switch kind {
	case KindBiquadNotch:
		b0 = 1
		b1 = -2 * cs
		b2 = 1
	default:
		b0 = (1 - cs) / 2
		b1 = 1 - cs
		b2 = (1 - cs) / 2
	}
	a0 := 1 + alpha
	a1 := -2 * cs
	a2 := 1 - alpha

	return &Biquad{
		kind: kind,
		b0:   float32(b0 / a0),
		b1:   float32(b1 / a0),
		b2:   float32(b2 / a0),
		a1:   float32(a1 / a0),
		a2:   float32(a2 / a0),
	}
}

// Apply advances the filter by one sample.
func (f *Biquad) Apply(input float32) float32 {
	result := f.b0*input + f.x1
	f.x1 = f.b1*input - f.a1*result + f.x2
	f.x2 = f.b2*input - f.a2*result
	return result
}

// NotchQ returns the Q giving a notch centred on centerHz whose lower -3dB
// edge sits at cutoffHz.
func NotchQ(centerHz, cutoffHz float32) float32 {
	octaves := math.Log2(float64(centerHz)/float64(cutoffHz)) * 2
	p := math.Pow(2, octaves)
	return float32(math.Sqrt(p) / (p - 1))
}
