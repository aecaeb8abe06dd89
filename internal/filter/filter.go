// Package filter implements the single-sample digital filters used on the
// control path: identity, first-order (PT1) low-pass, biquad low-pass and
// notch, and a moving-average FIR denoiser.
//
// Every filter owns its delay state and is updated by exactly one caller; none
// of them allocate after construction.
package filter

import "math"

// Filter processes one sample and returns the filtered sample.
type Filter interface {
	Apply(input float32) float32
}

// Kind identifies a filter variant.
type Kind int

const (
	KindNull Kind = iota
	KindPT1
	KindBiquadLowpass
	KindBiquadNotch
	KindFIRDenoise
)

var kindNames = [...]string{"none", "pt1", "biquad-lpf", "biquad-notch", "fir-denoise"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindOf reports the variant of f.
func KindOf(f Filter) Kind {
	switch v := f.(type) {
	case *PT1:
		return KindPT1
	case *Biquad:
		return v.kind
	case *FIRDenoise:
		return KindFIRDenoise
	default:
		return KindNull
	}
}

// Null passes samples through unchanged.
type Null struct{}

// Apply returns input.
func (Null) Apply(input float32) float32 { return input }

// PT1 is a first-order low-pass filter.
type PT1 struct {
	state float32
	k     float32
}

// NewPT1 builds a PT1 with cutoff hz sampled every dT seconds.
func NewPT1(cutoffHz float32, dT float32) *PT1 {
	rc := 1 / (2 * math.Pi * cutoffHz)
	return &PT1{k: dT / (rc + dT)}
}

// Apply advances the filter by one sample.
func (f *PT1) Apply(input float32) float32 {
	f.state += f.k * (input - f.state)
	return f.state
}

// Gain returns the smoothing coefficient k = dT / (RC + dT).
func (f *PT1) Gain() float32 { return f.k }
