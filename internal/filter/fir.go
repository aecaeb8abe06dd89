package filter

import "math"

// MaxFIRWindow bounds the FIR denoiser window length.
const MaxFIRWindow = 120

// FIRDenoise is a moving average whose window spans one period of the
// configured cutoff frequency.
type FIRDenoise struct {
	window [MaxFIRWindow]float32
	count  int
	filled int
	index  int
	sum    float32
}

// NewFIRDenoise sizes the window as sampleRate/cutoffHz samples, clamped to
// [1, MaxFIRWindow].
func NewFIRDenoise(cutoffHz float32, looptimeUs uint32) *FIRDenoise {
	sampleRate := 1 / (0.000001 * float64(looptimeUs))
	n := int(math.RoundToEven(sampleRate / float64(cutoffHz)))
	if n < 1 {
		n = 1
	}
	if n > MaxFIRWindow {
		n = MaxFIRWindow
	}
	return &FIRDenoise{count: n}
}

// Window returns the number of samples averaged once the window is full.
func (f *FIRDenoise) Window() int { return f.count }

// Apply advances the filter by one sample.
func (f *FIRDenoise) Apply(input float32) float32 {
	f.sum += input - f.window[f.index]
	f.window[f.index] = input
	f.index++
	if f.index == f.count {
		f.index = 0
	}
	if f.filled < f.count {
		f.filled++
	}
	return f.sum / float32(f.filled)
}
