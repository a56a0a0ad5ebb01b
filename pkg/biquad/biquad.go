// Package biquad implements a Direct-Form-I second-order IIR filter,
// with constructors for the Butterworth high-pass and low-pass sections
// used by the denoise pipeline's band-limiting stage.
package biquad

import "math"

// Filter is a single Direct-Form-I biquad section.
//
// y[n] = b0*x[n] + b1*x[n-1] + b2*x[n-2] - a1*y[n-1] - a2*y[n-2]
//
// Zero value is not usable; construct with NewHighpass or NewLowpass.
type Filter struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64
	y1, y2 float64
}

// NewHighpass builds a Butterworth high-pass section at cutoff Hz for the
// given sampleRate, Q fixed at the standard Butterworth value (1/sqrt(2)).
func NewHighpass(sampleRate, cutoff float64) *Filter {
	return newButterworth(sampleRate, cutoff, true)
}

// NewLowpass builds a Butterworth low-pass section at cutoff Hz for the
// given sampleRate, Q fixed at the standard Butterworth value (1/sqrt(2)).
func NewLowpass(sampleRate, cutoff float64) *Filter {
	return newButterworth(sampleRate, cutoff, false)
}

const butterworthQ = 0.70710678118654752440 // 1/sqrt(2)

func newButterworth(sampleRate, cutoff float64, highpass bool) *Filter {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * butterworthQ)

	var b0, b1, b2, a0, a1, a2 float64
	if highpass {
		b0 = (1 + cosW0) / 2
		b1 = -(1 + cosW0)
		b2 = (1 + cosW0) / 2
	} else {
		b0 = (1 - cosW0) / 2
		b1 = 1 - cosW0
		b2 = (1 - cosW0) / 2
	}
	a0 = 1 + alpha
	a1 = -2 * cosW0
	a2 = 1 - alpha

	return &Filter{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

// Process filters a single sample and advances the delay line.
func (f *Filter) Process(x float32) float32 {
	xf := float64(x)
	y := f.b0*xf + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2

	f.x2 = f.x1
	f.x1 = xf
	f.y2 = f.y1
	f.y1 = y

	return float32(y)
}

// ProcessFrame filters frame in place.
func (f *Filter) ProcessFrame(frame []float32) {
	for i, s := range frame {
		frame[i] = f.Process(s)
	}
}

// Reset zeros the delay line, leaving coefficients untouched.
func (f *Filter) Reset() {
	f.x1, f.x2 = 0, 0
	f.y1, f.y2 = 0, 0
}
