// Package spectrum provides a read-only diagnostic FFT snapshot of the
// audio passing through the engine, for a UI or other observer. It runs
// outside the real-time path: the worker publishes a decimated frame
// through a single-slot atomic pointer, and whichever goroutine calls
// Compute runs the FFT on the latest published frame, leaving it in
// place.
package spectrum

import (
	"math"
	"sync/atomic"

	"github.com/mjibson/go-dsp/fft"
)

// publishedFrame is the immutable payload behind the single-slot
// publish; once stored it is never mutated.
type publishedFrame struct {
	samples    []float32
	frameIndex uint64
}

// Snapshot is one magnitude spectrum taken from a single frame.
type Snapshot struct {
	Magnitudes []float64
	FrameIndex uint64
}

// Analyzer holds the most recently published frame and computes its
// magnitude spectrum on demand.
type Analyzer struct {
	latest atomic.Pointer[publishedFrame]
}

// NewAnalyzer returns an empty Analyzer; Compute returns the zero
// Snapshot until the first Publish.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Publish copies frame into a fresh immutable snapshot and makes it the
// latest one available to Compute. Safe to call from the worker
// goroutine; intended to be called only for decimated frames, not every
// frame, to keep its allocation off the hottest part of the path.
func (a *Analyzer) Publish(frame []float32, frameIndex uint64) {
	samples := make([]float32, len(frame))
	copy(samples, frame)
	a.latest.Store(&publishedFrame{samples: samples, frameIndex: frameIndex})
}

// Compute runs an FFT over the most recently published frame and
// returns its magnitude spectrum. Returns false if nothing has been
// published yet.
func (a *Analyzer) Compute() (Snapshot, bool) {
	pf := a.latest.Load()
	if pf == nil {
		return Snapshot{}, false
	}

	coeffs := make([]complex128, len(pf.samples))
	for i, s := range pf.samples {
		coeffs[i] = complex(float64(s), 0)
	}
	spectrum := fft.FFT(coeffs)

	magnitudes := make([]float64, len(spectrum)/2+1)
	for i := range magnitudes {
		c := spectrum[i]
		magnitudes[i] = magnitude(c)
	}

	return Snapshot{Magnitudes: magnitudes, FrameIndex: pf.frameIndex}, true
}

func magnitude(c complex128) float64 {
	re := real(c)
	im := imag(c)
	return math.Sqrt(re*re + im*im)
}
