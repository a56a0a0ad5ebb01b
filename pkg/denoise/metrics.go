package denoise

import (
	"math"
	"sync/atomic"
)

// Metrics is an atomic scalar block updated by the pipeline's worker
// after every frame and read by any number of observers. Every field is
// independently consistent but the block as a whole is only
// eventually-consistent across fields — a reader may see an input RMS
// from frame N alongside a VAD probability from frame N+1. That is an
// accepted tradeoff: nothing here justifies a lock or a seqlock on the
// real-time path.
type Metrics struct {
	inputRMS       atomic.Uint64 // float64 bits
	outputRMS      atomic.Uint64 // float64 bits
	vadProbability atomic.Uint64 // float64 bits
	smoothGain     atomic.Uint64 // float64 bits
	noiseFloor     atomic.Uint64 // float64 bits
	framesSeen     atomic.Uint64
}

// Snapshot is a point-in-time copy of Metrics for callers that want a
// plain value.
type Snapshot struct {
	InputRMS       float64
	OutputRMS      float64
	VADProbability float64
	SmoothGain     float64
	NoiseFloor     float64
	FramesSeen     uint64
}

func (m *Metrics) setInputRMS(v float64)       { storeFloat(&m.inputRMS, v) }
func (m *Metrics) setOutputRMS(v float64)      { storeFloat(&m.outputRMS, v) }
func (m *Metrics) setVADProbability(v float64) { storeFloat(&m.vadProbability, v) }
func (m *Metrics) setSmoothGain(v float64)     { storeFloat(&m.smoothGain, v) }
func (m *Metrics) setNoiseFloor(v float64)     { storeFloat(&m.noiseFloor, v) }
func (m *Metrics) incFramesSeen()              { m.framesSeen.Add(1) }

// Snapshot returns the current values of every field.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		InputRMS:       loadFloat(&m.inputRMS),
		OutputRMS:      loadFloat(&m.outputRMS),
		VADProbability: loadFloat(&m.vadProbability),
		SmoothGain:     loadFloat(&m.smoothGain),
		NoiseFloor:     loadFloat(&m.noiseFloor),
		FramesSeen:     m.framesSeen.Load(),
	}
}

func storeFloat(a *atomic.Uint64, v float64) {
	a.Store(math.Float64bits(v))
}

func loadFloat(a *atomic.Uint64) float64 {
	return math.Float64frombits(a.Load())
}
