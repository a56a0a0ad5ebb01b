// Package denoise implements the per-frame noise-suppression chain: a
// double-pass neural denoiser, band-limiting, an adaptive voice-activity
// gate with hysteresis and hold, a spectral clamp for confident silence,
// and comfort noise.
package denoise

import "fmt"

// FrameSize is the fixed frame length the pipeline and every Denoiser
// implementation operate on: 10ms at 48kHz.
const FrameSize = 480

// SampleRate is the fixed operating rate of the pipeline.
const SampleRate = 48000

// Denoiser is the neural denoising kernel the pipeline drives twice per
// frame. Implementations must not allocate on Process and must be safe
// to call from a single dedicated worker goroutine (no internal
// concurrency is required of callers).
type Denoiser interface {
	// Process denoises frame in place and returns a [0,1] voice-activity
	// probability for that frame. len(frame) must equal FrameSize.
	Process(frame []float32) (vad float64, err error)
	Close() error
}

// ErrWrongFrameSize is returned by Denoiser.Process when given a frame
// whose length isn't FrameSize.
var ErrWrongFrameSize = fmt.Errorf("denoise: frame must be exactly %d samples", FrameSize)
