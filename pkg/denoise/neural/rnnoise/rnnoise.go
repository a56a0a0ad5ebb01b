//go:build rnnoise
// +build rnnoise

// Package rnnoise cgo-wraps the RNNoise library as a denoise.Denoiser.
package rnnoise

import (
	"fmt"
	"unsafe"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
)

/*
#cgo pkg-config: rnnoise
#cgo CFLAGS: -march=native
#include <rnnoise.h>
*/
import "C"

// Denoiser drives a single RNNoise state across the lifetime of a
// stream. It is not safe for concurrent use; the pipeline that owns it
// calls Process from one worker goroutine only.
type Denoiser struct {
	state *C.DenoiseState
}

var _ denoise.Denoiser = (*Denoiser)(nil)

// New allocates a fresh RNNoise state.
func New() (*Denoiser, error) {
	state := C.rnnoise_create(nil)
	if state == nil {
		return nil, fmt.Errorf("rnnoise: rnnoise_create returned nil")
	}
	return &Denoiser{state: state}, nil
}

// Process denoises frame in place and returns the frame's voice-activity
// probability.
func (d *Denoiser) Process(frame []float32) (float64, error) {
	if len(frame) != denoise.FrameSize {
		return 0, denoise.ErrWrongFrameSize
	}
	ptr := (*C.float)(unsafe.Pointer(unsafe.SliceData(frame)))
	vad := C.rnnoise_process_frame(d.state, ptr, ptr)
	return float64(vad), nil
}

// Close releases the native RNNoise state. Double-close returns an
// error rather than double-freeing.
func (d *Denoiser) Close() error {
	if d.state == nil {
		return fmt.Errorf("rnnoise: double-close attempt")
	}
	C.rnnoise_destroy(d.state)
	d.state = nil
	return nil
}
