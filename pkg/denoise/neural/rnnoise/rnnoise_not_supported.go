//go:build !rnnoise
// +build !rnnoise

package rnnoise

import (
	"fmt"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
)

// Denoiser is unusable without the rnnoise build tag; New always fails.
type Denoiser = denoise.Denoiser

// New reports that the binary was built without cgo RNNoise support.
// Callers should fall back to pkg/denoise/neural/energyvad.
func New() (Denoiser, error) {
	return nil, fmt.Errorf("rnnoise: built without tag 'rnnoise'")
}
