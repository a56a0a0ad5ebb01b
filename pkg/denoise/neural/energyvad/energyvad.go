// Package energyvad implements an always-buildable, pure-Go
// denoise.Denoiser. It is not a neural denoiser: it is an RMS-gated
// envelope follower with hysteresis, grounded on the same technique as a
// classic amplitude-threshold VAD. It exists so pkg/denoise and
// pkg/engine can be built and tested without a native RNNoise build,
// and so the engine has a genuine (if much weaker) denoiser to run
// against when compiled without the rnnoise tag.
package energyvad

import (
	"math"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
)

const (
	defaultSpeechThreshold  = 0.02
	defaultSilenceThreshold = 0.01
	speechFramesToOpen      = 2
	silenceFramesToClose    = 5
	attenuationFloor        = 0.15
)

// Denoiser tracks per-frame RMS against a hysteresis band and
// attenuates frames it judges to be non-speech, reporting a VAD
// probability derived from the same energy measurement.
type Denoiser struct {
	speechThreshold  float64
	silenceThreshold float64

	inSpeech     bool
	speechCount  int
	silenceCount int
}

var _ denoise.Denoiser = (*Denoiser)(nil)

// New returns a Denoiser tuned for FrameSize frames at denoise.SampleRate.
func New() *Denoiser {
	return &Denoiser{
		speechThreshold:  defaultSpeechThreshold,
		silenceThreshold: defaultSilenceThreshold,
	}
}

func rms(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// Process implements denoise.Denoiser.
func (d *Denoiser) Process(frame []float32) (float64, error) {
	if len(frame) != denoise.FrameSize {
		return 0, denoise.ErrWrongFrameSize
	}

	level := rms(frame) / 32767.0 // undo the pipeline's neural-kernel scaling

	if d.inSpeech {
		if level < d.silenceThreshold {
			d.silenceCount++
			d.speechCount = 0
			if d.silenceCount >= silenceFramesToClose {
				d.inSpeech = false
				d.silenceCount = 0
			}
		} else {
			d.silenceCount = 0
		}
	} else {
		if level >= d.speechThreshold {
			d.speechCount++
			d.silenceCount = 0
			if d.speechCount >= speechFramesToOpen {
				d.inSpeech = true
				d.speechCount = 0
			}
		} else {
			d.speechCount = 0
		}
	}

	if !d.inSpeech {
		for i := range frame {
			frame[i] *= attenuationFloor
		}
	}

	vad := math.Min(1, level/d.speechThreshold)
	if d.inSpeech && vad < 0.5 {
		vad = 0.5
	}
	return vad, nil
}

// Close is a no-op; Denoiser holds no native resources.
func (d *Denoiser) Close() error {
	return nil
}
