package denoise

import (
	"math"
	"sync/atomic"

	"github.com/MdSalmanTd/noiceguard/pkg/biquad"
)

const (
	// neuralScale presents float32 samples in the nominal int16 range
	// to the neural denoiser kernel, matching the scaling its training
	// data was produced at.
	neuralScale = 32767.0

	highpassCutoffHz = 80.0
	lowpassCutoffHz  = 8000.0

	// spectralClampGateThreshold: the clamp only zeroes samples when
	// the gate is already most of the way closed, so it can't clip a
	// quiet but genuine voice onset.
	spectralClampGateThreshold = 0.3

	// spectralClampMultiplier and spectralClampAbsoluteMultiplier set
	// the per-sample magnitude below which the clamp zeroes a sample:
	// max(noiseFloor*spectralClampMultiplier, absoluteMinFloor*spectralClampAbsoluteMultiplier).
	spectralClampMultiplier         = 2.0
	spectralClampAbsoluteMultiplier = 3.0

	// halfThresholdDivisor derives the noise-floor contribution gate
	// from half the user's VAD threshold, keeping speech from leaking
	// into the ambient-noise estimate.
	halfThresholdDivisor = 2.0

	// DefaultVADThreshold and DefaultSuppressionLevel are the engine's
	// documented defaults.
	DefaultVADThreshold     = 0.65
	DefaultSuppressionLevel = 1.0
)

// Pipeline runs the full per-frame denoise chain: double-pass neural
// denoising, band-limiting, adaptive gating, spectral clamp, and
// comfort noise. A Pipeline is owned by exactly one worker goroutine;
// Process must never be called concurrently with itself. The tunable
// setters are safe to call from any goroutine at any time.
type Pipeline struct {
	passA, passB Denoiser

	hpf *biquad.Filter
	lpf *biquad.Filter

	noiseFloor *noiseFloorTracker
	gate       *gateState
	comfort    *comfortNoiseGenerator

	suppressionLevel atomic.Uint64 // float64 bits
	vadThreshold     atomic.Uint64 // float64 bits
	comfortEnabled   atomic.Bool
	bypass           atomic.Bool

	metrics Metrics

	scratch [FrameSize]float32
	dry     [FrameSize]float32
}

// New builds a Pipeline driving two independent Denoiser instances (one
// per pass) with the documented defaults.
func New(passA, passB Denoiser) *Pipeline {
	p := &Pipeline{
		passA:      passA,
		passB:      passB,
		hpf:        biquad.NewHighpass(SampleRate, highpassCutoffHz),
		lpf:        biquad.NewLowpass(SampleRate, lowpassCutoffHz),
		noiseFloor: newNoiseFloorTracker(),
		gate:       newGateState(),
		comfort:    newComfortNoiseGenerator(true),
	}
	p.SetSuppressionLevel(DefaultSuppressionLevel)
	p.SetVADThreshold(DefaultVADThreshold)
	p.comfortEnabled.Store(true)
	return p
}

// SetSuppressionLevel sets the wet/dry blend in [0,1], 0 meaning
// pass-through and 1 meaning fully denoised. Out-of-range inputs are
// silently clamped.
func (p *Pipeline) SetSuppressionLevel(level float64) {
	storeFloat(&p.suppressionLevel, clamp01(level))
}

// SetVADThreshold sets the gate's center threshold in [0,1].
// Out-of-range inputs are silently clamped.
func (p *Pipeline) SetVADThreshold(threshold float64) {
	storeFloat(&p.vadThreshold, clamp01(threshold))
}

// SetComfortNoise toggles comfort-noise fill during confident silence.
func (p *Pipeline) SetComfortNoise(enabled bool) {
	p.comfortEnabled.Store(enabled)
}

// SetBypass, when enabled, makes Process copy input to output
// unmodified, for A/B comparison and the bypass-identity test property.
func (p *Pipeline) SetBypass(enabled bool) {
	p.bypass.Store(enabled)
}

// Metrics returns the pipeline's atomic metrics block.
func (p *Pipeline) Metrics() *Metrics {
	return &p.metrics
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// spectralClampMagnitude derives the per-sample magnitude below which
// the spectral clamp zeroes a sample, from the current noise floor.
func spectralClampMagnitude(noiseFloor float64) float64 {
	magnitude := noiseFloor * spectralClampMultiplier
	if floor := noiseFloorAbsoluteMin * spectralClampAbsoluteMultiplier; magnitude < floor {
		magnitude = floor
	}
	return magnitude
}

// applySpectralClamp zeroes every sample whose magnitude falls below
// magnitude, leaving samples at or above it untouched so that harmonics
// poking through the noise floor survive.
func applySpectralClamp(frame []float32, magnitude float64) {
	for i := range frame {
		if math.Abs(float64(frame[i])) < magnitude {
			frame[i] = 0
		}
	}
}

func rms(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// Process runs one frame through the full chain in place. frame must be
// exactly FrameSize samples. It returns the frame's voice-activity
// probability (the max of the two neural passes).
func (p *Pipeline) Process(frame []float32) (float64, error) {
	if len(frame) != FrameSize {
		return 0, ErrWrongFrameSize
	}

	inputRMS := rms(frame)
	p.metrics.setInputRMS(inputRMS)

	suppression := loadFloat(&p.suppressionLevel)
	if p.bypass.Load() || suppression <= 0 {
		p.metrics.setOutputRMS(inputRMS)
		p.metrics.setVADProbability(0)
		p.metrics.incFramesSeen()
		return 0, nil
	}

	copy(p.dry[:], frame)
	copy(p.scratch[:], frame)

	for i := range p.scratch {
		p.scratch[i] *= neuralScale
	}

	vadA, err := p.passA.Process(p.scratch[:])
	if err != nil {
		return 0, err
	}
	vadB, err := p.passB.Process(p.scratch[:])
	if err != nil {
		return 0, err
	}
	vad := vadA
	if vadB > vad {
		vad = vadB
	}

	for i := range p.scratch {
		p.scratch[i] /= neuralScale
	}

	for i := range frame {
		frame[i] = float32(float64(p.dry[i])*(1-suppression) + float64(p.scratch[i])*suppression)
	}

	p.hpf.ProcessFrame(frame)
	p.lpf.ProcessFrame(frame)

	postFilterRMS := rms(frame)

	threshold := loadFloat(&p.vadThreshold)
	noiseFloorContributes := vad < threshold/halfThresholdDivisor
	noiseFloor := p.noiseFloor.update(postFilterRMS, noiseFloorContributes)
	p.metrics.setNoiseFloor(noiseFloor)

	gateThreshold := gateThresholdFor(noiseFloor)
	smoothGain := p.gate.step(vad, threshold, postFilterRMS, gateThreshold)
	p.metrics.setSmoothGain(smoothGain)

	for i := range frame {
		frame[i] = float32(float64(frame[i]) * smoothGain)
	}

	if vad < threshold && smoothGain < spectralClampGateThreshold {
		applySpectralClamp(frame, spectralClampMagnitude(noiseFloor))
	}

	comfortOn := p.comfortEnabled.Load()
	p.comfort.setEnabled(comfortOn)
	if comfortOn {
		for i := range frame {
			frame[i] += p.comfort.sample(smoothGain)
		}
	}

	p.metrics.setOutputRMS(rms(frame))
	p.metrics.setVADProbability(vad)
	p.metrics.incFramesSeen()

	return vad, nil
}

// Reset clears all worker-owned state: biquad delay lines, gate hold
// timer and smoothed gain, noise floor estimate, and comfort-noise
// shaping memory. Call after a restart so stale state from before a
// device fault doesn't leak into the first frames of the new stream.
func (p *Pipeline) Reset() {
	p.hpf.Reset()
	p.lpf.Reset()
	p.noiseFloor = newNoiseFloorTracker()
	p.gate = newGateState()
	p.comfort = newComfortNoiseGenerator(p.comfortEnabled.Load())
}
