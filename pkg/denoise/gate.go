package denoise

const (
	// gateHysteresisBand widens the energy-assisted speech band below
	// the VAD threshold, catching quiet or breathy speech whose VAD
	// probability falls just short of the hard threshold but whose
	// energy is clearly above ambient.
	gateHysteresisBand = 0.12

	// gateHoldFrames is how many additional frames the gate stays open
	// after voice activity drops below threshold, roughly 150ms at
	// 10ms frames.
	gateHoldFrames = 15

	// gateCloseCoeff and gateOpenCoeff are the one-pole smoothing
	// coefficients applied to the gate's target gain: closing is fast
	// (~15ms) to cut noise promptly, opening is slower (~60ms) so
	// onsets of speech aren't clipped.
	gateCloseCoeff = 0.40
	gateOpenCoeff  = 0.15

	// gateFloorMultiplier and gateFallbackThreshold derive the gate's
	// own energy threshold from the learned noise floor, falling back
	// to a fixed value before the floor has calibrated.
	gateFloorMultiplier   = 1.5
	gateFallbackThreshold = 0.002

	// gateEnergyAssistMultiplier is how far above the gate threshold
	// post-filter RMS must sit for condition (b) to assert speech.
	gateEnergyAssistMultiplier = 2.0

	// gatePartialGainMax bounds the smooth partial-gain ramp applied
	// near the threshold during otherwise-silent frames.
	gatePartialGainMax = 0.5
)

// gateThresholdFor derives the gate's own energy threshold from the
// learned noise floor: floor * 1.5 once the floor has calibrated past
// the absolute minimum, otherwise a fixed pre-calibration fallback.
func gateThresholdFor(noiseFloor float64) float64 {
	if noiseFloor > noiseFloorAbsoluteMin {
		return noiseFloor * gateFloorMultiplier
	}
	return gateFallbackThreshold
}

// gateState tracks the adaptive gate's hold timer and smoothed gain
// across frames. It is owned exclusively by the pipeline's worker.
type gateState struct {
	holdCounter int
	smoothGain  float64
}

func newGateState() *gateState {
	return &gateState{}
}

// step advances the gate by one frame and returns the smoothed gain to
// apply to the frame (always in [0,1]). vad and userThreshold are the
// effective VAD probability and the user's configured VAD threshold;
// postFilterRMS and gateThreshold are the post-filter energy and the
// gate's own energy threshold (see gateThresholdFor).
func (g *gateState) step(vad, userThreshold, postFilterRMS, gateThreshold float64) float64 {
	speechAsserted := vad >= userThreshold ||
		(vad >= userThreshold-gateHysteresisBand && postFilterRMS > gateEnergyAssistMultiplier*gateThreshold)

	var target float64
	switch {
	case speechAsserted:
		g.holdCounter = gateHoldFrames
		target = 1.0
	case g.holdCounter > 0:
		g.holdCounter--
		target = 1.0
	case postFilterRMS < gateThreshold:
		target = 0.0
	default:
		target = clamp01((postFilterRMS - gateThreshold) / gateThreshold)
		if target > gatePartialGainMax {
			target = gatePartialGainMax
		}
	}

	coeff := gateOpenCoeff
	if target < g.smoothGain {
		coeff = gateCloseCoeff
	}
	g.smoothGain += coeff * (target - g.smoothGain)

	if g.smoothGain < 0 {
		g.smoothGain = 0
	}
	if g.smoothGain > 1 {
		g.smoothGain = 1
	}
	return g.smoothGain
}
