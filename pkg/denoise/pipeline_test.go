package denoise_test

import (
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
	"github.com/MdSalmanTd/noiceguard/pkg/denoise/neural/energyvad"
)

func newTestPipeline() *denoise.Pipeline {
	return denoise.New(energyvad.New(), energyvad.New())
}

func silentFrame() []float32 {
	return make([]float32, denoise.FrameSize)
}

func toneFrame(amplitude float64) []float32 {
	frame := make([]float32, denoise.FrameSize)
	for i := range frame {
		frame[i] = float32(amplitude * math.Sin(2*math.Pi*440*float64(i)/denoise.SampleRate))
	}
	return frame
}

func TestRejectsWrongFrameSize(t *testing.T) {
	p := newTestPipeline()
	_, err := p.Process(make([]float32, 10))
	require.ErrorIs(t, err, denoise.ErrWrongFrameSize)
}

func TestBypassIsIdentity(t *testing.T) {
	p := newTestPipeline()
	p.SetBypass(true)

	frame := toneFrame(0.5)
	want := append([]float32{}, frame...)

	vad, err := p.Process(frame)
	require.NoError(t, err)
	require.Equal(t, want, frame)
	require.Zero(t, vad)
}

func TestSuppressionLevelZeroIsBitExactIdentity(t *testing.T) {
	p := newTestPipeline()
	p.SetSuppressionLevel(0)

	frame := toneFrame(0.5)
	want := append([]float32{}, frame...)

	vad, err := p.Process(frame)
	require.NoError(t, err)
	require.Equal(t, want, frame)
	require.Zero(t, vad)
	require.Zero(t, p.Metrics().Snapshot().VADProbability)
}

func TestSmoothGainAlwaysInUnitRange(t *testing.T) {
	p := newTestPipeline()
	frames := []([]float32){toneFrame(0.8), silentFrame(), toneFrame(0.02), silentFrame()}

	for _, f := range frames {
		_, err := p.Process(f)
		require.NoError(t, err)
		snap := p.Metrics().Snapshot()
		require.GreaterOrEqual(t, snap.SmoothGain, 0.0, "metrics: %s", spew.Sdump(snap))
		require.LessOrEqual(t, snap.SmoothGain, 1.0, "metrics: %s", spew.Sdump(snap))
	}
}

func TestPureSilenceConverges(t *testing.T) {
	p := newTestPipeline()
	frame := silentFrame()

	var lastGain float64
	for i := 0; i < 400; i++ {
		_, err := p.Process(frame)
		require.NoError(t, err)
		lastGain = p.Metrics().Snapshot().SmoothGain
	}

	require.Less(t, lastGain, 0.1)
}

func TestNoiseFloorNeverBelowAbsoluteMinimum(t *testing.T) {
	p := newTestPipeline()
	frame := silentFrame()
	for i := 0; i < 50; i++ {
		_, err := p.Process(frame)
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, p.Metrics().Snapshot().NoiseFloor, 0.0003)
}

func TestFrameCounterMonotonic(t *testing.T) {
	p := newTestPipeline()
	frame := silentFrame()
	for i := 1; i <= 5; i++ {
		_, err := p.Process(frame)
		require.NoError(t, err)
		require.EqualValues(t, i, p.Metrics().Snapshot().FramesSeen)
	}
}

func TestSuppressionLevelAndThresholdAreClamped(t *testing.T) {
	p := newTestPipeline()
	p.SetSuppressionLevel(5)
	p.SetVADThreshold(-3)

	frame := toneFrame(0.5)
	_, err := p.Process(frame)
	require.NoError(t, err)
}

func TestSustainedToneOpensGate(t *testing.T) {
	p := newTestPipeline()

	var lastGain float64
	for i := 0; i < 30; i++ {
		// Process works in place, so each frame is a fresh copy of the tone.
		_, err := p.Process(toneFrame(0.8))
		require.NoError(t, err)
		lastGain = p.Metrics().Snapshot().SmoothGain
	}
	require.Greater(t, lastGain, 0.5)
}

func TestSpeechToSilenceGateDecays(t *testing.T) {
	p := newTestPipeline()

	for i := 0; i < 30; i++ {
		_, err := p.Process(toneFrame(0.8))
		require.NoError(t, err)
	}
	openGain := p.Metrics().Snapshot().SmoothGain

	for i := 0; i < 60; i++ {
		_, err := p.Process(silentFrame())
		require.NoError(t, err)
	}
	closedGain := p.Metrics().Snapshot().SmoothGain

	require.Less(t, closedGain, openGain)
}

func TestResetClearsWorkerState(t *testing.T) {
	p := newTestPipeline()
	for i := 0; i < 30; i++ {
		_, err := p.Process(toneFrame(0.8))
		require.NoError(t, err)
	}
	require.Greater(t, p.Metrics().Snapshot().SmoothGain, 0.5)

	p.Reset()

	silence := silentFrame()
	_, err := p.Process(silence)
	require.NoError(t, err)
	require.Less(t, p.Metrics().Snapshot().SmoothGain, 0.5)
}
