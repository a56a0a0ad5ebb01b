package biquad_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MdSalmanTd/noiceguard/pkg/biquad"
)

func TestHighpassAttenuatesDC(t *testing.T) {
	f := biquad.NewHighpass(48000, 80)
	var last float32
	for i := 0; i < 2000; i++ {
		last = f.Process(1.0)
	}
	require.Less(t, math.Abs(float64(last)), 0.01)
}

func TestLowpassPassesDC(t *testing.T) {
	f := biquad.NewLowpass(48000, 8000)
	var last float32
	for i := 0; i < 2000; i++ {
		last = f.Process(1.0)
	}
	require.InDelta(t, 1.0, last, 0.01)
}

func TestResetClearsState(t *testing.T) {
	f := biquad.NewLowpass(48000, 8000)
	for i := 0; i < 10; i++ {
		f.Process(1.0)
	}
	f.Reset()
	first := f.Process(0)
	require.Equal(t, float32(0), first)
}

func TestProcessFrameMatchesProcess(t *testing.T) {
	a := biquad.NewHighpass(48000, 80)
	b := biquad.NewHighpass(48000, 80)

	frame := []float32{0.1, 0.2, -0.3, 0.4, -0.5}
	want := make([]float32, len(frame))
	for i, s := range frame {
		want[i] = a.Process(s)
	}

	got := append([]float32{}, frame...)
	b.ProcessFrame(got)

	require.Equal(t, want, got)
}
