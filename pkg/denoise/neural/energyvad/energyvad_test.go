package energyvad_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
	"github.com/MdSalmanTd/noiceguard/pkg/denoise/neural/energyvad"
)

func TestRejectsWrongFrameSize(t *testing.T) {
	d := energyvad.New()
	_, err := d.Process(make([]float32, 10))
	require.ErrorIs(t, err, denoise.ErrWrongFrameSize)
}

func TestSilenceIsAttenuatedAndLowVAD(t *testing.T) {
	d := energyvad.New()
	frame := make([]float32, denoise.FrameSize)
	var vad float64
	for i := 0; i < silenceFramesToCloseForTest; i++ {
		var err error
		vad, err = d.Process(frame)
		require.NoError(t, err)
	}
	require.Less(t, vad, 0.5)
}

const silenceFramesToCloseForTest = 8
