package fileproc_test

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
	"github.com/MdSalmanTd/noiceguard/pkg/denoise/neural/energyvad"
	"github.com/MdSalmanTd/noiceguard/pkg/fileproc"
)

func encodeFrame(frame []float32) []byte {
	buf := make([]byte, len(frame)*4)
	for i, f := range frame {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func TestProcessRoundTripsBypass(t *testing.T) {
	pipeline := denoise.New(energyvad.New(), energyvad.New())
	pipeline.SetBypass(true)

	frame := make([]float32, denoise.FrameSize)
	for i := range frame {
		frame[i] = float32(math.Sin(float64(i) * 0.1))
	}
	input := encodeFrame(frame)

	var out bytes.Buffer
	read, written, err := fileproc.Process(context.Background(), pipeline, bytes.NewReader(input), &out)
	require.NoError(t, err)
	require.EqualValues(t, len(input), read)
	require.EqualValues(t, len(input), written)
	require.Equal(t, input, out.Bytes())
}

func TestProcessPadsShortFinalFrame(t *testing.T) {
	pipeline := denoise.New(energyvad.New(), energyvad.New())

	shortFrame := make([]float32, denoise.FrameSize/2)
	input := encodeFrame(shortFrame)

	var out bytes.Buffer
	_, written, err := fileproc.Process(context.Background(), pipeline, bytes.NewReader(input), &out)
	require.NoError(t, err)
	require.EqualValues(t, fileproc.BytesPerFrame, written)
}
