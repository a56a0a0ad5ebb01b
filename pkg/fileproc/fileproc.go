// Package fileproc runs the denoise pipeline over a raw float32 PCM
// file instead of live devices, for golden-file testing of the DSP
// chain without any audio hardware. It wires the same circular
// buffering and byte-counting helpers the reference noise-suppression
// stream and record CLI use for their own offline/file-backed paths.
package fileproc

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/datacounter"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
)

// BytesPerFrame is the byte size of one denoise.FrameSize frame of
// float32 samples.
const BytesPerFrame = denoise.FrameSize * 4

// DefaultBufferSize sizes the circular staging buffer generously
// relative to one frame, matching the reference stream's practice of
// keeping several frames of slack rather than sizing to the exact
// frame length.
const DefaultBufferSize = BytesPerFrame * 8

// Process reads raw little-endian float32 PCM samples from r, denoises
// them frame by frame through pipeline, and writes the result to w. The
// input is zero-padded to a whole number of frames before the final
// write. It returns the total bytes read and written.
func Process(ctx context.Context, pipeline *denoise.Pipeline, r io.Reader, w io.Writer) (read, written int64, _err error) {
	rc := datacounter.NewReaderCounter(r)
	wc := datacounter.NewWriterCounter(w)
	defer func() {
		read = int64(rc.Count())
		written = int64(wc.Count())
	}()

	staging := circular.NewBuffer(DefaultBufferSize)

	readBuf := make([]byte, BytesPerFrame)
	frame := make([]float32, denoise.FrameSize)

	for {
		n, err := io.ReadFull(rc, readBuf)
		if n == 0 && err != nil {
			if err == io.EOF {
				return read, written, nil
			}
			return read, written, fmt.Errorf("fileproc: read: %w", err)
		}
		if n < len(readBuf) {
			for i := n; i < len(readBuf); i++ {
				readBuf[i] = 0
			}
		}

		if _, err := staging.Write(readBuf); err != nil {
			return read, written, fmt.Errorf("fileproc: stage input: %w", err)
		}
		if _, err := staging.Read(readBuf); err != nil {
			return read, written, fmt.Errorf("fileproc: unstage input: %w", err)
		}

		bytesToFloats(readBuf, frame)

		if _, err := pipeline.Process(frame); err != nil {
			return read, written, fmt.Errorf("fileproc: process frame: %w", err)
		}

		floatsToBytes(frame, readBuf)
		if _, err := wc.Write(readBuf); err != nil {
			return read, written, fmt.Errorf("fileproc: write: %w", err)
		}

		if err == io.ErrUnexpectedEOF || err == io.EOF {
			logger.Debugf(ctx, "fileproc: final short frame, padded with zeroes")
			return read, written, nil
		}
	}
}

func bytesToFloats(src []byte, dst []float32) {
	for i := range dst {
		bits := uint32(src[i*4]) | uint32(src[i*4+1])<<8 | uint32(src[i*4+2])<<16 | uint32(src[i*4+3])<<24
		dst[i] = math.Float32frombits(bits)
	}
}

func floatsToBytes(src []float32, dst []byte) {
	for i, f := range src {
		bits := math.Float32bits(f)
		dst[i*4] = byte(bits)
		dst[i*4+1] = byte(bits >> 8)
		dst[i*4+2] = byte(bits >> 16)
		dst[i*4+3] = byte(bits >> 24)
	}
}
