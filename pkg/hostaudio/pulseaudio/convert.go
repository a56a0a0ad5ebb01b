package pulseaudio

import "unsafe"

// floatsToBytes reinterprets a []float32 as its underlying little-endian
// byte representation, the same unsafe.Slice/unsafe.SliceData pattern
// the reference RNNoise wrapper uses to avoid a copy at the byte/float
// boundary.
func floatsToBytes(buf []float32) []byte {
	if len(buf) == 0 {
		return nil
	}
	ptr := unsafe.Pointer(unsafe.SliceData(buf))
	return unsafe.Slice((*byte)(ptr), len(buf)*4)
}
