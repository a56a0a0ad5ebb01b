// Package hostaudio is the contract the engine drives device I/O
// through. A Backend enumerates devices and opens Streams; a Stream
// drives one direction of one device via blocking Read/Write calls into
// a caller-owned buffer, the same shape every portaudio binding in this
// codebase's lineage actually exposes.
package hostaudio

import "time"

// Device describes one audio device as reported by a Backend.
type Device struct {
	Index                   int
	Name                    string
	MaxInputChannels        int
	MaxOutputChannels       int
	DefaultSampleRate       float64
	DefaultLowInputLatency  time.Duration
	DefaultLowOutputLatency time.Duration
}

// Stream drives one direction (input or output) of one open device. Its
// Read/Write calls block until exactly one buffer's worth of samples has
// been transferred, or the stream faults.
type Stream interface {
	Start() error
	Stop() error
	Close() error

	// Read blocks until the stream's bound input buffer has been
	// filled from the device. Only valid on an input stream.
	Read() error

	// Write blocks until the stream's bound output buffer has been
	// drained to the device. Only valid on an output stream.
	Write() error
}

// Backend is one host audio library binding (PortAudio, PulseAudio, ...).
type Backend interface {
	Name() string
	Initialize() error
	Terminate() error

	Devices() ([]Device, error)
	DefaultInputDevice() (Device, error)
	DefaultOutputDevice() (Device, error)

	// OpenInputStream opens dev for capture at sampleRate, reading
	// framesPerBuffer samples into buf on each Read. exclusive is a
	// request, not a guarantee; the backends in this tree accept it and
	// open the stream the same way whatever its value, without logging
	// or returning an error about it.
	OpenInputStream(dev Device, sampleRate float64, framesPerBuffer int, buf []float32, exclusive bool) (Stream, error)

	// OpenOutputStream opens dev for playback at sampleRate, writing
	// framesPerBuffer samples from buf on each Write.
	OpenOutputStream(dev Device, sampleRate float64, framesPerBuffer int, buf []float32, exclusive bool) (Stream, error)
}
