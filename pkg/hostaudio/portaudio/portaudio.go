// Package portaudio adapts github.com/gordonklaus/portaudio to the
// hostaudio.Backend contract. It is the primary backend: an
// OpenStream call bound to a pre-allocated buffer, drained by blocking
// Read/Write exactly as the reference recorder and the reference
// loopback client both drive it.
package portaudio

import (
	"fmt"
	"time"

	paLib "github.com/gordonklaus/portaudio"

	"github.com/MdSalmanTd/noiceguard/pkg/hostaudio"
	"github.com/MdSalmanTd/noiceguard/pkg/hostaudio/registry"
)

const Priority = 200

func init() {
	registry.Register(Priority, backendFactory{})
}

type backendFactory struct{}

func (backendFactory) NewBackend() hostaudio.Backend { return &Backend{} }

// Backend wraps the process-wide PortAudio library handle.
type Backend struct{}

var _ hostaudio.Backend = (*Backend)(nil)

func (b *Backend) Name() string { return "portaudio" }

func (b *Backend) Initialize() error {
	if err := paLib.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	return nil
}

func (b *Backend) Terminate() error {
	if err := paLib.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}

func toDevice(index int, d *paLib.DeviceInfo) hostaudio.Device {
	return hostaudio.Device{
		Index:                   index,
		Name:                    d.Name,
		MaxInputChannels:        d.MaxInputChannels,
		MaxOutputChannels:       d.MaxOutputChannels,
		DefaultSampleRate:       d.DefaultSampleRate,
		DefaultLowInputLatency:  d.DefaultLowInputLatency,
		DefaultLowOutputLatency: d.DefaultLowOutputLatency,
	}
}

func (b *Backend) Devices() ([]hostaudio.Device, error) {
	devices, err := paLib.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: devices: %w", err)
	}
	result := make([]hostaudio.Device, len(devices))
	for i, d := range devices {
		result[i] = toDevice(i, d)
	}
	return result, nil
}

// indexOf recovers target's position in the full device list. The
// binding's DefaultInputDevice/DefaultOutputDevice calls build a fresh
// *DeviceInfo rather than handing back one of the pointers Devices()
// returned, so the match goes by the identifying fields PortAudio
// reports for a device rather than pointer identity.
func indexOf(devices []*paLib.DeviceInfo, target *paLib.DeviceInfo) (int, error) {
	for i, d := range devices {
		if d.Name == target.Name &&
			d.MaxInputChannels == target.MaxInputChannels &&
			d.MaxOutputChannels == target.MaxOutputChannels &&
			d.DefaultSampleRate == target.DefaultSampleRate {
			return i, nil
		}
	}
	return 0, fmt.Errorf("portaudio: default device %q not found in device list", target.Name)
}

func (b *Backend) DefaultInputDevice() (hostaudio.Device, error) {
	d, err := paLib.DefaultInputDevice()
	if err != nil {
		return hostaudio.Device{}, fmt.Errorf("portaudio: default input device: %w", err)
	}
	devices, err := paLib.Devices()
	if err != nil {
		return hostaudio.Device{}, fmt.Errorf("portaudio: default input device: %w", err)
	}
	index, err := indexOf(devices, d)
	if err != nil {
		return hostaudio.Device{}, err
	}
	return toDevice(index, d), nil
}

func (b *Backend) DefaultOutputDevice() (hostaudio.Device, error) {
	d, err := paLib.DefaultOutputDevice()
	if err != nil {
		return hostaudio.Device{}, fmt.Errorf("portaudio: default output device: %w", err)
	}
	devices, err := paLib.Devices()
	if err != nil {
		return hostaudio.Device{}, fmt.Errorf("portaudio: default output device: %w", err)
	}
	index, err := indexOf(devices, d)
	if err != nil {
		return hostaudio.Device{}, err
	}
	return toDevice(index, d), nil
}

func deviceByIndex(index int) (*paLib.DeviceInfo, error) {
	devices, err := paLib.Devices()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(devices) {
		return nil, fmt.Errorf("portaudio: device index %d out of range", index)
	}
	return devices[index], nil
}

func (b *Backend) OpenInputStream(dev hostaudio.Device, sampleRate float64, framesPerBuffer int, buf []float32, exclusive bool) (hostaudio.Stream, error) {
	paDev, err := deviceByIndex(dev.Index)
	if err != nil {
		return nil, err
	}
	params := paLib.StreamParameters{
		Input: paLib.StreamDeviceParameters{
			Device:   paDev,
			Channels: 1,
			Latency:  latencyFor(paDev, true, exclusive),
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := paLib.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input stream on %q: %w", dev.Name, err)
	}
	return &Stream{stream: stream}, nil
}

func (b *Backend) OpenOutputStream(dev hostaudio.Device, sampleRate float64, framesPerBuffer int, buf []float32, exclusive bool) (hostaudio.Stream, error) {
	paDev, err := deviceByIndex(dev.Index)
	if err != nil {
		return nil, err
	}
	params := paLib.StreamParameters{
		Output: paLib.StreamDeviceParameters{
			Device:   paDev,
			Channels: 1,
			Latency:  latencyFor(paDev, false, exclusive),
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := paLib.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open output stream on %q: %w", dev.Name, err)
	}
	return &Stream{stream: stream}, nil
}

// latencyFor requests the device's low latency unconditionally: this
// binding has no exposed knob for WASAPI exclusive/pro-audio mode, so
// exclusive is accepted but does not change the parameters passed here.
// At the pkg/engine layer it only decides whether a failed open is
// retried with exclusive=false.
func latencyFor(d *paLib.DeviceInfo, input bool, exclusive bool) time.Duration {
	if input {
		return d.DefaultLowInputLatency
	}
	return d.DefaultLowOutputLatency
}

// Stream wraps an open PortAudio stream bound to a caller-owned buffer.
type Stream struct {
	stream *paLib.Stream
}

var _ hostaudio.Stream = (*Stream)(nil)

func (s *Stream) Start() error { return s.stream.Start() }
func (s *Stream) Stop() error  { return s.stream.Abort() }
func (s *Stream) Close() error { return s.stream.Close() }
func (s *Stream) Read() error  { return s.stream.Read() }
func (s *Stream) Write() error { return s.stream.Write() }
