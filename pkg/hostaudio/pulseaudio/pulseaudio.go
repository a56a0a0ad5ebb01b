// Package pulseaudio adapts github.com/jfreymuth/pulse to the
// hostaudio.Backend contract. PulseAudio's Go binding is push/pull, not
// blocking read/write: NewRecord calls back into a pulse.Writer as data
// arrives, NewPlayback pulls from a pulse.Reader as the server wants
// more. Both are adapted into the blocking Stream shape with an
// io.Pipe, the same way the reference pulseaudio backend wraps its
// writer/reader types, one layer further out.
package pulseaudio

import (
	"fmt"
	"io"

	pulseLib "github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"github.com/MdSalmanTd/noiceguard/pkg/hostaudio"
	"github.com/MdSalmanTd/noiceguard/pkg/hostaudio/registry"
)

const Priority = 100

func init() {
	registry.Register(Priority, backendFactory{})
}

type backendFactory struct{}

func (backendFactory) NewBackend() hostaudio.Backend { return &Backend{} }

// Backend wraps a PulseAudio client connection.
type Backend struct {
	client *pulseLib.Client
}

var _ hostaudio.Backend = (*Backend)(nil)

func (b *Backend) Name() string { return "pulseaudio" }

func (b *Backend) Initialize() error {
	c, err := pulseLib.NewClient()
	if err != nil {
		return fmt.Errorf("pulseaudio: new client: %w", err)
	}
	b.client = c
	return nil
}

func (b *Backend) Terminate() error {
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	return nil
}

func (b *Backend) Devices() ([]hostaudio.Device, error) {
	var devices []hostaudio.Device
	if src, err := b.client.DefaultSource(); err == nil {
		devices = append(devices, hostaudio.Device{Index: 0, Name: src.Name(), MaxInputChannels: 1})
	}
	if sink, err := b.client.DefaultSink(); err == nil {
		devices = append(devices, hostaudio.Device{Index: 1, Name: sink.Name(), MaxOutputChannels: 1})
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("pulseaudio: no default source or sink")
	}
	return devices, nil
}

func (b *Backend) DefaultInputDevice() (hostaudio.Device, error) {
	src, err := b.client.DefaultSource()
	if err != nil {
		return hostaudio.Device{}, fmt.Errorf("pulseaudio: default source: %w", err)
	}
	return hostaudio.Device{Name: src.Name(), MaxInputChannels: 1}, nil
}

func (b *Backend) DefaultOutputDevice() (hostaudio.Device, error) {
	sink, err := b.client.DefaultSink()
	if err != nil {
		return hostaudio.Device{}, fmt.Errorf("pulseaudio: default sink: %w", err)
	}
	return hostaudio.Device{Name: sink.Name(), MaxOutputChannels: 1}, nil
}

func (b *Backend) OpenInputStream(dev hostaudio.Device, sampleRate float64, framesPerBuffer int, buf []float32, exclusive bool) (hostaudio.Stream, error) {
	pr, pw := io.Pipe()
	writer := &pulseWriter{Writer: pw}

	stream, err := b.client.NewRecord(
		writer,
		pulseLib.RecordSampleRate(int(sampleRate)),
		pulseLib.RecordChannels(proto.ChannelMap{proto.ChannelMono}),
	)
	if err != nil {
		return nil, fmt.Errorf("pulseaudio: new record stream: %w", err)
	}
	return &inputStream{pulse: stream, pipeReader: pr, buf: buf}, nil
}

func (b *Backend) OpenOutputStream(dev hostaudio.Device, sampleRate float64, framesPerBuffer int, buf []float32, exclusive bool) (hostaudio.Stream, error) {
	pr, pw := io.Pipe()
	reader := &pulseReader{Reader: pr}

	stream, err := b.client.NewPlayback(
		reader,
		pulseLib.PlaybackSampleRate(int(sampleRate)),
		pulseLib.PlaybackChannels(proto.ChannelMap{proto.ChannelMono}),
	)
	if err != nil {
		return nil, fmt.Errorf("pulseaudio: new playback stream: %w", err)
	}
	return &outputStream{pulse: stream, pipeWriter: pw, buf: buf}, nil
}

type pulseWriter struct {
	io.Writer
}

func (pulseWriter) Format() byte { return proto.FormatFloat32LE }

type pulseReader struct {
	io.Reader
}

func (pulseReader) Format() byte { return proto.FormatFloat32LE }

// inputStream adapts a push-model pulse.RecordStream (which writes
// arriving audio into the pipe as it receives it) into blocking Read
// calls that fill buf.
type inputStream struct {
	pulse      *pulseLib.RecordStream
	pipeReader *io.PipeReader
	buf        []float32
}

var _ hostaudio.Stream = (*inputStream)(nil)

func (s *inputStream) Start() error {
	s.pulse.Start()
	return s.pulse.Error()
}

func (s *inputStream) Stop() error {
	s.pulse.Stop()
	return nil
}

func (s *inputStream) Close() error {
	s.pulse.Close()
	return s.pipeReader.Close()
}

func (s *inputStream) Read() error {
	_, err := io.ReadFull(s.pipeReader, floatsToBytes(s.buf))
	if err != nil {
		return fmt.Errorf("pulseaudio: read: %w", err)
	}
	return nil
}

func (s *inputStream) Write() error {
	return fmt.Errorf("pulseaudio: Write called on an input stream")
}

// outputStream adapts a pull-model pulse.PlaybackStream (which reads
// from the pipe whenever the server wants more data) into blocking
// Write calls that drain buf.
type outputStream struct {
	pulse      *pulseLib.PlaybackStream
	pipeWriter *io.PipeWriter
	buf        []float32
}

var _ hostaudio.Stream = (*outputStream)(nil)

func (s *outputStream) Start() error {
	s.pulse.Start()
	return s.pulse.Error()
}

func (s *outputStream) Stop() error {
	s.pulse.Stop()
	return nil
}

func (s *outputStream) Close() error {
	s.pulse.Close()
	return s.pipeWriter.Close()
}

func (s *outputStream) Read() error {
	return fmt.Errorf("pulseaudio: Read called on an output stream")
}

func (s *outputStream) Write() error {
	_, err := s.pipeWriter.Write(floatsToBytes(s.buf))
	if err != nil {
		return fmt.Errorf("pulseaudio: write: %w", err)
	}
	if s.pulse.Error() != nil {
		return fmt.Errorf("pulseaudio: playback stream fault: %w", s.pulse.Error())
	}
	return nil
}
