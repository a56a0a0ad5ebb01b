package engine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
	"github.com/MdSalmanTd/noiceguard/pkg/denoise/neural/energyvad"
	"github.com/MdSalmanTd/noiceguard/pkg/engine"
	"github.com/MdSalmanTd/noiceguard/pkg/hostaudio"
)

// fakeBackend is an in-memory hostaudio.Backend used to exercise the
// engine's lifecycle without real hardware. It feeds a silent (all
// zero) signal to every input stream and discards everything written
// to output streams. It also tracks how many fakeStream.Read/Write
// calls are in flight at once, across every stream it has ever opened,
// so a test can assert that the engine never runs two concurrent
// producers or consumers against the same ring.
type fakeBackend struct {
	mu         sync.Mutex
	failOpen   bool
	failReadAt int32 // if >0, that many reads succeed then every read after faults
	reads      int32

	inFlightReads, maxInFlightReads   atomic.Int32
	inFlightWrites, maxInFlightWrites atomic.Int32
}

func (f *fakeBackend) Name() string        { return "fake" }
func (f *fakeBackend) Initialize() error   { return nil }
func (f *fakeBackend) Terminate() error    { return nil }
func (f *fakeBackend) Devices() ([]hostaudio.Device, error) {
	return []hostaudio.Device{{Index: 0, Name: "fake-in", MaxInputChannels: 1}, {Index: 1, Name: "fake-out", MaxOutputChannels: 1}}, nil
}
func (f *fakeBackend) DefaultInputDevice() (hostaudio.Device, error) {
	return hostaudio.Device{Index: 0, Name: "fake-in", MaxInputChannels: 1}, nil
}
func (f *fakeBackend) DefaultOutputDevice() (hostaudio.Device, error) {
	return hostaudio.Device{Index: 1, Name: "fake-out", MaxOutputChannels: 1}, nil
}

func (f *fakeBackend) OpenInputStream(dev hostaudio.Device, sampleRate float64, framesPerBuffer int, buf []float32, exclusive bool) (hostaudio.Stream, error) {
	if f.failOpen {
		return nil, errFakeOpen
	}
	f.mu.Lock()
	f.reads = 0
	f.mu.Unlock()
	return &fakeStream{backend: f, buf: buf, isInput: true}, nil
}

func (f *fakeBackend) OpenOutputStream(dev hostaudio.Device, sampleRate float64, framesPerBuffer int, buf []float32, exclusive bool) (hostaudio.Stream, error) {
	if f.failOpen {
		return nil, errFakeOpen
	}
	return &fakeStream{backend: f, buf: buf, isInput: false}, nil
}

var errFakeOpen = &fakeErr{"fake: open failed"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

type fakeStream struct {
	backend *fakeBackend
	buf     []float32
	isInput bool
}

func (s *fakeStream) Start() error { return nil }
func (s *fakeStream) Stop() error  { return nil }
func (s *fakeStream) Close() error { return nil }

func (s *fakeStream) Read() error {
	n := s.backend.inFlightReads.Add(1)
	raiseMax(&s.backend.maxInFlightReads, n)
	defer s.backend.inFlightReads.Add(-1)

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.reads++
	if s.backend.failReadAt > 0 && s.backend.reads > s.backend.failReadAt {
		return &fakeErr{"fake: read fault"}
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	time.Sleep(time.Microsecond * 200)
	return nil
}

func (s *fakeStream) Write() error {
	n := s.backend.inFlightWrites.Add(1)
	raiseMax(&s.backend.maxInFlightWrites, n)
	defer s.backend.inFlightWrites.Add(-1)

	time.Sleep(time.Microsecond * 200)
	return nil
}

// raiseMax CASes max up to n if n is larger, retrying on contention
// instead of racing a plain load-then-store.
func raiseMax(max *atomic.Int32, n int32) {
	for {
		cur := max.Load()
		if n <= cur {
			return
		}
		if max.CompareAndSwap(cur, n) {
			return
		}
	}
}

func testDenoiserFactory() engine.DenoiserFactory {
	return func() (denoise.Denoiser, error) {
		return energyvad.New(), nil
	}
}

func TestStartThenStopLeavesIdle(t *testing.T) {
	e := engine.New(testDenoiserFactory()).WithBackend(&fakeBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.Start(ctx, engine.DefaultConfig()))
	require.True(t, e.IsRunning())

	require.NoError(t, e.Stop())
	require.False(t, e.IsRunning())
}

func TestStartTwiceFails(t *testing.T) {
	e := engine.New(testDenoiserFactory()).WithBackend(&fakeBackend{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.Start(ctx, engine.DefaultConfig()))
	defer e.Stop()

	err := e.Start(ctx, engine.DefaultConfig())
	require.ErrorIs(t, err, engine.ErrAlreadyRunning)
}

func TestStopWithoutStartFails(t *testing.T) {
	e := engine.New(testDenoiserFactory()).WithBackend(&fakeBackend{})
	require.ErrorIs(t, e.Stop(), engine.ErrNotRunning)
}

func TestStartUnwindsOnOpenFailure(t *testing.T) {
	e := engine.New(testDenoiserFactory()).WithBackend(&fakeBackend{failOpen: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := e.Start(ctx, engine.DefaultConfig())
	require.Error(t, err)
	require.False(t, e.IsRunning())
}

func TestMetricsAdvanceWhileRunning(t *testing.T) {
	e := engine.New(testDenoiserFactory()).WithBackend(&fakeBackend{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.Start(ctx, engine.DefaultConfig()))
	defer e.Stop()

	require.Eventually(t, func() bool {
		return e.Metrics().Snapshot().FramesSeen > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRestartRecoversFromReadFault(t *testing.T) {
	backend := &fakeBackend{failReadAt: 5}
	e := engine.New(testDenoiserFactory()).WithBackend(backend)

	var faulted bool
	e.OnFault(func(err error) { faulted = true })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.Start(ctx, engine.DefaultConfig()))
	defer e.Stop()

	time.Sleep(3 * time.Second)

	require.True(t, e.IsRunning())
	require.False(t, faulted)

	// Every restart above reopened the input stream and re-triggered the
	// fault at the same read count, so this ran through many restart
	// cycles. At most one capturePump and one outputPump must ever be
	// alive at once: a stale pump left running past a restart would show
	// up here as more than one concurrent Read or Write.
	require.LessOrEqual(t, backend.maxInFlightReads.Load(), int32(1))
	require.LessOrEqual(t, backend.maxInFlightWrites.Load(), int32(1))
}
