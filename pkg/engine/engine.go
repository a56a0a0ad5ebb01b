// Package engine implements the real-time audio engine: device
// lifecycle, the lock-free capture/output pipeline, and fault recovery.
// Only one Engine should be running per process at a time; that
// constraint is a documented precondition on the caller, not enforced
// by a package-level singleton.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
	"github.com/MdSalmanTd/noiceguard/pkg/hostaudio"
	"github.com/MdSalmanTd/noiceguard/pkg/hostaudio/registry"
	"github.com/MdSalmanTd/noiceguard/pkg/ringbuffer"
	"github.com/MdSalmanTd/noiceguard/pkg/spectrum"
)

// RingCapacity is the fixed capacity, in samples, of each of the
// engine's two ring buffers.
const RingCapacity = 4096

// workerPollInterval is how long the worker sleeps between polls of the
// capture ring when it finds less than a full frame available. The
// real-time stream-pump goroutines never take locks, so they can't
// signal the worker through a condition variable; it has to poll.
const workerPollInterval = 500 * time.Microsecond

// spectrumDecimation publishes one frame out of this many to the
// spectrum analyzer, keeping the diagnostic allocation off the hottest
// part of the worker loop.
const spectrumDecimation = 50

// DenoiserFactory builds the two Denoiser instances the pipeline runs in
// its double pass. Passed into New so callers choose between the cgo
// RNNoise backend and the pure-Go energyvad fallback without this
// package importing either.
type DenoiserFactory func() (denoise.Denoiser, error)

// Engine owns the capture/output rings, the denoise pipeline, the
// device streams, and the worker goroutine connecting them.
type Engine struct {
	config Config

	backend       hostaudio.Backend
	pinnedBackend hostaudio.Backend

	captureRing *ringbuffer.Ring
	outputRing  *ringbuffer.Ring

	pipeline     *denoise.Pipeline
	passA, passB denoise.Denoiser
	spectrum     *spectrum.Analyzer
	denoisers    DenoiserFactory

	inputStream  hostaudio.Stream
	outputStream hostaudio.Stream
	captureBuf   []float32
	outputBuf    []float32

	running          atomic.Bool
	restartRequested atomic.Bool

	runCtx       context.Context
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	pumpCancel  context.CancelFunc
	captureDone chan struct{}
	outputDone  chan struct{}

	onFault func(error)
}

// New builds an Engine around the given denoiser factory. The factory
// is called twice on each Start, once per pass; the restart sequence
// after a device fault keeps the denoisers it already has.
func New(denoisers DenoiserFactory) *Engine {
	return &Engine{
		denoisers: denoisers,
		spectrum:  spectrum.NewAnalyzer(),
	}
}

// WithBackend pins the engine to a specific hostaudio.Backend instead
// of letting Start pick one through the registry. Exposed for tests
// that need a fake backend with no real device; production callers
// should leave this unset and let the registry choose.
func (e *Engine) WithBackend(backend hostaudio.Backend) *Engine {
	e.pinnedBackend = backend
	return e
}

// OnFault registers a callback invoked when the engine exhausts its
// restart budget and gives up, transitioning back to idle. It is never
// called for a fault that a restart successfully recovers from.
func (e *Engine) OnFault(fn func(error)) {
	e.onFault = fn
}

// IsRunning reports whether the engine is currently in the Running
// state.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// Metrics exposes the pipeline's live metrics block. Valid to call in
// any state; before the first Start it simply reads zeroes.
func (e *Engine) Metrics() *denoise.Metrics {
	if e.pipeline == nil {
		return &denoise.Metrics{}
	}
	return e.pipeline.Metrics()
}

// SpectrumSnapshot returns the most recently published diagnostic FFT
// snapshot, if any.
func (e *Engine) SpectrumSnapshot() (spectrum.Snapshot, bool) {
	return e.spectrum.Compute()
}

// SetSuppressionLevel adjusts the pipeline's wet/dry blend at runtime.
func (e *Engine) SetSuppressionLevel(level float64) {
	if e.pipeline != nil {
		e.pipeline.SetSuppressionLevel(level)
	}
}

// SetVADThreshold adjusts the gate's center threshold at runtime.
func (e *Engine) SetVADThreshold(threshold float64) {
	if e.pipeline != nil {
		e.pipeline.SetVADThreshold(threshold)
	}
}

// SetComfortNoise toggles comfort-noise fill at runtime.
func (e *Engine) SetComfortNoise(enabled bool) {
	if e.pipeline != nil {
		e.pipeline.SetComfortNoise(enabled)
	}
}

// EnumerateDevices lists the devices visible to whichever backend the
// registry currently selects. Safe to call at any time, running or
// not: it initializes a backend, lists, and terminates, touching none
// of the engine's own state.
func EnumerateDevices(ctx context.Context) ([]hostaudio.Device, error) {
	backend, err := registry.Select()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHostInitFailed, err)
	}
	defer func() {
		if err := backend.Terminate(); err != nil {
			logger.Debugf(ctx, "EnumerateDevices: terminate: %v", err)
		}
	}()
	devices, err := backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("engine: enumerate devices: %w", err)
	}
	return devices, nil
}

// Start transitions the engine from Idle to Running: it selects a host
// audio backend, resolves and opens the requested input/output devices,
// builds the denoise pipeline, and launches the stream-pump and worker
// goroutines. On any failure it fully unwinds whatever it already
// opened and returns a descriptive error for the step that failed;
// errors from the unwind itself are discarded.
func (e *Engine) Start(ctx context.Context, config Config) (_err error) {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		if _err != nil {
			e.running.Store(false)
		}
	}()

	e.config = config

	backend := e.pinnedBackend
	if backend == nil {
		var err error
		backend, err = registry.Select()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrHostInitFailed, err)
		}
	} else if err := backend.Initialize(); err != nil {
		return fmt.Errorf("%w: %w", ErrHostInitFailed, err)
	}
	e.backend = backend

	rollback := func() {
		if e.inputStream != nil {
			_ = e.inputStream.Close()
			e.inputStream = nil
		}
		if e.outputStream != nil {
			_ = e.outputStream.Close()
			e.outputStream = nil
		}
		if e.passA != nil {
			_ = e.passA.Close()
			e.passA = nil
		}
		if e.passB != nil {
			_ = e.passB.Close()
			e.passB = nil
		}
		if e.backend != nil {
			_ = e.backend.Terminate()
		}
	}

	inDev, err := e.resolveDevice(backend, config.InputDeviceIndex, true)
	if err != nil {
		rollback()
		return err
	}
	outDev, err := e.resolveDevice(backend, config.OutputDeviceIndex, false)
	if err != nil {
		rollback()
		return err
	}

	e.captureRing = ringbuffer.New(RingCapacity)
	e.outputRing = ringbuffer.New(RingCapacity)

	passA, err := e.denoisers()
	if err != nil {
		rollback()
		return fmt.Errorf("%w: %w", ErrDenoiserInitFailed, err)
	}
	passB, err := e.denoisers()
	if err != nil {
		_ = passA.Close()
		rollback()
		return fmt.Errorf("%w: %w", ErrDenoiserInitFailed, err)
	}
	e.passA, e.passB = passA, passB
	e.pipeline = denoise.New(passA, passB)
	e.pipeline.SetSuppressionLevel(config.SuppressionLevel)
	e.pipeline.SetVADThreshold(config.VADThreshold)
	e.pipeline.SetComfortNoise(config.ComfortNoise)

	inStream, outStream, err := e.openStreams(backend, inDev, outDev, config)
	if err != nil {
		rollback()
		return err
	}
	e.inputStream = inStream
	e.outputStream = outStream

	if err := inStream.Start(); err != nil {
		rollback()
		return fmt.Errorf("%w: input: %w", ErrStreamStartFailed, err)
	}
	if err := outStream.Start(); err != nil {
		rollback()
		return fmt.Errorf("%w: output: %w", ErrStreamStartFailed, err)
	}

	e.restartRequested.Store(false)

	workerCtx, cancel := context.WithCancel(ctx)
	e.runCtx = workerCtx
	e.workerCancel = cancel
	e.workerDone = make(chan struct{})

	e.spawnPumps()

	observability.Go(workerCtx, func() {
		defer close(e.workerDone)
		e.worker(workerCtx)
	})

	return nil
}

// spawnPumps launches a fresh capture/output pump pair under a child of
// e.runCtx, replacing e.pumpCancel and the pumps' done channels. Exactly
// one producer and one consumer exist per ring at any time: the caller
// must have already joined any pumps it previously spawned.
func (e *Engine) spawnPumps() {
	pumpCtx, pumpCancel := context.WithCancel(e.runCtx)
	e.pumpCancel = pumpCancel
	e.captureDone = make(chan struct{})
	e.outputDone = make(chan struct{})

	observability.Go(pumpCtx, func() {
		e.capturePump(pumpCtx, e.captureDone)
	})
	observability.Go(pumpCtx, func() {
		e.outputPump(pumpCtx, e.outputDone)
	})
}

// Stop transitions the engine from Running to Idle: it signals the
// worker and stream pumps to exit, waits for the worker to join, then
// closes the streams and releases the host backend.
func (e *Engine) Stop() error {
	if !e.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}

	if e.workerCancel != nil {
		e.workerCancel()
	}
	if e.workerDone != nil {
		<-e.workerDone
	}

	var result error
	if e.inputStream != nil {
		if err := e.inputStream.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		e.inputStream = nil
	}
	if e.outputStream != nil {
		if err := e.outputStream.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		e.outputStream = nil
	}
	if e.captureDone != nil {
		<-e.captureDone
	}
	if e.outputDone != nil {
		<-e.outputDone
	}
	if e.backend != nil {
		if err := e.backend.Terminate(); err != nil {
			result = multierror.Append(result, err)
		}
		e.backend = nil
	}
	if e.passA != nil {
		if err := e.passA.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		e.passA = nil
	}
	if e.passB != nil {
		if err := e.passB.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		e.passB = nil
	}

	return result
}

func (e *Engine) resolveDevice(backend hostaudio.Backend, index int, input bool) (hostaudio.Device, error) {
	if index == DefaultDevice {
		if input {
			return backend.DefaultInputDevice()
		}
		return backend.DefaultOutputDevice()
	}
	devices, err := backend.Devices()
	if err != nil {
		return hostaudio.Device{}, fmt.Errorf("%w: %w", ErrNoSuchDevice, err)
	}
	for _, d := range devices {
		if d.Index == index {
			return d, nil
		}
	}
	return hostaudio.Device{}, fmt.Errorf("%w: index %d", ErrNoSuchDevice, index)
}

func (e *Engine) openStreams(backend hostaudio.Backend, inDev, outDev hostaudio.Device, config Config) (hostaudio.Stream, hostaudio.Stream, error) {
	inBuf := make([]float32, config.FramesPerBuffer)
	outBuf := make([]float32, config.FramesPerBuffer)

	inStream, err := openWithExclusiveFallback(func(exclusive bool) (hostaudio.Stream, error) {
		return backend.OpenInputStream(inDev, config.SampleRate, config.FramesPerBuffer, inBuf, exclusive)
	}, config.ExclusiveMode)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: input: %w", ErrStreamOpenFailed, err)
	}

	outStream, err := openWithExclusiveFallback(func(exclusive bool) (hostaudio.Stream, error) {
		return backend.OpenOutputStream(outDev, config.SampleRate, config.FramesPerBuffer, outBuf, exclusive)
	}, config.ExclusiveMode)
	if err != nil {
		_ = inStream.Close()
		return nil, nil, fmt.Errorf("%w: output: %w", ErrStreamOpenFailed, err)
	}

	e.captureBuf = inBuf
	e.outputBuf = outBuf
	return inStream, outStream, nil
}

func openWithExclusiveFallback(open func(exclusive bool) (hostaudio.Stream, error), exclusive bool) (hostaudio.Stream, error) {
	if !exclusive {
		return open(false)
	}
	stream, err := open(true)
	if err == nil {
		return stream, nil
	}
	return open(false)
}
