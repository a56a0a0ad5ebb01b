package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// maxRestartAttempts and restartBackoff mirror the bounded
// exponential-backoff restart schedule: 100ms, 200ms, 400ms, 800ms,
// 1600ms.
const maxRestartAttempts = 5

var restartBackoff = [maxRestartAttempts]time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
	1600 * time.Millisecond,
}

// capturePump blocks on Read against the input stream and pushes
// whatever it got into the capture ring, frame by frame. It never
// allocates and never takes a lock; on a read fault it requests a
// restart and exits. done is closed on every exit path so the restart
// sequence (or Stop) can join it before spawning a replacement.
func (e *Engine) capturePump(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := e.inputStream.Read(); err != nil {
			logger.Debugf(ctx, "capturePump: read fault: %v", err)
			e.requestRestart(ctx)
			return
		}
		e.captureRing.Write(e.captureBuf)
	}
}

// outputPump blocks on Write against the output stream, draining the
// output ring into its buffer first and zero-filling whatever is left
// on underrun. done is closed on every exit path so the restart
// sequence (or Stop) can join it before spawning a replacement.
func (e *Engine) outputPump(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n := e.outputRing.Read(e.outputBuf)
		for i := n; i < len(e.outputBuf); i++ {
			e.outputBuf[i] = 0
		}

		if err := e.outputStream.Write(); err != nil {
			logger.Debugf(ctx, "outputPump: write fault: %v", err)
			e.requestRestart(ctx)
			return
		}
	}
}

// requestRestart sets the restart flag; setting it again before the
// worker clears it has no further effect. The worker goroutine is the
// only reader and drives the actual restart sequence,
// since it's the one goroutine not itself blocked in a Read/Write call.
func (e *Engine) requestRestart(ctx context.Context) {
	e.restartRequested.Store(true)
}

// worker drains full frames from the capture ring, runs them through
// the denoise pipeline, and pushes the result into the output ring. It
// is the only goroutine allowed to sleep: the stream pumps are blocked
// in native Read/Write calls and can't be signaled any other way.
func (e *Engine) worker(ctx context.Context) {
	frameSize := len(e.captureBuf)
	frame := make([]float32, frameSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if e.restartRequested.Load() {
			if err := e.runRestartSequence(ctx); err != nil {
				logger.Debugf(ctx, "worker: restart exhausted: %v", err)
				if e.onFault != nil {
					e.onFault(fmt.Errorf("%w: %w", ErrRestartExhausted, err))
				}
				e.running.Store(false)
				return
			}
			continue
		}

		if e.captureRing.AvailableRead() < frameSize {
			time.Sleep(workerPollInterval)
			continue
		}

		e.captureRing.Read(frame)
		if _, err := e.pipeline.Process(frame); err != nil {
			logger.Debugf(ctx, "worker: pipeline process: %v", err)
			continue
		}
		if e.pipeline.Metrics().Snapshot().FramesSeen%spectrumDecimation == 0 {
			e.spectrum.Publish(frame, e.pipeline.Metrics().Snapshot().FramesSeen)
		}
		e.outputRing.Write(frame)
	}
}

// runRestartSequence cancels and joins the current pump pair so exactly
// one producer and one consumer ever exist per ring, closes the faulted
// streams, and retries opening them up to maxRestartAttempts times with
// exponential backoff. It resets the pipeline's worker-owned state
// (biquad delay lines, gate hold timer, noise floor estimate,
// comfort-noise shaping memory) once a retry succeeds, since stale
// state from before the fault shouldn't leak into the first frames of
// the recovered stream.
func (e *Engine) runRestartSequence(ctx context.Context) error {
	if e.pumpCancel != nil {
		e.pumpCancel()
	}

	if e.inputStream != nil {
		_ = e.inputStream.Close()
	}
	if e.outputStream != nil {
		_ = e.outputStream.Close()
	}

	if e.captureDone != nil {
		<-e.captureDone
	}
	if e.outputDone != nil {
		<-e.outputDone
	}

	inDev, err := e.resolveDevice(e.backend, e.config.InputDeviceIndex, true)
	if err != nil {
		return err
	}
	outDev, err := e.resolveDevice(e.backend, e.config.OutputDeviceIndex, false)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxRestartAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(restartBackoff[attempt]):
		}

		inStream, outStream, err := e.openStreams(e.backend, inDev, outDev, e.config)
		if err != nil {
			lastErr = err
			logger.Debugf(ctx, "runRestartSequence: attempt %d: open: %v", attempt, err)
			continue
		}
		if err := inStream.Start(); err != nil {
			_ = inStream.Close()
			_ = outStream.Close()
			lastErr = err
			continue
		}
		if err := outStream.Start(); err != nil {
			_ = inStream.Close()
			_ = outStream.Close()
			lastErr = err
			continue
		}

		e.inputStream = inStream
		e.outputStream = outStream
		e.captureRing.Reset()
		e.outputRing.Reset()
		e.pipeline.Reset()
		e.restartRequested.Store(false)

		e.spawnPumps()

		return nil
	}

	return fmt.Errorf("tried %d times, last error: %w", maxRestartAttempts, lastErr)
}
