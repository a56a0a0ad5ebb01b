package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
	"github.com/MdSalmanTd/noiceguard/pkg/denoise/neural/energyvad"
	"github.com/MdSalmanTd/noiceguard/pkg/denoise/neural/rnnoise"
	"github.com/MdSalmanTd/noiceguard/pkg/engine"
	_ "github.com/MdSalmanTd/noiceguard/pkg/hostaudio/portaudio"
	_ "github.com/MdSalmanTd/noiceguard/pkg/hostaudio/pulseaudio"
)

func main() {
	loggerLevel := logger.LevelDebug
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	inputDevice := pflag.Int("input-device", engine.DefaultDevice, "input device index, -1 for default")
	outputDevice := pflag.Int("output-device", engine.DefaultDevice, "output device index, -1 for default")
	suppressionLevel := pflag.Float64("suppression-level", denoise.DefaultSuppressionLevel, "wet/dry blend, 0 (bypass) to 1 (fully denoised)")
	vadThreshold := pflag.Float64("vad-threshold", denoise.DefaultVADThreshold, "voice-activity gate threshold, 0 to 1")
	comfortNoise := pflag.Bool("comfort-noise", true, "fill confident silence with a low comfort-noise floor")
	exclusiveMode := pflag.Bool("exclusive", false, "request exclusive/pro-audio device access, falling back to shared mode if unavailable")
	useNeuralRNNoise := pflag.Bool("rnnoise", true, "use the native RNNoise denoiser if this binary was built with the rnnoise tag")
	listDevices := pflag.Bool("list-devices", false, "list audio devices and exit")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.CtxWithLogger(ctx, l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	if *listDevices {
		devices, err := engine.EnumerateDevices(ctx)
		assertNoError(err)
		for _, d := range devices {
			fmt.Printf("%d: %s (in:%d out:%d, rate:%.0f)\n", d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
		}
		return
	}

	denoiserFactory := func() (denoise.Denoiser, error) {
		if *useNeuralRNNoise {
			d, err := rnnoise.New()
			if err == nil {
				return d, nil
			}
			logger.Debugf(ctx, "falling back to energyvad: %v", err)
		}
		return energyvad.New(), nil
	}

	e := engine.New(denoiserFactory)
	e.OnFault(func(err error) {
		logger.Errorf(ctx, "engine gave up recovering: %v", err)
		cancel()
	})

	config := engine.DefaultConfig()
	config.InputDeviceIndex = *inputDevice
	config.OutputDeviceIndex = *outputDevice
	config.SuppressionLevel = *suppressionLevel
	config.VADThreshold = *vadThreshold
	config.ComfortNoise = *comfortNoise
	config.ExclusiveMode = *exclusiveMode

	logger.Infof(ctx, "starting engine...")
	assertNoError(e.Start(ctx, config))
	defer func() {
		assertNoError(e.Stop())
	}()
	logger.Infof(ctx, "engine running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Infof(ctx, "received interrupt, shutting down")
	case <-ctx.Done():
	}
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
