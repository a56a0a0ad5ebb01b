package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"

	"github.com/MdSalmanTd/noiceguard/pkg/denoise"
	"github.com/MdSalmanTd/noiceguard/pkg/denoise/neural/energyvad"
	"github.com/MdSalmanTd/noiceguard/pkg/denoise/neural/rnnoise"
	"github.com/MdSalmanTd/noiceguard/pkg/fileproc"
)

func main() {
	loggerLevel := logger.LevelDebug
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	suppressionLevel := pflag.Float64("suppression-level", denoise.DefaultSuppressionLevel, "wet/dry blend, 0 (bypass) to 1 (fully denoised)")
	vadThreshold := pflag.Float64("vad-threshold", denoise.DefaultVADThreshold, "voice-activity gate threshold, 0 to 1")
	comfortNoise := pflag.Bool("comfort-noise", true, "fill confident silence with a low comfort-noise floor")
	useNeuralRNNoise := pflag.Bool("rnnoise", true, "use the native RNNoise denoiser if this binary was built with the rnnoise tag")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input-raw-pcm-file> <output-raw-pcm-file>"))
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	var passA, passB denoise.Denoiser
	if *useNeuralRNNoise {
		var err error
		passA, err = rnnoise.New()
		if err != nil {
			logger.Debugf(ctx, "falling back to energyvad: %v", err)
			passA = energyvad.New()
		}
		passB, err = rnnoise.New()
		if err != nil {
			passB = energyvad.New()
		}
	} else {
		passA, passB = energyvad.New(), energyvad.New()
	}
	defer passA.Close()
	defer passB.Close()

	pipeline := denoise.New(passA, passB)
	pipeline.SetSuppressionLevel(*suppressionLevel)
	pipeline.SetVADThreshold(*vadThreshold)
	pipeline.SetComfortNoise(*comfortNoise)

	in, err := os.Open(pflag.Arg(0))
	assertNoError(err)
	defer in.Close()

	out, err := os.Create(pflag.Arg(1))
	assertNoError(err)
	defer out.Close()

	read, written, err := fileproc.Process(ctx, pipeline, in, out)
	assertNoError(err)
	logger.Infof(ctx, "processed %d bytes in, %d bytes out", read, written)
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
