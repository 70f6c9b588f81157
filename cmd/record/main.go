package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
	_ "github.com/xaionaro-go/noisecancel/pkg/audio/backends/oto"
	_ "github.com/xaionaro-go/noisecancel/pkg/audio/backends/portaudio"
	_ "github.com/xaionaro-go/noisecancel/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/noisecancel/pkg/capture"
	"github.com/xaionaro-go/noisecancel/pkg/container"
	"github.com/xaionaro-go/observability"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	sampleRate := pflag.Uint32("sample-rate", 16000, "")
	duration := pflag.Duration("duration", 0, "stop after this time; zero means until Ctrl+C")
	pflag.Parse()

	if pflag.NArg() != 1 {
		panic("expected exactly one positional argument: path to the output WAV file")
	}
	outputPath := pflag.Arg(0)

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	logger.Infof(ctx, "starting...")
	recorder, err := audio.NewRecorderAuto(ctx)
	assertNoError(err)
	defer recorder.Close()

	format := audio.Format{
		SampleRate: audio.SampleRate(*sampleRate),
		Channels:   1,
		PCMFormat:  audio.PCMFormatS16LE,
	}
	chunkFrames := format.Encoding().SamplesForDuration(100 * time.Millisecond)
	src, err := capture.OpenDevice(ctx, recorder, format, chunkFrames)
	assertNoError(err)

	observability.Go(ctx, func() {
		logger.Tracef(ctx, "started the traffic count printer loop")
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "captured: %d bytes, dropped: %d samples", src.BytesCaptured(), src.DroppedSamples())
			}
		}
	})

	logger.Infof(ctx, "recording with '%s'; press Ctrl+C to stop", recorder.Backend)
	var samples []int16
	for {
		chunk, err := src.Read(ctx, chunkFrames, time.Second)
		samples = append(samples, chunk.Samples...)
		if chunk.Overflowed() {
			logger.Warnf(ctx, "capture overflow: %d samples lost", chunk.Dropped)
		}
		if err == nil || errors.Is(err, capture.ErrTimeout) {
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			break
		}
		panic(err)
	}
	assertNoError(src.Close())

	assertNoError(container.Write(context.WithoutCancel(ctx), outputPath, int(format.SampleRate), 1, 16, samples))
	info, err := container.Verify(outputPath)
	assertNoError(err)
	fmt.Printf("File: %s\n%sFile is a valid WAV file.\n", outputPath, info)
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
