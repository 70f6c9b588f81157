package main

import (
	"context"
	"errors"
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
	"github.com/xaionaro-go/noisecancel/pkg/monitor"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	sampleRate := pflag.Uint32("sample-rate", 48000, "the rate to play at; the file is resampled")
	pflag.Parse()

	if pflag.NArg() != 1 {
		panic("expected exactly one positional argument: path to a WAV or Ogg Vorbis file")
	}
	filePath := pflag.Arg(0)

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Infof(ctx, "starting...")
	format := audio.Format{
		SampleRate: audio.SampleRate(*sampleRate),
		Channels:   1,
		PCMFormat:  audio.PCMFormatS16LE,
	}
	chunkFrames := format.Encoding().SamplesForDuration(50 * time.Millisecond)
	src, err := capture.OpenFile(ctx, filePath, format, chunkFrames)
	assertNoError(err)
	src.Pace = true
	defer src.Close()

	player := audio.NewPlayerAuto(ctx)
	defer player.Close()
	sink, err := monitor.OpenDevice(ctx, player, format, audio.BufferSize)
	assertNoError(err)
	logger.Infof(ctx, "started (file -> %T)", player.PlayerPCM)

	for {
		chunk, err := src.Read(ctx, chunkFrames, 0)
		if len(chunk.Samples) > 0 {
			assertNoError(sink.Write(ctx, chunk.Samples))
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			break
		}
		panic(err)
	}
	logger.Debugf(ctx, "played %d bytes", sink.BytesPlayed())
	assertNoError(sink.Close())
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
