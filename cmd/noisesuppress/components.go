package main

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
	"github.com/xaionaro-go/noisecancel/pkg/capture"
	"github.com/xaionaro-go/noisecancel/pkg/config"
	"github.com/xaionaro-go/noisecancel/pkg/denoiser"
	"github.com/xaionaro-go/noisecancel/pkg/monitor"
	"github.com/xaionaro-go/noisecancel/pkg/noisesuppression"
	"github.com/xaionaro-go/noisecancel/pkg/noisesuppression/implementations/rnnoise"
	"github.com/xaionaro-go/noisecancel/pkg/noisesuppression/implementations/spectral"
	"github.com/xaionaro-go/noisecancel/pkg/pipeline"
	"github.com/xaionaro-go/noisecancel/pkg/vad"
	"github.com/xaionaro-go/noisecancel/pkg/vad/implementations/fvad"
	vadns "github.com/xaionaro-go/noisecancel/pkg/vad/implementations/noisesuppression"
)

// closers holds the backends (not owned by the session) to be released
// on exit, in reverse order.
type closers []io.Closer

func (c closers) Close() error {
	var mErr *multierror.Error
	for idx := len(c) - 1; idx >= 0; idx-- {
		if err := c[idx].Close(); err != nil {
			mErr = multierror.Append(mErr, err)
		}
	}
	return mErr.ErrorOrNil()
}

func newComponents(
	ctx context.Context,
	cfg *config.Config,
) (_ret pipeline.Components, _closers closers, _err error) {
	logger.Debugf(ctx, "newComponents")
	defer func() { logger.Debugf(ctx, "/newComponents: %v", _err) }()

	var result pipeline.Components
	var backends closers
	defer func() {
		if _err == nil {
			return
		}
		if result.Source != nil {
			result.Source.Close()
		}
		backends.Close()
	}()

	src, err := newSource(ctx, cfg, &backends)
	if err != nil {
		return pipeline.Components{}, nil, err
	}
	result.Source = src

	mon, err := newMonitor(ctx, cfg, &backends)
	if err != nil {
		return pipeline.Components{}, nil, err
	}
	result.Monitor = mon

	result.Engine = newEngineFactory(cfg)
	result.NewVAD = newVADFactory(cfg)
	return result, backends, nil
}

func newSource(
	ctx context.Context,
	cfg *config.Config,
	backends *closers,
) (capture.Source, error) {
	format := cfg.Format()
	if cfg.Input.Path != "" {
		src, err := capture.OpenFile(ctx, cfg.Input.Path, format, cfg.ChunkFrames())
		if err != nil {
			return nil, err
		}
		// the monitor could not keep up with an unpaced file
		src.Pace = cfg.Input.Pace || cfg.Monitor.Enabled
		return src, nil
	}

	recorder, err := audio.NewRecorderBackend(ctx, cfg.Audio.Backend)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a recorder: %w", err)
	}
	*backends = append(*backends, recorder)
	logger.Infof(ctx, "recording with '%s'", recorder.Backend)

	src, err := capture.OpenDevice(ctx, recorder, format, cfg.ChunkFrames())
	if err != nil {
		return nil, err
	}
	return src, nil
}

func newMonitor(
	ctx context.Context,
	cfg *config.Config,
	backends *closers,
) (monitor.Sink, error) {
	if !cfg.Monitor.Enabled {
		return monitor.Discard, nil
	}

	player, err := audio.NewPlayerBackend(ctx, cfg.Audio.Backend)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a player: %w", err)
	}
	*backends = append(*backends, player)
	logger.Infof(ctx, "monitoring with '%s' (%T)", player.Backend, player.PlayerPCM)

	mon, err := monitor.OpenDevice(ctx, player, cfg.Format(), cfg.Monitor.BufferSize)
	if err != nil {
		return nil, err
	}
	return mon, nil
}

func newEngineFactory(cfg *config.Config) denoiser.EngineFactory {
	sampleRate := audio.SampleRate(cfg.Audio.SampleRate)
	frameLength := uint(cfg.Audio.FrameLength)
	return func(ctx context.Context) (noisesuppression.NoiseSuppression, error) {
		logger.Debugf(ctx, "initializing engine %s", cfg.Processing.Engine)
		switch cfg.Processing.Engine {
		case config.EngineRNNoise:
			engine, err := rnnoise.New(sampleRate)
			if err != nil {
				return nil, err
			}
			return engine, nil
		case config.EngineSpectral:
			engine, err := spectral.New(sampleRate, frameLength, spectral.DefaultOptions())
			if err != nil {
				return nil, err
			}
			return engine, nil
		case config.EnginePassthrough:
			return noisesuppression.NewDummy(
				audio.EncodingPCM{
					PCMFormat:  audio.PCMFormatFloat32LE,
					SampleRate: sampleRate,
				},
				1,
				frameLength,
			), nil
		default:
			return nil, fmt.Errorf("unknown engine '%s'", cfg.Processing.Engine)
		}
	}
}

// newVADFactory returns nil if the voice probability of the engine is
// to be used.
func newVADFactory(cfg *config.Config) pipeline.VADFactory {
	sampleRate := audio.SampleRate(cfg.Audio.SampleRate)
	switch cfg.VAD.Mode {
	case config.VADModeFVAD:
		return func(ctx context.Context, frameLength int) (vad.VAD, error) {
			v, err := fvad.New(sampleRate, uint(frameLength), fvad.Mode(cfg.VAD.FVADMode))
			if err != nil {
				return nil, err
			}
			return v, nil
		}
	case config.VADModeSpectral:
		return func(ctx context.Context, frameLength int) (vad.VAD, error) {
			engine, err := spectral.New(sampleRate, uint(frameLength), spectral.DefaultOptions())
			if err != nil {
				return nil, err
			}
			v, err := vadns.NewVAD(ctx, engine)
			if err != nil {
				engine.Close()
				return nil, err
			}
			return v, nil
		}
	default:
		return nil
	}
}
