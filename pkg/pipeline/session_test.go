package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/noisecancel/pkg/capture"
	"github.com/xaionaro-go/noisecancel/pkg/container"
	"github.com/xaionaro-go/noisecancel/pkg/denoiser"
	"github.com/xaionaro-go/noisecancel/pkg/noisesuppression"
	"github.com/xaionaro-go/noisecancel/pkg/vad"
)

type closeTrackingMonitor struct {
	frames int
	closed bool
}

func (m *closeTrackingMonitor) Write(context.Context, []int16) error {
	m.frames++
	return nil
}

func (m *closeTrackingMonitor) Close() error {
	m.closed = true
	return nil
}

func testSessionConfig(t *testing.T) SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.Driver = testConfig()
	cfg.Gain = 1
	dir := t.TempDir()
	cfg.OutputPath = filepath.Join(dir, "processed_audio.wav")
	cfg.RawOutputPath = filepath.Join(dir, "raw_audio.wav")
	return cfg
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testSessionConfig(t)
	cfg.MonitorQueueSize = 64
	src := newScriptedSource(ramps(4)...)
	mon := &closeTrackingMonitor{}
	s := NewSession(cfg, Components{
		Source:  src,
		Engine:  newScriptedEngine().factory(),
		Monitor: mon,
	})

	require.Error(t, s.Run(ctx), "Run before Start")
	_, err := s.Stop(ctx)
	require.Error(t, err, "Stop before Start")

	require.NoError(t, s.Start(ctx))
	require.Error(t, s.Start(ctx))
	require.NoError(t, s.Run(ctx))

	result, err := s.Stop(ctx)
	require.NoError(t, err)
	require.True(t, src.Closed())
	require.True(t, mon.closed)
	require.Equal(t, 27, mon.frames)
	require.Equal(t, uint64(27), result.Monitor.Written)

	require.Equal(t, cfg.OutputPath, result.Processed.Path)
	require.Equal(t, container.Info{
		Channels:    1,
		SampleWidth: 2,
		FrameRate:   testSampleRate,
		FrameCount:  27 * testFrameLength,
	}, result.Processed.Info)

	require.NotNil(t, result.Raw)
	require.Equal(t, 12800, result.Raw.Info.FrameCount)
	_, rawSamples, err := container.Read(cfg.RawOutputPath)
	require.NoError(t, err)
	require.Equal(t, concat(ramps(4)), rawSamples)

	require.Equal(t, uint64(4), result.Stats.Chunks)
	require.Equal(t, StopReasonEndOfInput, result.Stats.StopReason)

	_, err = s.Stop(ctx)
	require.Error(t, err)
}

func TestSessionPersistsAfterFailure(t *testing.T) {
	ctx := context.Background()
	cfg := testSessionConfig(t)
	cfg.RawOutputPath = ""
	readErr := errors.New("device is gone")
	src := &scriptedSource{
		steps: []readStep{
			{chunk: capture.Chunk{Samples: ramp(0, testChunkFrames)}},
			{err: readErr},
		},
	}

	s := NewSession(cfg, Components{
		Source: src,
		Engine: newScriptedEngine().factory(),
	})
	require.NoError(t, s.Start(ctx))
	require.ErrorIs(t, s.Run(ctx), readErr)

	result, err := s.Stop(ctx)
	require.NoError(t, err)
	require.Nil(t, result.Raw)
	require.Equal(t, StopReasonFailure, result.Stats.StopReason)

	info, samples, err := container.Read(cfg.OutputPath)
	require.NoError(t, err)
	require.Equal(t, 6*testFrameLength, info.FrameCount)
	require.Equal(t, ramps(1)[0][:6*testFrameLength], samples)
}

type stalledMonitor struct {
	release chan struct{}
}

func (m *stalledMonitor) Write(context.Context, []int16) error {
	<-m.release
	return nil
}

func (m *stalledMonitor) Close() error {
	return nil
}

func TestSessionStopWithStalledMonitor(t *testing.T) {
	ctx := context.Background()
	cfg := testSessionConfig(t)
	cfg.MonitorCloseTimeout = 50 * time.Millisecond
	mon := &stalledMonitor{release: make(chan struct{})}
	defer close(mon.release)

	s := NewSession(cfg, Components{
		Source:  newScriptedSource(ramps(2)...),
		Engine:  newScriptedEngine().factory(),
		Monitor: mon,
	})
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Run(ctx))

	type stopResult struct {
		result *SessionResult
		err    error
	}
	stopped := make(chan stopResult, 1)
	go func() {
		result, err := s.Stop(ctx)
		stopped <- stopResult{result: result, err: err}
	}()

	var r stopResult
	select {
	case r = <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop is blocked by a stalled monitor")
	}
	require.ErrorContains(t, r.err, "abandoned")
	require.NotNil(t, r.result)
	require.NotZero(t, r.result.Monitor.Dropped)

	_, raw, err := container.Read(cfg.RawOutputPath)
	require.NoError(t, err)
	require.Equal(t, concat(ramps(2)), raw)
	info, _, err := container.Read(cfg.OutputPath)
	require.NoError(t, err)
	require.Equal(t, 14*testFrameLength, info.FrameCount)
}

func TestSessionEngineInitFailure(t *testing.T) {
	ctx := context.Background()
	src := newScriptedSource()
	mon := &closeTrackingMonitor{}
	initErr := fmt.Errorf("no model file")
	s := NewSession(testSessionConfig(t), Components{
		Source:  src,
		Monitor: mon,
		Engine: func(context.Context) (noisesuppression.NoiseSuppression, error) {
			return nil, initErr
		},
	})

	err := s.Start(ctx)
	var initFailure *denoiser.ErrEngineInit
	require.True(t, errors.As(err, &initFailure), "%v", err)
	require.ErrorIs(t, err, initErr)
	require.True(t, src.Closed())
	require.True(t, mon.closed)
}

func TestSessionInvalidConfig(t *testing.T) {
	ctx := context.Background()
	cfg := testSessionConfig(t)
	cfg.Gain = -1
	s := NewSession(cfg, Components{
		Source: newScriptedSource(),
		Engine: newScriptedEngine().factory(),
	})
	require.Error(t, s.Start(ctx))

	cfg = testSessionConfig(t)
	cfg.OutputPath = ""
	s = NewSession(cfg, Components{
		Source: newScriptedSource(),
		Engine: newScriptedEngine().factory(),
	})
	require.Error(t, s.Start(ctx))
}

type closeTrackingVAD struct {
	constantVAD
	closed *bool
}

func (v closeTrackingVAD) Close() error {
	*v.closed = true
	return nil
}

func TestSessionVADFactory(t *testing.T) {
	ctx := context.Background()
	cfg := testSessionConfig(t)
	cfg.Driver.VoiceMinDuration = 0

	var (
		gotFrameLength int
		closed         bool
	)
	s := NewSession(cfg, Components{
		Source: newScriptedSource(ramps(1)...),
		Engine: newScriptedEngine().factory(),
		NewVAD: func(_ context.Context, frameLength int) (vad.VAD, error) {
			gotFrameLength = frameLength
			return closeTrackingVAD{constantVAD: constantVAD{confidence: 0.9}, closed: &closed}, nil
		},
	})
	require.NoError(t, s.Start(ctx))
	require.Equal(t, testFrameLength, gotFrameLength)
	require.NoError(t, s.Run(ctx))

	result, err := s.Stop(ctx)
	require.NoError(t, err)
	require.True(t, closed)
	require.Equal(t, result.Stats.Frames, result.Stats.VoicedFrames)
}

func TestSessionVADFactoryFailure(t *testing.T) {
	ctx := context.Background()
	src := newScriptedSource()
	mon := &closeTrackingMonitor{}
	engine := newScriptedEngine()
	s := NewSession(testSessionConfig(t), Components{
		Source:  src,
		Monitor: mon,
		Engine:  engine.factory(),
		NewVAD: func(context.Context, int) (vad.VAD, error) {
			return nil, fmt.Errorf("unsupported frame length")
		},
	})
	require.Error(t, s.Start(ctx))
	require.True(t, src.Closed())
	require.True(t, mon.closed)
}
