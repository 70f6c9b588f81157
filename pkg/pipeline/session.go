package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/noisecancel/pkg/capture"
	"github.com/xaionaro-go/noisecancel/pkg/container"
	"github.com/xaionaro-go/noisecancel/pkg/denoiser"
	"github.com/xaionaro-go/noisecancel/pkg/monitor"
	"github.com/xaionaro-go/noisecancel/pkg/postprocess"
	"github.com/xaionaro-go/noisecancel/pkg/sink"
	"github.com/xaionaro-go/noisecancel/pkg/vad"
)

type SessionConfig struct {
	Driver Config
	Gain   float64

	// MonitorQueueSize is the amount of frames waiting for the monitor
	// before the oldest ones are dropped.
	MonitorQueueSize int

	// MonitorCloseTimeout bounds how long Stop waits for the monitor;
	// zero means sink.DefaultCloseTimeout.
	MonitorCloseTimeout time.Duration

	// OutputPath is where the processed audio is persisted.
	OutputPath string

	// RawOutputPath (optional) is where the captured audio is persisted.
	RawOutputPath string
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Driver:           DefaultConfig(),
		Gain:             postprocess.DefaultGain,
		MonitorQueueSize: sink.DefaultQueueSize,
		OutputPath:       "processed_audio.wav",
	}
}

// Components are the collaborators of a Session. The session takes
// ownership of all of them and closes them in Stop.
type Components struct {
	Source   capture.Source
	Engine   denoiser.EngineFactory
	Monitor  monitor.Sink
	VAD      vad.VAD
	Reporter Reporter

	// NewVAD is used when VAD is nil; it is called in Start with the
	// frame length of the acquired engine.
	NewVAD VADFactory
}

type VADFactory func(ctx context.Context, frameLength int) (vad.VAD, error)

type sessionState int

const (
	sessionStateCreated = sessionState(iota)
	sessionStateStarted
	sessionStateStopped
)

// Persisted describes a file written by Stop.
type Persisted struct {
	Path string
	Info container.Info
}

type SessionResult struct {
	Stats     Stats
	Monitor   sink.MultiplexerStats
	Processed Persisted
	Raw       *Persisted
}

// Session is a single speech enhancement run with the explicit
// lifecycle Start → Run → Stop.
type Session struct {
	Config     SessionConfig
	Components Components

	locker    sync.Mutex
	state     sessionState
	denoiser  *denoiser.Session
	recording *sink.Recording
	mux       *sink.Multiplexer
	driver    *Driver
}

func NewSession(cfg SessionConfig, components Components) *Session {
	return &Session{
		Config:     cfg,
		Components: components,
	}
}

// Start acquires the engine and starts the monitor worker. If Start
// fails, the components are closed.
func (s *Session) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Start")
	defer func() { logger.Debugf(ctx, "/Start: %v", _err) }()

	s.locker.Lock()
	defer s.locker.Unlock()
	if s.state != sessionStateCreated {
		return fmt.Errorf("the session is already started")
	}
	if s.Components.Source == nil {
		return fmt.Errorf("no capture source")
	}

	monitorOwned := true
	defer func() {
		if _err == nil {
			return
		}
		s.Components.Source.Close()
		if s.Components.VAD != nil {
			s.Components.VAD.Close()
		}
		if monitorOwned && s.Components.Monitor != nil {
			s.Components.Monitor.Close()
		}
	}()

	if s.Config.OutputPath == "" {
		return fmt.Errorf("no output path")
	}
	if err := s.Config.Driver.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	postProcessor, err := postprocess.New(s.Config.Gain)
	if err != nil {
		return fmt.Errorf("unable to initialize the post-processor: %w", err)
	}

	session, err := denoiser.New(ctx, s.Components.Engine)
	if err != nil {
		return err
	}

	if s.Components.VAD == nil && s.Components.NewVAD != nil {
		v, err := s.Components.NewVAD(ctx, session.FrameLength())
		if err != nil {
			session.Close()
			return fmt.Errorf("unable to initialize the VAD: %w", err)
		}
		s.Components.VAD = v
	}

	reporter := s.Components.Reporter
	if reporter == nil {
		reporter = LogReporter{}
	}

	recording := sink.NewRecording()
	mux := sink.NewMultiplexer(ctx, s.Components.Monitor, recording, s.Config.MonitorQueueSize, reporter.Report)
	if s.Config.MonitorCloseTimeout > 0 {
		mux.CloseTimeout = s.Config.MonitorCloseTimeout
	}
	monitorOwned = false

	driver, err := NewDriver(s.Config.Driver, s.Components.Source, session, postProcessor, mux)
	if err != nil {
		mux.Close()
		session.Close()
		return fmt.Errorf("unable to initialize the driver: %w", err)
	}
	driver.VAD = s.Components.VAD
	driver.Reporter = reporter

	s.denoiser = session
	s.recording = recording
	s.mux = mux
	s.driver = driver
	s.state = sessionStateStarted
	return nil
}

// Run blocks until the input ends, ctx is cancelled or a fatal error
// happens. Stop must be called afterwards in any case.
func (s *Session) Run(ctx context.Context) error {
	s.locker.Lock()
	driver := s.driver
	state := s.state
	s.locker.Unlock()
	if state != sessionStateStarted {
		return fmt.Errorf("the session is not started")
	}
	return driver.Run(ctx)
}

// Stats returns the statistics of the running session.
func (s *Session) Stats() Stats {
	s.locker.Lock()
	driver := s.driver
	s.locker.Unlock()
	if driver == nil {
		return Stats{FirstVoice: -1}
	}
	return driver.Stats()
}

// Stop releases the capture and the denoiser, persists and verifies the
// recording and only then closes the monitor, so a stalled monitor
// cannot cost the recording. It must not be called concurrently with
// Run.
func (s *Session) Stop(ctx context.Context) (_ret *SessionResult, _err error) {
	logger.Debugf(ctx, "Stop")
	defer func() { logger.Debugf(ctx, "/Stop: %v", _err) }()

	s.locker.Lock()
	defer s.locker.Unlock()
	switch s.state {
	case sessionStateCreated:
		return nil, fmt.Errorf("the session is not started")
	case sessionStateStopped:
		return nil, fmt.Errorf("the session is already stopped")
	}
	s.state = sessionStateStopped

	var mErr *multierror.Error
	if err := s.denoiser.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the denoiser: %w", err))
	}
	if err := s.Components.Source.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the capture: %w", err))
	}
	if s.Components.VAD != nil {
		if err := s.Components.VAD.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the VAD: %w", err))
		}
	}

	result := &SessionResult{
		Stats: s.driver.Stats(),
	}

	sampleRate := int(s.Components.Source.Format().SampleRate)
	processed, err := persist(ctx, s.Config.OutputPath, sampleRate, s.recording.Processed())
	if err != nil {
		mErr = multierror.Append(mErr, err)
	} else {
		result.Processed = *processed
	}

	if s.Config.RawOutputPath != "" {
		raw, err := persist(ctx, s.Config.RawOutputPath, sampleRate, s.recording.Raw())
		if err != nil {
			mErr = multierror.Append(mErr, err)
		} else {
			result.Raw = raw
		}
	}

	if err := s.mux.Close(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	result.Monitor = s.mux.Stats()

	return result, mErr.ErrorOrNil()
}

func persist(
	ctx context.Context,
	path string,
	sampleRate int,
	samples []int16,
) (*Persisted, error) {
	if err := container.Write(ctx, path, sampleRate, 1, 16, samples); err != nil {
		return nil, fmt.Errorf("unable to save '%s': %w", path, err)
	}
	info, err := container.Verify(path)
	if err != nil {
		return nil, fmt.Errorf("unable to verify '%s': %w", path, err)
	}
	logger.Infof(ctx, "saved %d frames to '%s'", info.FrameCount, path)
	return &Persisted{Path: path, Info: info}, nil
}
