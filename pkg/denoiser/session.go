// Package denoiser owns exactly one noise suppression engine instance
// for the lifetime of a pipeline run.
package denoiser

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
	"github.com/xaionaro-go/noisecancel/pkg/noisesuppression"
)

type State int

const (
	StateUninitialized = State(iota)
	StateReady
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("unknown_state_%d", int(s))
	}
}

// EngineFactory creates a new engine instance.
type EngineFactory func(ctx context.Context) (noisesuppression.NoiseSuppression, error)

type Result struct {
	Frame            []float32
	VoiceProbability float64
}

// Session threads the engine state through the frames in the order
// Process is called. It is not reentrant: concurrent callers are
// serialized.
type Session struct {
	locker      sync.Mutex
	engine      noisesuppression.NoiseSuppression
	state       State
	frameLength int
	sampleRate  audio.SampleRate
	processed   uint64
}

// New acquires an engine via the factory.
func New(
	ctx context.Context,
	factory EngineFactory,
) (_ret *Session, _err error) {
	logger.Tracef(ctx, "denoiser.New")
	defer func() { logger.Tracef(ctx, "/denoiser.New: %v", _err) }()

	if factory == nil {
		return nil, &ErrEngineInit{Err: fmt.Errorf("no engine factory is given")}
	}
	engine, err := factory(ctx)
	if err != nil {
		return nil, &ErrEngineInit{Err: err}
	}
	if engine == nil {
		return nil, &ErrEngineInit{Err: fmt.Errorf("the factory returned a nil engine")}
	}

	channels, err := engine.Channels(ctx)
	if err != nil {
		engine.Close()
		return nil, &ErrEngineInit{Err: fmt.Errorf("unable to get the amount of channels: %w", err)}
	}
	if channels != 1 {
		engine.Close()
		return nil, &ErrEngineInit{Err: fmt.Errorf("only mono engines are supported, got %d channels", channels)}
	}

	encoding, err := engine.Encoding(ctx)
	if err != nil {
		engine.Close()
		return nil, &ErrEngineInit{Err: fmt.Errorf("unable to get the encoding: %w", err)}
	}
	pcm, ok := encoding.(audio.EncodingPCM)
	if !ok || pcm.PCMFormat != audio.PCMFormatFloat32LE {
		engine.Close()
		return nil, &ErrEngineInit{Err: fmt.Errorf("only %s engines are supported, got %#+v", audio.PCMFormatFloat32LE, encoding)}
	}

	frameLength := int(engine.FrameLength())
	if frameLength <= 0 {
		engine.Close()
		return nil, &ErrEngineInit{Err: fmt.Errorf("the engine reported an invalid frame length: %d", frameLength)}
	}

	logger.Debugf(ctx, "denoiser session started with %T, frame length %d, %d Hz", engine, frameLength, pcm.SampleRate)
	return &Session{
		engine:      engine,
		state:       StateReady,
		frameLength: frameLength,
		sampleRate:  pcm.SampleRate,
	}, nil
}

// State, FrameLength, SampleRate and Processed describe the session and
// keep answering after Close; only Process and Close fail with
// ErrUseAfterDestroy.

func (s *Session) State() State {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.state
}

// FrameLength returns the amount of samples Process expects.
func (s *Session) FrameLength() int {
	return s.frameLength
}

// SampleRate returns the sample rate the engine was created for.
func (s *Session) SampleRate() audio.SampleRate {
	return s.sampleRate
}

// Processed returns the amount of frames processed so far.
func (s *Session) Processed() uint64 {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.processed
}

func (s *Session) checkReady() error {
	switch s.state {
	case StateReady:
		return nil
	case StateDestroyed:
		return ErrUseAfterDestroy
	default:
		return ErrNotReady
	}
}

// Process denoises exactly one frame.
func (s *Session) Process(
	ctx context.Context,
	frame []float32,
) (Result, error) {
	s.locker.Lock()
	defer s.locker.Unlock()

	if err := s.checkReady(); err != nil {
		return Result{}, err
	}
	if len(frame) != s.frameLength {
		return Result{}, &ErrFrameLength{Expected: s.frameLength, Received: len(frame)}
	}

	output := make([]float32, len(frame))
	vadProb, err := s.engine.SuppressNoise(ctx, frame, output)
	if err != nil {
		return Result{}, fmt.Errorf("unable to suppress noise in frame #%d: %w", s.processed, err)
	}
	s.processed++
	return Result{
		Frame:            output,
		VoiceProbability: vadProb,
	}, nil
}

// Close releases the engine. It may succeed only once.
func (s *Session) Close() error {
	s.locker.Lock()
	defer s.locker.Unlock()

	if err := s.checkReady(); err != nil {
		return err
	}
	s.state = StateDestroyed
	engine := s.engine
	s.engine = nil
	if err := engine.Close(); err != nil {
		return fmt.Errorf("unable to close the engine: %w", err)
	}
	return nil
}
