package pipeline

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	DefaultChunkFrames    = 3200
	DefaultLatencyBudget  = 100 * time.Millisecond
	DefaultVoiceThreshold = 0.5
)

type Config struct {
	// ChunkFrames is the maximal amount of samples read from the
	// capture per iteration.
	ChunkFrames int

	// ReadTimeout bounds the wait for a chunk. It may not exceed the
	// duration of a chunk, which is also what zero means.
	ReadTimeout time.Duration

	LatencyBudget time.Duration
	TailPolicy    TailPolicy

	// A frame is considered voiced if its voice probability is at
	// least VoiceThreshold. The first voice offset is the start of the
	// first voiced run lasting at least VoiceMinDuration.
	VoiceThreshold   float64
	VoiceMinDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		ChunkFrames:    DefaultChunkFrames,
		LatencyBudget:  DefaultLatencyBudget,
		TailPolicy:     TailPolicyPad,
		VoiceThreshold: DefaultVoiceThreshold,
	}
}

func (cfg Config) Validate() error {
	var mErr *multierror.Error
	if cfg.ChunkFrames <= 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("chunk size should be positive, got %d", cfg.ChunkFrames))
	}
	if cfg.ReadTimeout < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("read timeout should not be negative, got %v", cfg.ReadTimeout))
	}
	if cfg.LatencyBudget <= 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("latency budget should be positive, got %v", cfg.LatencyBudget))
	}
	if _, err := cfg.TailPolicy.MarshalText(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	if cfg.VoiceThreshold < 0 || cfg.VoiceThreshold > 1 {
		mErr = multierror.Append(mErr, fmt.Errorf("voice threshold should be in [0, 1], got %v", cfg.VoiceThreshold))
	}
	if cfg.VoiceMinDuration < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("minimal voice duration should not be negative, got %v", cfg.VoiceMinDuration))
	}
	return mErr.ErrorOrNil()
}
