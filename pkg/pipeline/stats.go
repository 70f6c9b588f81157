package pipeline

import (
	"time"
)

// Iteration describes a single processed chunk.
type Iteration struct {
	Chunk        uint64
	Samples      int
	Frames       int
	VoicedFrames int
	Elapsed      time.Duration
	Overflow     bool
	Exceeded     bool
}

type StopReason int

const (
	StopReasonUndefined = StopReason(iota)
	StopReasonEndOfInput
	StopReasonCancelled
	StopReasonFailure
)

func (r StopReason) String() string {
	switch r {
	case StopReasonUndefined:
		return "running"
	case StopReasonEndOfInput:
		return "end of input"
	case StopReasonCancelled:
		return "cancelled"
	case StopReasonFailure:
		return "failure"
	default:
		return "unknown"
	}
}

type Stats struct {
	Chunks         uint64
	Frames         uint64
	FailedFrames   uint64
	Samples        uint64
	Timeouts       uint64
	Overflows      uint64
	DroppedSamples uint64
	BudgetMisses   uint64
	MaxIteration   time.Duration
	TotalIteration time.Duration

	VoicedFrames uint64
	// FirstVoice is the offset of the first voiced run in the processed
	// output; negative if no voice was detected.
	FirstVoice time.Duration

	TailSamples int
	TailPolicy  TailPolicy
	StopReason  StopReason
}

func (s Stats) AvgIteration() time.Duration {
	if s.Chunks == 0 {
		return 0
	}
	return s.TotalIteration / time.Duration(s.Chunks)
}
