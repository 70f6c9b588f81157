package vad

import (
	"context"
	"io"
)

// VAD is a voice activity detector working on frames of mono
// signed 16-bit samples.
type VAD interface {
	io.Closer

	FrameLength() uint

	// VoiceConfidence returns the probability (0..1) of the frame
	// containing voice.
	VoiceConfidence(ctx context.Context, frame []int16) (float64, error)
}
