package noisesuppression

import (
	"context"

	"github.com/xaionaro-go/noisecancel/pkg/audio"
)

// NoiseSuppression is a stateful noise suppression engine. Its hidden
// state depends on the order of the processed frames, thus
// SuppressNoise calls must never be reordered or run concurrently.
type NoiseSuppression interface {
	// Encoding must be audio.EncodingPCM with audio.PCMFormatFloat32LE
	// and Channels must be 1.
	audio.AbstractAnalyzer

	// FrameLength is the amount of samples (per channel) SuppressNoise
	// expects in a single frame.
	FrameLength() uint

	// SuppressNoise denoises one frame of normalized [-1, 1] samples
	// and returns the probability that the frame contains voice.
	SuppressNoise(ctx context.Context, input []float32, outputVoice []float32) (float64, error)
}
