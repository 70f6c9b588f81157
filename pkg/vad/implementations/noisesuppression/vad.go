package noisesuppression

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/noisecancel/pkg/noisesuppression"
	"github.com/xaionaro-go/noisecancel/pkg/postprocess"
	"github.com/xaionaro-go/noisecancel/pkg/vad"
)

// VAD uses the voice probability reported by a dedicated noise
// suppression engine instance. The denoised output is thrown away.
type VAD struct {
	noisesuppression.NoiseSuppression
	Buffer []float32
}

var _ vad.VAD = (*VAD)(nil)

func NewVAD(
	ctx context.Context,
	noiseSuppression noisesuppression.NoiseSuppression,
) (*VAD, error) {
	channels, err := noiseSuppression.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the amount of channels: %w", err)
	}
	if channels != 1 {
		return nil, fmt.Errorf("only mono engines are supported, but the engine has %d channels", channels)
	}
	frameLength := noiseSuppression.FrameLength()
	if frameLength == 0 {
		return nil, fmt.Errorf("the engine reported zero frame length")
	}
	logger.Debugf(ctx, "engine-based VAD with frame length %d", frameLength)

	return &VAD{
		NoiseSuppression: noiseSuppression,
		Buffer:           make([]float32, frameLength),
	}, nil
}

func (v *VAD) VoiceConfidence(
	ctx context.Context,
	frame []int16,
) (float64, error) {
	if len(frame) != len(v.Buffer) {
		return 0, fmt.Errorf("the size of the frame is not equal to the frame length: %d != %d", len(frame), len(v.Buffer))
	}
	confidence, err := v.NoiseSuppression.SuppressNoise(ctx, postprocess.ToFloat(frame), v.Buffer)
	if err != nil {
		return 0, fmt.Errorf("unable to get the voice probability: %w", err)
	}
	return confidence, nil
}
