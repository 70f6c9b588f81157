package noisesuppression

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/noisecancel/pkg/audio"
)

// Dummy passes the audio through as is.
type Dummy struct {
	EncodingValue    audio.Encoding
	ChannelsValue    audio.Channel
	FrameLengthValue uint
}

var _ NoiseSuppression = (*Dummy)(nil)

func NewDummy(
	encoding audio.Encoding,
	channels audio.Channel,
	frameLength uint,
) *Dummy {
	return &Dummy{
		EncodingValue:    encoding,
		ChannelsValue:    channels,
		FrameLengthValue: frameLength,
	}
}

func (s *Dummy) Close() error {
	return nil
}

func (s *Dummy) Encoding(context.Context) (audio.Encoding, error) {
	return s.EncodingValue, nil
}

func (s *Dummy) Channels(context.Context) (audio.Channel, error) {
	return s.ChannelsValue, nil
}

func (s *Dummy) FrameLength() uint {
	return s.FrameLengthValue
}

func (s *Dummy) SuppressNoise(_ context.Context, input []float32, outputVoice []float32) (float64, error) {
	if len(input) != len(outputVoice) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(outputVoice))
	}
	copy(outputVoice, input)
	return 1, nil
}
