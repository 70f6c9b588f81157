//go:build !rnnoise
// +build !rnnoise

package rnnoise

import (
	"fmt"

	"github.com/xaionaro-go/noisecancel/pkg/audio"
	"github.com/xaionaro-go/noisecancel/pkg/noisesuppression"
)

type RNNoise = noisesuppression.Dummy

func New(
	sampleRate audio.SampleRate,
) (*RNNoise, error) {
	if _, err := upsampleFactor(sampleRate); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("built without tag 'rnnoise'")
}
