// Package postprocess converts denoised frames between the normalized
// float domain of the engines and 16-bit integer PCM.
package postprocess

import (
	"fmt"
	"math"
)

const DefaultGain = 1.5

// PostProcessor amplifies a denoised frame and converts it to 16-bit PCM.
// It keeps no state, so frames may be applied in any order.
type PostProcessor struct {
	Gain float64
}

func New(gain float64) (*PostProcessor, error) {
	if math.IsNaN(gain) || math.IsInf(gain, 0) || gain < 0 {
		return nil, fmt.Errorf("invalid gain factor: %v", gain)
	}
	return &PostProcessor{
		Gain: gain,
	}, nil
}

// Apply multiplies every sample by the gain, scales it to the 16-bit
// range and saturates it to [-32768, 32767].
func (p *PostProcessor) Apply(frame []float32) []int16 {
	result := make([]int16, len(frame))
	p.ApplyTo(result, frame)
	return result
}

// ApplyTo is Apply writing into dst, which must be at least len(frame) long.
func (p *PostProcessor) ApplyTo(dst []int16, frame []float32) {
	for idx, sample := range frame {
		dst[idx] = saturate(float64(sample) * p.Gain * math.MaxInt16)
	}
}

func saturate(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}

// ToFloat converts 16-bit PCM to the normalized float domain.
func ToFloat(samples []int16) []float32 {
	result := make([]float32, len(samples))
	for idx, sample := range samples {
		result[idx] = float32(sample) / math.MaxInt16
	}
	return result
}
