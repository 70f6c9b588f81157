// Package spectral implements a pure Go noise suppression engine: a
// spectral gate that tracks the noise floor of every frequency bin
// across frames and attenuates bins that do not rise above it.
package spectral

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mjibson/go-dsp/fft"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
	"github.com/xaionaro-go/noisecancel/pkg/noisesuppression"
)

type Options struct {
	// NoiseSmoothing is how much of the previous noise estimate is kept
	// when a bin is considered noise (0..1).
	NoiseSmoothing float64

	// SpeechThreshold is the power ratio above the noise floor at
	// which a bin is considered to carry voice.
	SpeechThreshold float64

	// GainFloor is the minimal amplitude gain applied to a bin.
	GainFloor float64

	// GainSmoothing is how much of the previous frame gain is kept (0..1).
	GainSmoothing float64

	// NoiseRise is the per-frame growth of the noise estimate of a bin
	// considered to carry voice, so a louder steady noise is eventually
	// learned.
	NoiseRise float64
}

func DefaultOptions() Options {
	return Options{
		NoiseSmoothing:  0.9,
		SpeechThreshold: 4,
		GainFloor:       0.1,
		GainSmoothing:   0.5,
		NoiseRise:       1.002,
	}
}

type Spectral struct {
	Locker      sync.Mutex
	Options     Options
	SampleRate  audio.SampleRate
	Length      uint
	NoiseFloor  []float64
	Gains       []float64
	FramesCount uint64
	closed      bool
}

var _ noisesuppression.NoiseSuppression = (*Spectral)(nil)

func New(
	sampleRate audio.SampleRate,
	frameLength uint,
	opts Options,
) (*Spectral, error) {
	if frameLength < 2 {
		return nil, fmt.Errorf("the frame length is too small: %d", frameLength)
	}
	if sampleRate == 0 {
		return nil, fmt.Errorf("the sample rate is not set")
	}
	if opts.NoiseSmoothing < 0 || opts.NoiseSmoothing >= 1 {
		return nil, fmt.Errorf("NoiseSmoothing should be in [0, 1), got %v", opts.NoiseSmoothing)
	}
	if opts.GainSmoothing < 0 || opts.GainSmoothing >= 1 {
		return nil, fmt.Errorf("GainSmoothing should be in [0, 1), got %v", opts.GainSmoothing)
	}
	if opts.GainFloor < 0 || opts.GainFloor > 1 {
		return nil, fmt.Errorf("GainFloor should be in [0, 1], got %v", opts.GainFloor)
	}
	if opts.SpeechThreshold <= 1 {
		return nil, fmt.Errorf("SpeechThreshold should be above 1, got %v", opts.SpeechThreshold)
	}
	if opts.NoiseRise < 1 {
		return nil, fmt.Errorf("NoiseRise should be at least 1, got %v", opts.NoiseRise)
	}

	gains := make([]float64, frameLength)
	for idx := range gains {
		gains[idx] = 1
	}
	return &Spectral{
		Options:    opts,
		SampleRate: sampleRate,
		Length:     frameLength,
		NoiseFloor: make([]float64, frameLength),
		Gains:      gains,
	}, nil
}

func (s *Spectral) Close() error {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.closed {
		return fmt.Errorf("double-free attempt")
	}
	s.closed = true
	return nil
}

func (s *Spectral) Encoding(context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatFloat32LE,
		SampleRate: s.SampleRate,
	}, nil
}

func (s *Spectral) Channels(context.Context) (audio.Channel, error) {
	return 1, nil
}

func (s *Spectral) FrameLength() uint {
	return s.Length
}

func (s *Spectral) SuppressNoise(
	ctx context.Context,
	input []float32,
	outputVoice []float32,
) (_ret float64, _err error) {
	logger.Tracef(ctx, "SuppressNoise, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/SuppressNoise, len:%d: %v %v", len(input), _ret, _err) }()

	if len(input) != len(outputVoice) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(outputVoice))
	}
	if len(input) != int(s.Length) {
		return 0, fmt.Errorf("the size of the input is not equal to the frame length: %d != %d", len(input), s.Length)
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.closed {
		return 0, fmt.Errorf("use after close")
	}

	samples := make([]float64, len(input))
	for idx, v := range input {
		samples[idx] = float64(v)
	}
	spectrum := fft.FFTReal(samples)

	opts := s.Options
	firstFrame := s.FramesCount == 0
	var totalPower, voicedPower float64
	for idx, bin := range spectrum {
		magnitude := cmplx.Abs(bin)
		power := magnitude * magnitude
		noise := s.NoiseFloor[idx]
		totalPower += power

		switch {
		case firstFrame:
			noise = power
		case power <= noise*opts.SpeechThreshold:
			noise = opts.NoiseSmoothing*noise + (1-opts.NoiseSmoothing)*power
		default:
			noise *= opts.NoiseRise
			voicedPower += power
		}
		s.NoiseFloor[idx] = noise

		gain := 1.0
		if power > 0 {
			gain = math.Sqrt(math.Max(0, 1-noise/power))
		}
		gain = math.Max(gain, opts.GainFloor)
		gain = opts.GainSmoothing*s.Gains[idx] + (1-opts.GainSmoothing)*gain
		s.Gains[idx] = gain

		spectrum[idx] = bin * complex(gain, 0)
	}
	s.FramesCount++

	restored := fft.IFFT(spectrum)
	for idx, v := range restored {
		outputVoice[idx] = float32(real(v))
	}

	if totalPower == 0 {
		return 0, nil
	}
	return voicedPower / totalPower, nil
}
