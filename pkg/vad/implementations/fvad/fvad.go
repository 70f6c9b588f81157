// Package fvad provides a voice activity detector on top of libfvad
// (the WebRTC VAD).
package fvad

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/josharian/fvad"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
	"github.com/xaionaro-go/noisecancel/pkg/vad"
)

// Mode is the aggressiveness of the detector, from 0 (quality) to 3
// (very aggressive).
type Mode int

const (
	ModeQuality = Mode(iota)
	ModeLowBitrate
	ModeAggressive
	ModeVeryAggressive
)

type VAD struct {
	Locker     sync.Mutex
	Detector   *fvad.Detector
	Length     uint
	SampleRate audio.SampleRate
	closed     bool
}

var _ vad.VAD = (*VAD)(nil)

func New(
	sampleRate audio.SampleRate,
	frameLength uint,
	mode Mode,
) (*VAD, error) {
	if mode < ModeQuality || mode > ModeVeryAggressive {
		return nil, fmt.Errorf("unknown mode %d", mode)
	}
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("unsupported sample rate %d (expected 8000, 16000, 32000 or 48000)", sampleRate)
	}
	frameMS := uint64(frameLength) * 1000 / uint64(sampleRate)
	if uint64(frameLength)*1000%uint64(sampleRate) != 0 || (frameMS != 10 && frameMS != 20 && frameMS != 30) {
		return nil, fmt.Errorf("frames of %d samples at %dHz are not 10, 20 or 30ms long", frameLength, sampleRate)
	}

	d := fvad.New()
	if d == nil {
		return nil, fmt.Errorf("unable to initialize fvad")
	}
	if err := d.SetMode(int(mode)); err != nil {
		return nil, fmt.Errorf("unable to set mode %d: %w", mode, err)
	}
	if err := d.SetSampleRate(int(sampleRate)); err != nil {
		return nil, fmt.Errorf("unable to set sample rate %d: %w", sampleRate, err)
	}
	return &VAD{
		Detector:   d,
		Length:     frameLength,
		SampleRate: sampleRate,
	}, nil
}

func (v *VAD) FrameLength() uint {
	return v.Length
}

func (v *VAD) VoiceConfidence(
	ctx context.Context,
	frame []int16,
) (_ret float64, _err error) {
	logger.Tracef(ctx, "VoiceConfidence, len:%d", len(frame))
	defer func() { logger.Tracef(ctx, "/VoiceConfidence, len:%d: %v %v", len(frame), _ret, _err) }()

	if len(frame) != int(v.Length) {
		return 0, fmt.Errorf("the size of the frame is not equal to the frame length: %d != %d", len(frame), v.Length)
	}

	v.Locker.Lock()
	defer v.Locker.Unlock()
	if v.closed {
		return 0, fmt.Errorf("use after close")
	}

	isVoice, err := v.Detector.Process(frame)
	if err != nil {
		return 0, fmt.Errorf("unable to process the frame: %w", err)
	}
	if isVoice {
		return 1, nil
	}
	return 0, nil
}

func (v *VAD) Close() error {
	v.Locker.Lock()
	defer v.Locker.Unlock()
	if v.closed {
		return fmt.Errorf("double-free attempt")
	}
	v.closed = true
	v.Detector = nil
	return nil
}
