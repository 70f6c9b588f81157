//go:build rnnoise
// +build rnnoise

package rnnoise

import (
	"context"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
	"github.com/xaionaro-go/noisecancel/pkg/noisesuppression"
)

/*
#cgo pkg-config: rnnoise
#cgo CFLAGS: -march=native
#include <rnnoise.h>
*/
import "C"

const (
	debugByPassProcessingFrames = false
)

type RNNoise struct {
	Locker       sync.Mutex
	DenoiseState *C.DenoiseState
	SampleRate   audio.SampleRate
	Factor       int
	Buffer       []float32
}

var _ noisesuppression.NoiseSuppression = (*RNNoise)(nil)

var nativeFrameSize int

func init() {
	nativeFrameSize = int(C.rnnoise_get_frame_size())
}

// New creates an RNNoise instance for mono audio of the given sample
// rate. RNNoise itself works at 48kHz only, so lower rates are
// upsampled before and downsampled after the suppression.
func New(
	sampleRate audio.SampleRate,
) (*RNNoise, error) {
	factor, err := upsampleFactor(sampleRate)
	if err != nil {
		return nil, err
	}
	denoiseState := C.rnnoise_create(nil)
	if denoiseState == nil {
		return nil, fmt.Errorf("rnnoise_create returned NULL")
	}
	return &RNNoise{
		DenoiseState: denoiseState,
		SampleRate:   sampleRate,
		Factor:       factor,
		Buffer:       make([]float32, nativeFrameSize*factor),
	}, nil
}

func (s *RNNoise) Close() error {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.DenoiseState == nil {
		return fmt.Errorf("double-free attempt")
	}
	C.rnnoise_destroy(s.DenoiseState)
	s.DenoiseState = nil
	return nil
}

func (s *RNNoise) Encoding(ctx context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatFloat32LE,
		SampleRate: s.SampleRate,
	}, nil
}

func (s *RNNoise) Channels(ctx context.Context) (audio.Channel, error) {
	return 1, nil
}

// FrameLength returns the frame size at the configured sample rate:
// Factor native frames are processed per call.
func (s *RNNoise) FrameLength() uint {
	return uint(nativeFrameSize)
}

func (s *RNNoise) SuppressNoise(ctx context.Context, input []float32, outputVoice []float32) (_ret float64, _err error) {
	logger.Tracef(ctx, "SuppressNoise, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/SuppressNoise, len:%d: %v", len(input), _err) }()

	if len(input) != len(outputVoice) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(outputVoice))
	}
	if len(input) != int(s.FrameLength()) {
		return 0, fmt.Errorf("the size of the input is not equal to the frame length: %d != %d", len(input), s.FrameLength())
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.DenoiseState == nil {
		return 0, fmt.Errorf("use after close")
	}

	upsample(s.Buffer, input, s.Factor)
	gain(s.Buffer)

	var maxVADProb float64
	for pos := 0; pos < len(s.Buffer); pos += nativeFrameSize {
		native := s.Buffer[pos : pos+nativeFrameSize]
		if debugByPassProcessingFrames {
			continue
		}
		vadProb := C.rnnoise_process_frame(
			s.DenoiseState,
			(*C.float)(unsafe.Pointer(unsafe.SliceData(native))),
			(*C.float)(unsafe.Pointer(unsafe.SliceData(native))),
		)
		if float64(vadProb) > maxVADProb {
			maxVADProb = float64(vadProb)
		}
	}

	ungain(s.Buffer)
	downsample(outputVoice, s.Buffer, s.Factor)
	return maxVADProb, nil
}

// RNNoise expects samples in the int16 range.
func gain(buf []float32) {
	for idx := range buf {
		buf[idx] *= math.MaxInt16
	}
}

func ungain(buf []float32) {
	for idx := range buf {
		buf[idx] /= math.MaxInt16
	}
}
