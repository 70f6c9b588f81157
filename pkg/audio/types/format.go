package types

import (
	"fmt"
	"time"
)

type SampleRate uint32

type Channel uint32

type PCMFormat uint

const (
	PCMFormatUndefined = PCMFormat(iota)
	PCMFormatU8
	PCMFormatS16LE
	PCMFormatS16BE
	PCMFormatS32LE
	PCMFormatFloat32LE
	PCMFormatFloat32BE
	PCMFormatFloat64LE
	endOfPCMFormat
)

// Size returns the size of one sample (of one channel) in bytes.
func (f PCMFormat) Size() uint {
	switch f {
	case PCMFormatU8:
		return 1
	case PCMFormatS16LE, PCMFormatS16BE:
		return 2
	case PCMFormatS32LE, PCMFormatFloat32LE, PCMFormatFloat32BE:
		return 4
	case PCMFormatFloat64LE:
		return 8
	default:
		return 0
	}
}

// BitDepth returns the size of one sample in bits.
func (f PCMFormat) BitDepth() uint {
	return f.Size() * 8
}

func (f PCMFormat) String() string {
	switch f {
	case PCMFormatUndefined:
		return "undefined"
	case PCMFormatU8:
		return "u8"
	case PCMFormatS16LE:
		return "s16le"
	case PCMFormatS16BE:
		return "s16be"
	case PCMFormatS32LE:
		return "s32le"
	case PCMFormatFloat32LE:
		return "f32le"
	case PCMFormatFloat32BE:
		return "f32be"
	case PCMFormatFloat64LE:
		return "f64le"
	default:
		return fmt.Sprintf("unknown_format_%d", uint(f))
	}
}

type Encoding interface {
	BytesPerSample() uint
	BytesForDuration(time.Duration) uint64
}

type EncodingPCM struct {
	PCMFormat  PCMFormat
	SampleRate SampleRate
}

var _ Encoding = EncodingPCM{}

func (e EncodingPCM) BytesPerSample() uint {
	return e.PCMFormat.Size()
}

// BytesForDuration returns the amount of bytes a single channel needs
// to carry the given duration.
func (e EncodingPCM) BytesForDuration(d time.Duration) uint64 {
	return uint64(e.SamplesForDuration(d)) * uint64(e.BytesPerSample())
}

// SamplesForDuration returns the amount of samples (per channel) in the
// given duration.
func (e EncodingPCM) SamplesForDuration(d time.Duration) int {
	return int(d * time.Duration(e.SampleRate) / time.Second)
}

// Format describes a PCM stream layout.
type Format struct {
	SampleRate SampleRate
	Channels   Channel
	PCMFormat  PCMFormat
}

func (f Format) Encoding() EncodingPCM {
	return EncodingPCM{
		PCMFormat:  f.PCMFormat,
		SampleRate: f.SampleRate,
	}
}

// FrameSize returns the size in bytes of one sample for every channel.
func (f Format) FrameSize() uint {
	return f.PCMFormat.Size() * uint(f.Channels)
}
