package audio

import (
	"github.com/xaionaro-go/noisecancel/pkg/audio/types"
)

type (
	SampleRate      = types.SampleRate
	Channel         = types.Channel
	PCMFormat       = types.PCMFormat
	Encoding        = types.Encoding
	EncodingPCM     = types.EncodingPCM
	Format          = types.Format
	PlayerPCM       = types.PlayerPCM
	RecorderPCM     = types.RecorderPCM
	Stream          = types.Stream
	PlayStream      = types.PlayStream
	RecordStream    = types.RecordStream
	OverflowCounter = types.OverflowCounter
)

const (
	PCMFormatUndefined = types.PCMFormatUndefined
	PCMFormatU8        = types.PCMFormatU8
	PCMFormatS16LE     = types.PCMFormatS16LE
	PCMFormatS16BE     = types.PCMFormatS16BE
	PCMFormatS32LE     = types.PCMFormatS32LE
	PCMFormatFloat32LE = types.PCMFormatFloat32LE
	PCMFormatFloat32BE = types.PCMFormatFloat32BE
	PCMFormatFloat64LE = types.PCMFormatFloat64LE
)
