package resampler

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xaionaro-go/noisecancel/pkg/audio"
)

func checkFormat(f audio.PCMFormat) error {
	switch f {
	case audio.PCMFormatU8,
		audio.PCMFormatS16LE, audio.PCMFormatS16BE,
		audio.PCMFormatS32LE,
		audio.PCMFormatFloat32LE, audio.PCMFormatFloat32BE,
		audio.PCMFormatFloat64LE:
		return nil
	default:
		return fmt.Errorf("unsupported PCM format: %v", f)
	}
}

// decodeSample returns the sample as a value in [-1, 1).
func decodeSample(f audio.PCMFormat, p []byte) float64 {
	switch f {
	case audio.PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case audio.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case audio.PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / 32768
	case audio.PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	case audio.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case audio.PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case audio.PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func quantize(v float64, scale float64) float64 {
	v = math.Round(v * scale)
	return math.Max(-scale, math.Min(scale-1, v))
}

func encodeSample(f audio.PCMFormat, p []byte, v float64) {
	switch f {
	case audio.PCMFormatU8:
		p[0] = byte(quantize(v, 128) + 128)
	case audio.PCMFormatS16LE:
		binary.LittleEndian.PutUint16(p, uint16(int16(quantize(v, 32768))))
	case audio.PCMFormatS16BE:
		binary.BigEndian.PutUint16(p, uint16(int16(quantize(v, 32768))))
	case audio.PCMFormatS32LE:
		binary.LittleEndian.PutUint32(p, uint32(int32(quantize(v, 2147483648))))
	case audio.PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case audio.PCMFormatFloat32BE:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case audio.PCMFormatFloat64LE:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}
