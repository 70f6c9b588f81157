package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodingPCM(t *testing.T) {
	enc := EncodingPCM{
		PCMFormat:  PCMFormatS16LE,
		SampleRate: 16000,
	}
	require.Equal(t, uint(2), enc.BytesPerSample())
	require.Equal(t, 3200, enc.SamplesForDuration(200*time.Millisecond))
	require.Equal(t, 480, enc.SamplesForDuration(30*time.Millisecond))
	require.Equal(t, uint64(6400), enc.BytesForDuration(200*time.Millisecond))
}

func TestPCMFormat(t *testing.T) {
	require.Equal(t, uint(16), PCMFormatS16LE.BitDepth())
	require.Equal(t, uint(32), PCMFormatFloat32LE.BitDepth())
	require.Equal(t, "s16le", PCMFormatS16LE.String())
	require.Equal(t, uint(0), PCMFormatUndefined.Size())

	f := Format{SampleRate: 48000, Channels: 2, PCMFormat: PCMFormatFloat32LE}
	require.Equal(t, uint(8), f.FrameSize())
}
