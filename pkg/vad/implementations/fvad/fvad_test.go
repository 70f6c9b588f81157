package fvad

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFVAD(t *testing.T) {
	ctx := context.Background()

	v, err := New(16000, 480, ModeAggressive)
	require.NoError(t, err)

	silence := make([]int16, 480)
	for i := 0; i < 10; i++ {
		confidence, err := v.VoiceConfidence(ctx, silence)
		require.NoError(t, err)
		require.Zero(t, confidence)
	}

	_, err = v.VoiceConfidence(ctx, make([]int16, 100))
	require.Error(t, err)

	require.NoError(t, v.Close())
	require.Error(t, v.Close())
	_, err = v.VoiceConfidence(ctx, silence)
	require.Error(t, err)
}

func TestFVADValidation(t *testing.T) {
	_, err := New(44100, 441, ModeQuality)
	require.Error(t, err)

	_, err = New(16000, 400, ModeQuality)
	require.Error(t, err)

	v, err := New(48000, 480, ModeQuality)
	require.NoError(t, err)
	require.Equal(t, uint(480), v.FrameLength())
	require.NoError(t, v.Close())
}

func TestFVADModeBounds(t *testing.T) {
	_, err := New(16000, 480, Mode(math.MaxInt8))
	require.Error(t, err)
}
