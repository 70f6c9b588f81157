package container

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

func randomSamples(seed int64, count int) []int16 {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]int16, count)
	for idx := range samples {
		samples[idx] = int16(rng.Intn(65536) - 32768)
	}
	return samples
}

func TestWriteVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "processed_audio.wav")
	samples := randomSamples(1, 16000)

	require.NoError(t, Write(ctx, path, 16000, 1, 16, samples))

	info, err := Verify(path)
	require.NoError(t, err)
	require.Equal(t, Info{
		Channels:    1,
		SampleWidth: 2,
		FrameRate:   16000,
		FrameCount:  16000,
	}, info, spew.Sdump(info))

	readInfo, readSamples, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, info, readInfo)
	require.Equal(t, samples, readSamples)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are left behind")
}

func TestWriteWiderSamples(t *testing.T) {
	ctx := context.Background()
	for _, bitDepth := range []int{24, 32} {
		path := filepath.Join(t.TempDir(), "wide.wav")
		require.NoError(t, Write(ctx, path, 48000, 2, bitDepth, randomSamples(2, 960)))

		info, err := Verify(path)
		require.NoError(t, err)
		require.Equal(t, Info{
			Channels:    2,
			SampleWidth: bitDepth / 8,
			FrameRate:   48000,
			FrameCount:  480,
		}, info)

		_, _, err = Read(path)
		require.Error(t, err)
	}
}

func TestWriteInvalidArguments(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.wav")
	require.Error(t, Write(ctx, path, 0, 1, 16, nil))
	require.Error(t, Write(ctx, path, 16000, 2, 16, []int16{1, 2, 3}))
	require.Error(t, Write(ctx, path, 16000, 1, 12, []int16{1}))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestVerifyInvalid(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.wav")
		require.NoError(t, os.WriteFile(path, []byte("this is not a RIFF file at all, just some text"), 0o644))
		_, err := Verify(path)
		var formatErr *ErrInvalidFormat
		require.True(t, errors.As(err, &formatErr), "%v", err)
		require.Equal(t, path, formatErr.Path)
	})

	t.Run("truncated", func(t *testing.T) {
		path := filepath.Join(dir, "truncated.wav")
		require.NoError(t, Write(ctx, path, 16000, 1, 16, randomSamples(3, 1000)))
		stat, err := os.Stat(path)
		require.NoError(t, err)
		require.NoError(t, os.Truncate(path, stat.Size()-100))

		_, err = Verify(path)
		var formatErr *ErrInvalidFormat
		require.True(t, errors.As(err, &formatErr), "%v", err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Verify(filepath.Join(dir, "missing.wav"))
		require.Error(t, err)
		var formatErr *ErrInvalidFormat
		require.False(t, errors.As(err, &formatErr))
	})
}

func TestInfoString(t *testing.T) {
	require.Equal(t,
		" - Channels: 1\n - Sample Width: 2 bytes\n - Frame Rate: 16000 Hz\n - Frames: 3200\n",
		Info{Channels: 1, SampleWidth: 2, FrameRate: 16000, FrameCount: 3200}.String(),
	)
}
