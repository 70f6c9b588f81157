package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
)

var testFormat = audio.Format{
	SampleRate: 16000,
	Channels:   1,
	PCMFormat:  audio.PCMFormatS16LE,
}

type fakeRecordStream struct {
	overflows uint64
	closed    bool
}

func (s *fakeRecordStream) Close() error {
	s.closed = true
	return nil
}

func (s *fakeRecordStream) Overflows() uint64 {
	return s.overflows
}

type fakeRecorder struct {
	locker sync.Mutex
	writer io.Writer
	stream *fakeRecordStream
}

func (r *fakeRecorder) Close() error               { return nil }
func (r *fakeRecorder) Ping(context.Context) error { return nil }

func (r *fakeRecorder) RecordPCM(
	_ context.Context,
	_ audio.SampleRate,
	_ audio.Channel,
	_ audio.PCMFormat,
	writer io.Writer,
) (audio.RecordStream, error) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.writer = writer
	r.stream = &fakeRecordStream{}
	return r.stream, nil
}

func (r *fakeRecorder) emit(t *testing.T, samples ...int16) {
	b := make([]byte, len(samples)*2)
	for idx, v := range samples {
		binary.LittleEndian.PutUint16(b[idx*2:], uint16(v))
	}
	n, err := r.writer.Write(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
}

func sequence(from, count int) []int16 {
	out := make([]int16, count)
	for idx := range out {
		out[idx] = int16(from + idx)
	}
	return out
}

func TestDeviceSource(t *testing.T) {
	ctx := context.Background()

	t.Run("chunking", func(t *testing.T) {
		rec := &fakeRecorder{}
		src, err := OpenDevice(ctx, rec, testFormat, 100)
		require.NoError(t, err)
		defer src.Close()

		rec.emit(t, sequence(0, 70)...)
		_, err = src.Read(ctx, 100, 10*time.Millisecond)
		require.ErrorIs(t, err, ErrTimeout)

		rec.emit(t, sequence(70, 150)...)
		chunk, err := src.Read(ctx, 100, time.Second)
		require.NoError(t, err)
		require.Equal(t, sequence(0, 100), chunk.Samples)
		require.False(t, chunk.Overflowed())

		chunk, err = src.Read(ctx, 60, time.Second)
		require.NoError(t, err)
		require.Equal(t, sequence(100, 60), chunk.Samples)
		chunk, err = src.Read(ctx, 60, time.Second)
		require.NoError(t, err)
		require.Equal(t, sequence(160, 40), chunk.Samples)

		require.Equal(t, uint64(440), src.BytesCaptured())
	})

	t.Run("overflow", func(t *testing.T) {
		rec := &fakeRecorder{}
		src, err := OpenDevice(ctx, rec, testFormat, 10)
		require.NoError(t, err)
		defer src.Close()

		for i := 0; i < DefaultQueueSize+2; i++ {
			rec.emit(t, sequence(i*10, 10)...)
		}
		rec.stream.overflows = 3

		chunk, err := src.Read(ctx, 10, time.Second)
		require.NoError(t, err)
		require.Equal(t, sequence(20, 10), chunk.Samples)
		require.Equal(t, uint64(20), chunk.Dropped)
		require.Equal(t, uint64(3), chunk.DeviceOverflows)
		require.True(t, chunk.Overflowed())

		for i := 3; i < DefaultQueueSize+2; i++ {
			chunk, err := src.Read(ctx, 10, time.Second)
			require.NoError(t, err)
			require.Equal(t, sequence(i*10, 10), chunk.Samples)
			require.False(t, chunk.Overflowed())
		}
		require.Equal(t, uint64(20), src.DroppedSamples())
	})

	t.Run("close", func(t *testing.T) {
		rec := &fakeRecorder{}
		src, err := OpenDevice(ctx, rec, testFormat, 10)
		require.NoError(t, err)

		rec.emit(t, sequence(0, 10)...)
		require.NoError(t, src.Close())
		require.True(t, rec.stream.closed)

		chunk, err := src.Read(ctx, 10, time.Second)
		require.NoError(t, err)
		require.Len(t, chunk.Samples, 10)

		_, err = src.Read(ctx, 10, time.Second)
		require.ErrorIs(t, err, io.EOF)

		_, err = rec.writer.Write([]byte{0, 0})
		require.Error(t, err)
	})

	t.Run("cancel", func(t *testing.T) {
		rec := &fakeRecorder{}
		src, err := OpenDevice(ctx, rec, testFormat, 10)
		require.NoError(t, err)
		defer src.Close()

		cancelledCtx, cancelFn := context.WithCancel(ctx)
		cancelFn()
		_, err = src.Read(cancelledCtx, 10, time.Second)
		require.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("silence", func(t *testing.T) {
		src, err := OpenDevice(ctx, audio.RecorderPCMDummy{}, testFormat, 160)
		require.NoError(t, err)
		defer src.Close()

		chunk, err := src.Read(ctx, 160, 5*time.Second)
		require.NoError(t, err)
		require.Equal(t, make([]int16, 160), chunk.Samples)
	})

	t.Run("invalid_format", func(t *testing.T) {
		format := testFormat
		format.Channels = 2
		_, err := OpenDevice(ctx, &fakeRecorder{}, format, 10)
		require.Error(t, err)

		_, err = OpenDevice(ctx, &fakeRecorder{}, testFormat, 0)
		require.Error(t, err)
	})
}

func writeTestWAV(t *testing.T, sampleRate, channels int, data []int) string {
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()

	t.Run("wav_mono", func(t *testing.T) {
		data := make([]int, 1000)
		for idx := range data {
			data[idx] = idx - 500
		}
		src, err := OpenFile(ctx, writeTestWAV(t, 16000, 1, data), testFormat, 480)
		require.NoError(t, err)
		defer src.Close()

		var got []int16
		var sizes []int
		for {
			chunk, err := src.Read(ctx, 480, time.Second)
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			sizes = append(sizes, len(chunk.Samples))
			got = append(got, chunk.Samples...)
		}
		require.Equal(t, []int{480, 480, 40}, sizes)
		require.Len(t, got, len(data))
		for idx, v := range data {
			require.Equal(t, int16(v), got[idx], "sample %d", idx)
		}
	})

	t.Run("wav_stereo_downsampled", func(t *testing.T) {
		data := make([]int, 2*3200)
		for idx := range data {
			data[idx] = 1000
		}
		src, err := OpenFile(ctx, writeTestWAV(t, 32000, 2, data), testFormat, 3200)
		require.NoError(t, err)
		defer src.Close()

		chunk, err := src.Read(ctx, 3200, time.Second)
		require.NoError(t, err)
		require.Len(t, chunk.Samples, 1600)
		for _, v := range chunk.Samples {
			require.Equal(t, int16(1000), v)
		}
		_, err = src.Read(ctx, 3200, time.Second)
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("unknown_container", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "input.bin")
		require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0o644))
		_, err := OpenFile(ctx, path, testFormat, 480)
		require.Error(t, err)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := OpenFile(ctx, filepath.Join(t.TempDir(), "nope.wav"), testFormat, 480)
		require.Error(t, err)
	})
}
