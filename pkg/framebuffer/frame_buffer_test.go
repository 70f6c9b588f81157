package framebuffer

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(start, count int) []int16 {
	result := make([]int16, count)
	for idx := range result {
		result[idx] = int16(start + idx)
	}
	return result
}

func drainAll(b *Buffer) [][]int16 {
	var frames [][]int16
	for frame := range b.Drain() {
		frames = append(frames, frame)
	}
	return frames
}

func TestBufferChunkScenario(t *testing.T) {
	b, err := New(480, 3200)
	require.NoError(t, err)

	type step struct {
		frames   int
		residual int
	}
	steps := []step{
		{frames: 6, residual: 320},
		{frames: 7, residual: 160},
		{frames: 7, residual: 0},
		{frames: 6, residual: 320},
	}

	next := 0
	expected := int16(0)
	for idx, st := range steps {
		require.NoError(t, b.Push(sequence(next, 3200)))
		next += 3200

		frames := drainAll(b)
		require.Len(t, frames, st.frames, "step %d", idx)
		require.Equal(t, st.residual, b.Residual(), "step %d", idx)
		for _, frame := range frames {
			require.Len(t, frame, 480)
			for _, sample := range frame {
				require.Equal(t, expected, sample)
				expected++
			}
		}
	}
}

func TestBufferDrainIsIdempotent(t *testing.T) {
	b, err := New(480, 0)
	require.NoError(t, err)

	require.NoError(t, b.Push(sequence(0, 1000)))
	require.Len(t, drainAll(b), 2)
	require.Empty(t, drainAll(b))
	require.Empty(t, drainAll(b))
	require.Equal(t, 40, b.Residual())
}

func TestBufferDrainStoppedEarly(t *testing.T) {
	b, err := New(4, 16)
	require.NoError(t, err)
	require.NoError(t, b.Push(sequence(0, 12)))

	for frame := range b.Drain() {
		require.Equal(t, []int16{0, 1, 2, 3}, frame)
		break
	}
	require.Equal(t, 8, b.Residual())

	frames := drainAll(b)
	require.Equal(t, [][]int16{{4, 5, 6, 7}, {8, 9, 10, 11}}, frames)
}

func TestBufferGrows(t *testing.T) {
	b, err := New(4, 2)
	require.NoError(t, err)

	require.NoError(t, b.Push(sequence(0, 3)))
	require.Empty(t, drainAll(b))
	require.NoError(t, b.Push(sequence(3, 100)))

	var got []int16
	for _, frame := range drainAll(b) {
		got = append(got, frame...)
	}
	require.Equal(t, sequence(0, 100), got)
	require.Equal(t, sequence(100, 3), b.Flush())
	require.Zero(t, b.Residual())
	require.Nil(t, b.Flush())
}

func TestBufferFilledToCapacity(t *testing.T) {
	b, err := New(4, 8)
	require.NoError(t, err)
	capacity := b.storage.Cap()
	require.Equal(t, 12*sampleSize, capacity)

	require.NoError(t, b.Push(sequence(0, 12)))
	require.Equal(t, capacity, b.storage.Cap(), "a chunk that fits exactly must not grow the storage")
	require.Equal(t, 12, b.Residual())
	require.Equal(t, [][]int16{sequence(0, 4), sequence(4, 4), sequence(8, 4)}, drainAll(b))
	require.Zero(t, b.Residual())
}

func TestBufferConcatenationProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, frameLength := range []int{1, 7, 160, 480, 512} {
		b, err := New(frameLength, 3200)
		require.NoError(t, err)

		var pushed, drained []int16
		for iteration := 0; iteration < 200; iteration++ {
			chunk := make([]int16, rng.Intn(4000))
			for idx := range chunk {
				chunk[idx] = int16(rng.Intn(65536) - 32768)
			}
			pushed = append(pushed, chunk...)
			require.NoError(t, b.Push(chunk))

			for frame := range b.Drain() {
				require.Len(t, frame, frameLength)
				drained = append(drained, frame...)
			}
			assert.Less(t, b.Residual(), frameLength)
			assert.Equal(t, len(pushed)-len(drained), b.Residual())
		}

		require.True(t, slices.Equal(pushed[:len(drained)], drained), spew.Sdump(frameLength))
		require.True(t, slices.Equal(pushed[len(drained):], b.Flush()))
	}
}

func TestNewInvalidFrameLength(t *testing.T) {
	_, err := New(0, 3200)
	require.Error(t, err)
}
