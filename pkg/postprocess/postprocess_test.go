package postprocess

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	p, err := New(DefaultGain)
	require.NoError(t, err)

	t.Run("gain_and_scale", func(t *testing.T) {
		out := p.Apply([]float32{0.1, -0.1, 0.5})
		require.Equal(t, []int16{4915, -4915, 24575}, out)
	})

	t.Run("saturation", func(t *testing.T) {
		out := p.Apply([]float32{1, -1, 0.9, -0.9, 1000, -1000})
		require.Equal(t, []int16{32767, -32768, 32767, -32768, 32767, -32768}, out)
	})

	t.Run("nan", func(t *testing.T) {
		out := p.Apply([]float32{float32(math.NaN())})
		require.Equal(t, []int16{0}, out)
	})
}

func TestApplyZeroIsZero(t *testing.T) {
	for _, gain := range []float64{0, 0.5, 1, 1.5, 10, 1e6} {
		p, err := New(gain)
		require.NoError(t, err)
		out := p.Apply(make([]float32, 480))
		require.Equal(t, make([]int16, 480), out, "gain %v", gain)
	}
}

func TestApplyRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p, err := New(3)
	require.NoError(t, err)

	frame := make([]float32, 4096)
	for idx := range frame {
		frame[idx] = float32(rng.NormFloat64() * 2)
	}
	for _, sample := range p.Apply(frame) {
		require.GreaterOrEqual(t, int(sample), math.MinInt16)
		require.LessOrEqual(t, int(sample), math.MaxInt16)
	}
}

func TestToFloatRoundTrip(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)

	samples := []int16{0, 1, -1, 12345, -12345, math.MaxInt16, -math.MaxInt16}
	require.Equal(t, samples, p.Apply(ToFloat(samples)))
}

func TestNewInvalidGain(t *testing.T) {
	for _, gain := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := New(gain)
		require.Error(t, err)
	}
}
