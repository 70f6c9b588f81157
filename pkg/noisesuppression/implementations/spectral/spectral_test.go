package spectral

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testSampleRate  = 16000
	testFrameLength = 480
)

func energy(samples []float32) float64 {
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return sum / float64(len(samples))
}

func noiseFrame(rng *rand.Rand, sigma float64) []float32 {
	frame := make([]float32, testFrameLength)
	for idx := range frame {
		frame[idx] = float32(rng.NormFloat64() * sigma)
	}
	return frame
}

func newTestEngine(t *testing.T) *Spectral {
	s, err := New(testSampleRate, testFrameLength, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func process(t *testing.T, s *Spectral, input []float32) ([]float32, float64) {
	output := make([]float32, len(input))
	vadProb, err := s.SuppressNoise(context.Background(), input, output)
	require.NoError(t, err)
	return output, vadProb
}

func TestSpectralSilence(t *testing.T) {
	s := newTestEngine(t)
	for i := 0; i < 5; i++ {
		out, vadProb := process(t, s, make([]float32, testFrameLength))
		require.Equal(t, make([]float32, testFrameLength), out)
		require.Zero(t, vadProb)
	}
}

func TestSpectralReducesStationaryNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := newTestEngine(t)

	for i := 0; i < 20; i++ {
		process(t, s, noiseFrame(rng, 0.05))
	}

	var inEnergy, outEnergy float64
	for i := 0; i < 50; i++ {
		in := noiseFrame(rng, 0.05)
		out, _ := process(t, s, in)
		inEnergy += energy(in)
		outEnergy += energy(out)
	}
	require.Less(t, outEnergy, inEnergy*0.5)
}

func TestSpectralKeepsVoiceAboveNoiseFloor(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	s := newTestEngine(t)

	for i := 0; i < 30; i++ {
		process(t, s, noiseFrame(rng, 0.01))
	}

	// 1000Hz is exactly the 30th bin of a 480-samples frame at 16kHz.
	tone := func(frame []float32) {
		for idx := range frame {
			frame[idx] += float32(0.3 * math.Sin(2*math.Pi*1000*float64(idx)/testSampleRate))
		}
	}

	var (
		out     []float32
		vadProb float64
	)
	for i := 0; i < 6; i++ {
		in := noiseFrame(rng, 0.01)
		tone(in)
		out, vadProb = process(t, s, in)
	}

	var projection float64
	for idx, v := range out {
		projection += float64(v) * math.Sin(2*math.Pi*1000*float64(idx)/testSampleRate)
	}
	amplitude := 2 * projection / testFrameLength
	require.InDelta(t, 0.3, amplitude, 0.05)
	require.Greater(t, vadProb, 0.5)
}

func TestSpectralIsStateful(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := noiseFrame(rng, 0.1)
	b := noiseFrame(rng, 0.1)

	s1 := newTestEngine(t)
	process(t, s1, a)
	outB1, _ := process(t, s1, b)

	s2 := newTestEngine(t)
	outB2, _ := process(t, s2, b)

	require.NotEqual(t, outB1, outB2)
}

func TestSpectralValidation(t *testing.T) {
	s := newTestEngine(t)

	_, err := s.SuppressNoise(context.Background(), make([]float32, 10), make([]float32, 10))
	require.Error(t, err)
	_, err = s.SuppressNoise(context.Background(), make([]float32, testFrameLength), make([]float32, 10))
	require.Error(t, err)

	opts := DefaultOptions()
	opts.NoiseSmoothing = 1
	_, err = New(testSampleRate, testFrameLength, opts)
	require.Error(t, err)

	_, err = New(testSampleRate, 1, DefaultOptions())
	require.Error(t, err)
}

func TestSpectralCloseTwice(t *testing.T) {
	s, err := New(testSampleRate, testFrameLength, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.Error(t, s.Close())

	_, err = s.SuppressNoise(context.Background(), make([]float32, testFrameLength), make([]float32, testFrameLength))
	require.Error(t, err)
}
