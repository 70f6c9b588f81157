// Package resampler converts an interleaved PCM stream into another
// sample format, channel layout and sample rate.
package resampler

import (
	"fmt"
	"io"
	"sync"

	"github.com/xaionaro-go/noisecancel/pkg/audio"
)

const readChunkSize = 4096

// Resampler is an io.Reader producing the stream of the underlying
// reader in the output format. Sample rates are converted with linear
// interpolation; multi-channel input is mixed down by averaging and
// mono input is duplicated to every output channel.
type Resampler struct {
	locker    sync.Mutex
	inReader  io.Reader
	inFormat  audio.Format
	outFormat audio.Format

	// step is the distance (in input frames) between two output frames.
	step float64
	// phase is the position of the next output frame after window[0].
	phase float64

	window [][]float64
	raw    []byte
	buf    []byte
	err    error
}

var _ io.Reader = (*Resampler)(nil)

func NewResampler(
	inFormat audio.Format,
	inReader io.Reader,
	outFormat audio.Format,
) (*Resampler, error) {
	if err := validate(inFormat, outFormat); err != nil {
		return nil, fmt.Errorf("unable to initialize a resampler from %#+v to %#+v: %w", inFormat, outFormat, err)
	}
	return &Resampler{
		inReader:  inReader,
		inFormat:  inFormat,
		outFormat: outFormat,
		step:      float64(inFormat.SampleRate) / float64(outFormat.SampleRate),
		buf:       make([]byte, readChunkSize),
	}, nil
}

func validate(in, out audio.Format) error {
	if err := checkFormat(in.PCMFormat); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := checkFormat(out.PCMFormat); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if in.SampleRate == 0 || out.SampleRate == 0 {
		return fmt.Errorf("sample rate is not set")
	}
	if in.Channels == 0 || out.Channels == 0 {
		return fmt.Errorf("amount of channels is not set")
	}
	if in.Channels != out.Channels && in.Channels != 1 && out.Channels != 1 {
		return fmt.Errorf("do not know how to convert %d channels to %d", in.Channels, out.Channels)
	}
	return nil
}

func (r *Resampler) Read(p []byte) (int, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	outFrameSize := int(r.outFormat.FrameSize())
	maxOut := len(p) / outFrameSize
	if maxOut == 0 {
		return 0, fmt.Errorf("the provided output buffer is too short: %d < %d", len(p), outFrameSize)
	}

	produced := 0
	for produced < maxOut {
		if !r.advance(produced == 0) {
			break
		}
		r.emit(p[produced*outFrameSize:])
		produced++
		r.phase += r.step
	}
	if produced == 0 {
		return 0, r.err
	}
	return produced * outFrameSize, nil
}

// advance prepares the window for the next output frame and reports
// if one could be produced.
func (r *Resampler) advance(mayBlock bool) bool {
	for r.phase >= 1 {
		if !r.fill(2, mayBlock) {
			return false
		}
		r.window = r.window[1:]
		r.phase--
	}
	if !r.fill(1, mayBlock) {
		return false
	}
	if r.phase > 0 && !r.fill(2, mayBlock) {
		// At the end of the stream the last frame is held.
		return r.err == io.EOF
	}
	return true
}

// fill makes sure the window has at least 'count' frames.
func (r *Resampler) fill(count int, mayBlock bool) bool {
	inFrameSize := int(r.inFormat.FrameSize())
	for len(r.window) < count {
		if len(r.raw) >= inFrameSize {
			r.window = append(r.window, r.decodeFrame(r.raw[:inFrameSize]))
			r.raw = r.raw[inFrameSize:]
			continue
		}
		if r.err != nil || !mayBlock {
			return false
		}
		n, err := r.inReader.Read(r.buf)
		r.raw = append(r.raw, r.buf[:n]...)
		if err != nil {
			r.err = err
		}
	}
	return true
}

func (r *Resampler) decodeFrame(b []byte) []float64 {
	sampleSize := int(r.inFormat.PCMFormat.Size())
	inChannels := int(r.inFormat.Channels)
	outChannels := int(r.outFormat.Channels)
	frame := make([]float64, outChannels)
	switch {
	case inChannels == outChannels:
		for ch := range frame {
			frame[ch] = decodeSample(r.inFormat.PCMFormat, b[ch*sampleSize:])
		}
	case inChannels == 1:
		v := decodeSample(r.inFormat.PCMFormat, b)
		for ch := range frame {
			frame[ch] = v
		}
	default:
		var sum float64
		for ch := 0; ch < inChannels; ch++ {
			sum += decodeSample(r.inFormat.PCMFormat, b[ch*sampleSize:])
		}
		frame[0] = sum / float64(inChannels)
	}
	return frame
}

func (r *Resampler) emit(dst []byte) {
	sampleSize := int(r.outFormat.PCMFormat.Size())
	cur := r.window[0]
	next := cur
	if len(r.window) > 1 {
		next = r.window[1]
	}
	for ch := range cur {
		v := cur[ch] + (next[ch]-cur[ch])*r.phase
		encodeSample(r.outFormat.PCMFormat, dst[ch*sampleSize:], v)
	}
}
