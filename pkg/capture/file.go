package capture

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-audio/wav"
	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
	"github.com/xaionaro-go/noisecancel/pkg/audio/resampler"
)

// FileSource reads a WAV or Ogg Vorbis file converted to the requested
// format.
type FileSource struct {
	format      audio.Format
	chunkFrames int
	file        *os.File
	reader      io.Reader
	buf         []byte
	eof         bool

	// Pace makes Read return chunks no faster than in real time.
	Pace      bool
	startedAt time.Time
	position  uint64
}

var _ Source = (*FileSource)(nil)

// OpenFile opens an audio file; the container is detected by its
// magic bytes.
func OpenFile(
	ctx context.Context,
	path string,
	format audio.Format,
	chunkFrames int,
) (_ret *FileSource, _err error) {
	logger.Debugf(ctx, "OpenFile(ctx, '%s', %#+v, %d)", path, format, chunkFrames)
	defer func() { logger.Debugf(ctx, "/OpenFile(ctx, '%s', %#+v, %d): %v", path, format, chunkFrames, _err) }()

	if err := checkFormat(format); err != nil {
		return nil, err
	}
	if chunkFrames <= 0 {
		return nil, fmt.Errorf("chunk size should be positive, got %d", chunkFrames)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to read the header of '%s': %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to rewind '%s': %w", path, err)
	}

	var (
		inFormat audio.Format
		pcm      io.Reader
	)
	switch string(magic) {
	case "RIFF":
		inFormat, pcm, err = openWAV(f)
	case "OggS":
		inFormat, pcm, err = openVorbis(f)
	default:
		err = fmt.Errorf("unknown container, magic bytes: %q", magic)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to decode '%s': %w", path, err)
	}
	logger.Debugf(ctx, "'%s' is %#+v", path, inFormat)

	reader, err := resampler.NewResampler(inFormat, pcm, format)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to convert '%s' to %#+v: %w", path, format, err)
	}

	return &FileSource{
		format:      format,
		chunkFrames: chunkFrames,
		file:        f,
		reader:      reader,
		buf:         make([]byte, chunkFrames*int(format.FrameSize())),
	}, nil
}

func openWAV(f io.ReadSeeker) (audio.Format, io.Reader, error) {
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return audio.Format{}, nil, fmt.Errorf("not a valid WAV file")
	}
	if d.WavAudioFormat != 1 {
		return audio.Format{}, nil, fmt.Errorf("only integer PCM WAV files are supported, got audio format %d", d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return audio.Format{}, nil, fmt.Errorf("unable to read PCM data: %w", err)
	}

	format := audio.Format{
		SampleRate: audio.SampleRate(d.SampleRate),
		Channels:   audio.Channel(d.NumChans),
	}
	var out bytes.Buffer
	switch d.BitDepth {
	case 8:
		format.PCMFormat = audio.PCMFormatU8
		for _, v := range buf.Data {
			out.WriteByte(byte(v))
		}
	case 16:
		format.PCMFormat = audio.PCMFormatS16LE
		for _, v := range buf.Data {
			binary.Write(&out, binary.LittleEndian, int16(v))
		}
	case 24, 32:
		format.PCMFormat = audio.PCMFormatS32LE
		shift := 32 - uint(d.BitDepth)
		for _, v := range buf.Data {
			binary.Write(&out, binary.LittleEndian, int32(v)<<shift)
		}
	default:
		return audio.Format{}, nil, fmt.Errorf("unsupported bit depth %d", d.BitDepth)
	}
	return format, &out, nil
}

func openVorbis(f io.Reader) (audio.Format, io.Reader, error) {
	r, err := oggvorbis.NewReader(bufio.NewReader(f))
	if err != nil {
		return audio.Format{}, nil, fmt.Errorf("unable to initialize a vorbis reader: %w", err)
	}
	return audio.Format{
		SampleRate: audio.SampleRate(r.SampleRate()),
		Channels:   audio.Channel(r.Channels()),
		PCMFormat:  audio.PCMFormatFloat32LE,
	}, newFloat32Reader(r), nil
}

type float32Source interface {
	Read([]float32) (int, error)
}

// float32Reader exposes a reader of float32 samples as a F32LE byte
// stream.
type float32Reader struct {
	backend float32Source
	samples []float32
	pending []byte
}

func newFloat32Reader(backend float32Source) *float32Reader {
	return &float32Reader{
		backend: backend,
	}
}

func (r *float32Reader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		want := (len(p) + 3) / 4
		if cap(r.samples) < want {
			r.samples = make([]float32, want)
		}
		n, err := r.backend.Read(r.samples[:want])
		for _, v := range r.samples[:n] {
			r.pending = binary.LittleEndian.AppendUint32(r.pending, math.Float32bits(v))
		}
		if n == 0 {
			return 0, err
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (s *FileSource) Format() audio.Format {
	return s.format
}

// Read returns the next chunk. The timeout is ignored: reading a file
// does not block, pacing aside.
func (s *FileSource) Read(
	ctx context.Context,
	maxFrames int,
	_ time.Duration,
) (Chunk, error) {
	if maxFrames <= 0 {
		return Chunk{}, fmt.Errorf("maxFrames should be positive, got %d", maxFrames)
	}
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if s.eof {
		return Chunk{}, io.EOF
	}

	frames := min(maxFrames, s.chunkFrames)
	buf := s.buf[:frames*int(s.format.FrameSize())]
	n, err := io.ReadFull(s.reader, buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		s.eof = true
		if n < 2 {
			return Chunk{}, io.EOF
		}
	default:
		return Chunk{}, fmt.Errorf("unable to read the file: %w", err)
	}

	chunk := Chunk{
		Samples:    decodeS16LE(buf[:n]),
		CapturedAt: time.Now(),
	}
	if s.Pace {
		if err := s.wait(ctx, uint64(len(chunk.Samples))); err != nil {
			return Chunk{}, err
		}
	}
	return chunk, nil
}

func (s *FileSource) wait(ctx context.Context, samples uint64) error {
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}
	s.position += samples
	due := s.startedAt.Add(time.Duration(s.position) * time.Second / time.Duration(s.format.SampleRate))
	delay := time.Until(due)
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *FileSource) Close() error {
	return s.file.Close()
}
