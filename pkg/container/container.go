// Package container persists sessions as WAV files and verifies them.
package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/facebookincubator/go-belt/tool/logger"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// ErrInvalidFormat is returned by Verify if the file is not a readable
// PCM WAV file.
type ErrInvalidFormat struct {
	Path   string
	Reason string
	Err    error
}

func (e *ErrInvalidFormat) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("'%s' is not a valid WAV file: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("'%s' is not a valid WAV file: %s", e.Path, e.Reason)
}

func (e *ErrInvalidFormat) Unwrap() error {
	return e.Err
}

// Info describes a WAV file.
type Info struct {
	Channels    int
	SampleWidth int // bytes
	FrameRate   int // Hz
	FrameCount  int
}

func (i Info) String() string {
	return fmt.Sprintf(" - Channels: %d\n - Sample Width: %d bytes\n - Frame Rate: %d Hz\n - Frames: %d\n",
		i.Channels, i.SampleWidth, i.FrameRate, i.FrameCount)
}

// Write stores interleaved samples as a PCM WAV file. The file is
// written next to the destination and renamed when complete.
func Write(
	ctx context.Context,
	path string,
	sampleRate int,
	channels int,
	bitDepth int,
	samples []int16,
) (_err error) {
	logger.Debugf(ctx, "Write(ctx, '%s', %d, %d, %d, [%d])", path, sampleRate, channels, bitDepth, len(samples))
	defer func() { logger.Debugf(ctx, "/Write(ctx, '%s', ...): %v", path, _err) }()

	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid layout: sample rate %d, channels %d", sampleRate, channels)
	}
	if len(samples)%channels != 0 {
		return fmt.Errorf("the amount of samples %d is not a multiple of the amount of channels %d", len(samples), channels)
	}
	var shift uint
	switch bitDepth {
	case 16:
	case 24:
		shift = 8
	case 32:
		shift = 16
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	data := make([]int, len(samples))
	for idx, v := range samples {
		data[idx] = int(v) << shift
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create a temporary file for '%s': %w", path, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	enc := wav.NewEncoder(tmp, sampleRate, bitDepth, channels, wavFormatPCM)
	err = enc.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	if err != nil {
		return fmt.Errorf("unable to encode the samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("unable to finalize the WAV header: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to close '%s': %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("unable to move '%s' to '%s': %w", tmp.Name(), path, err)
	}
	return nil
}

// Verify reopens a WAV file and reports its layout.
func Verify(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Info{}, &ErrInvalidFormat{Path: path, Reason: "invalid RIFF/WAVE header", Err: d.Err()}
	}
	if d.WavAudioFormat != wavFormatPCM {
		return Info{}, &ErrInvalidFormat{Path: path, Reason: fmt.Sprintf("unsupported audio format %d", d.WavAudioFormat)}
	}
	if d.NumChans == 0 || d.BitDepth == 0 || d.BitDepth%8 != 0 || d.SampleRate == 0 {
		return Info{}, &ErrInvalidFormat{
			Path:   path,
			Reason: fmt.Sprintf("invalid layout: channels %d, bit depth %d, sample rate %d", d.NumChans, d.BitDepth, d.SampleRate),
		}
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Info{}, &ErrInvalidFormat{Path: path, Reason: "unable to read the PCM data", Err: err}
	}

	info := Info{
		Channels:    int(d.NumChans),
		SampleWidth: int(d.BitDepth) / 8,
		FrameRate:   int(d.SampleRate),
		FrameCount:  len(buf.Data) / int(d.NumChans),
	}
	declared := int(d.PCMLen()) / (info.Channels * info.SampleWidth)
	if declared != info.FrameCount {
		return Info{}, &ErrInvalidFormat{
			Path:   path,
			Reason: fmt.Sprintf("the header declares %d frames, but %d are present", declared, info.FrameCount),
		}
	}
	return info, nil
}

// Read returns the samples of a 16-bit PCM WAV file.
func Read(path string) (Info, []int16, error) {
	info, err := Verify(path)
	if err != nil {
		return Info{}, nil, err
	}
	if info.SampleWidth != 2 {
		return Info{}, nil, fmt.Errorf("only 16-bit samples are supported, got %d bytes per sample", info.SampleWidth)
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}, nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		return Info{}, nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	samples := make([]int16, len(buf.Data))
	for idx, v := range buf.Data {
		samples[idx] = int16(v)
	}
	return info, samples, nil
}
