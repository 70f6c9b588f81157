// Package monitor plays processed audio back to the user.
package monitor

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
)

// Sink consumes frames of mono signed 16-bit samples.
type Sink interface {
	io.Closer
	Write(ctx context.Context, frame []int16) error
}

// Discard is a Sink that throws everything away.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(context.Context, []int16) error { return nil }
func (discard) Close() error                         { return nil }

// DeviceSink plays frames through a PCM player.
type DeviceSink struct {
	locker   sync.Mutex
	pipeW    *io.PipeWriter
	counter  *datacounter.WriterCounter
	stream   audio.PlayStream
	buf      []byte
	closed   bool
	closeErr error
}

var _ Sink = (*DeviceSink)(nil)

// OpenDevice starts a playback stream. Write blocks until the player
// consumes the frame.
func OpenDevice(
	ctx context.Context,
	player audio.PlayerPCM,
	format audio.Format,
	bufferSize time.Duration,
) (_ret *DeviceSink, _err error) {
	logger.Debugf(ctx, "OpenDevice(ctx, %T, %#+v, %v)", player, format, bufferSize)
	defer func() { logger.Debugf(ctx, "/OpenDevice(ctx, %T, %#+v, %v): %v", player, format, bufferSize, _err) }()

	if format.PCMFormat != audio.PCMFormatS16LE || format.Channels != 1 {
		return nil, fmt.Errorf("only mono %s is supported, got %#+v", audio.PCMFormatS16LE, format)
	}

	pipeR, pipeW := io.Pipe()
	stream, err := player.PlayPCM(ctx, format.SampleRate, format.Channels, format.PCMFormat, bufferSize, pipeR)
	if err != nil {
		pipeW.Close()
		return nil, fmt.Errorf("unable to start the playback: %w", err)
	}
	return &DeviceSink{
		pipeW:   pipeW,
		counter: datacounter.NewWriterCounter(pipeW),
		stream:  stream,
	}, nil
}

func (s *DeviceSink) Write(ctx context.Context, frame []int16) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}

	s.buf = s.buf[:0]
	for _, v := range frame {
		s.buf = binary.LittleEndian.AppendUint16(s.buf, uint16(v))
	}
	if _, err := s.counter.Write(s.buf); err != nil {
		return fmt.Errorf("unable to write %d samples to the player: %w", len(frame), err)
	}
	return nil
}

// BytesPlayed returns the amount of bytes handed to the player.
func (s *DeviceSink) BytesPlayed() uint64 {
	return s.counter.Count()
}

// Close lets the player finish the buffered audio and stops it. A Write
// blocked on a player that stopped consuming is released with an error.
func (s *DeviceSink) Close() error {
	// the pipe is closed before taking the locker held by a blocked Write
	s.pipeW.Close()

	s.locker.Lock()
	defer s.locker.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true

	if err := s.stream.Drain(); err != nil {
		s.closeErr = fmt.Errorf("unable to drain the playback stream: %w", err)
	}
	if err := s.stream.Close(); err != nil && s.closeErr == nil {
		s.closeErr = fmt.Errorf("unable to close the playback stream: %w", err)
	}
	return s.closeErr
}
