package portaudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/noisecancel/pkg/audio/types"
)

const (
	RecordBufferSize = time.Millisecond * 100
)

// RecordPCMStream writes what the default input device captures into a
// writer, one buffer at a time.
type RecordPCMStream struct {
	*pump
	writer    io.Writer
	overflows atomic.Uint64
}

var (
	_ types.RecordStream    = (*RecordPCMStream)(nil)
	_ types.OverflowCounter = (*RecordPCMStream)(nil)
)

func newRecordPCMStream[T any](
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
) (*RecordPCMStream, error) {
	frames := int(RecordBufferSize.Seconds() * float64(sampleRate))
	p, err := openPump[T](ctx, int(channels), 0, float64(sampleRate), frames)
	if err != nil {
		return nil, err
	}
	return &RecordPCMStream{pump: p}, nil
}

func (s *RecordPCMStream) init(
	ctx context.Context,
	writer io.Writer,
) error {
	s.writer = writer
	return s.start(ctx, s.capture, s.deliver)
}

// Overflows returns how many times the device reported that it had to
// drop input because we did not read it in time.
func (s *RecordPCMStream) Overflows() uint64 {
	return s.overflows.Load()
}

func (s *RecordPCMStream) capture(ctx context.Context) error {
	logger.Tracef(ctx, "Read")
	err := s.stream.Read()
	logger.Tracef(ctx, "/Read: %v", err)
	switch {
	case err == nil:
	case errors.Is(err, portaudio.InputOverflowed):
		s.overflows.Add(1)
		logger.Warnf(ctx, "input overflowed, some samples were lost")
	default:
		return fmt.Errorf("unable to read from the device: %w", err)
	}
	return nil
}

func (s *RecordPCMStream) deliver(ctx context.Context) error {
	logger.Tracef(ctx, "Write")
	n, err := s.writer.Write(s.out)
	logger.Tracef(ctx, "/Write: %d %v", n, err)
	if err != nil {
		return fmt.Errorf("unable to write: %w", err)
	}
	if n != len(s.out) {
		return fmt.Errorf("invalid write length: %d != %d", n, len(s.out))
	}
	return nil
}
