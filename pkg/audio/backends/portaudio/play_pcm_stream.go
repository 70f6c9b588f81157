package portaudio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/noisecancel/pkg/audio/types"
)

// PlayPCMStream plays what is read from a reader. Drain returns after
// the reader is exhausted and the last block is handed to the device.
type PlayPCMStream struct {
	*pump
	reader io.Reader
}

var _ types.PlayStream = (*PlayPCMStream)(nil)

func newPlayPCMStream[T any](
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	bufferSize time.Duration,
) (*PlayPCMStream, error) {
	frames := int(bufferSize.Seconds() * float64(sampleRate))
	p, err := openPump[T](ctx, 0, int(channels), float64(sampleRate), frames)
	if err != nil {
		return nil, err
	}
	return &PlayPCMStream{pump: p}, nil
}

func (s *PlayPCMStream) init(
	ctx context.Context,
	reader io.Reader,
) error {
	s.reader = reader
	return s.start(ctx, s.fill, s.play)
}

func (s *PlayPCMStream) fill(ctx context.Context) error {
	logger.Tracef(ctx, "ReadFull")
	n, err := io.ReadFull(s.reader, s.in)
	logger.Tracef(ctx, "/ReadFull: %v %v", n, err)
	if err != nil {
		return fmt.Errorf("unable to read a block of %d bytes (got %d): %w", len(s.in), n, err)
	}
	return nil
}

func (s *PlayPCMStream) play(ctx context.Context) error {
	logger.Tracef(ctx, "Write")
	err := s.stream.Write()
	logger.Tracef(ctx, "/Write: %v", err)
	if err != nil {
		return fmt.Errorf("unable to write to the device: %w", err)
	}
	return nil
}
