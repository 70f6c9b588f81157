package audio

import (
	"context"
	"io"
	"time"

	"github.com/xaionaro-go/observability"
)

// PlayerPCMDummy consumes the PCM stream and discards it.
type PlayerPCMDummy struct{}

var _ PlayerPCM = PlayerPCMDummy{}

func (PlayerPCMDummy) Close() error {
	return nil
}

func (PlayerPCMDummy) Ping(context.Context) error {
	return nil
}

func (PlayerPCMDummy) PlayPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (PlayStream, error) {
	done := make(chan struct{})
	observability.Go(ctx, func() {
		defer close(done)
		io.Copy(io.Discard, reader)
	})
	return &StreamDummy{done: done}, nil
}

type StreamDummy struct {
	done chan struct{}
}

var _ PlayStream = (*StreamDummy)(nil)

func (s *StreamDummy) Drain() error {
	if s.done != nil {
		<-s.done
	}
	return nil
}

func (*StreamDummy) Close() error {
	return nil
}
