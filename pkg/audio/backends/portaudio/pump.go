package portaudio

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/observability"
)

// pump moves blocks of audio through a blocking portaudio stream. The
// producer fills "in" while the consumer handles the previous block in
// "out", so the device is served while the Go side is busy.
type pump struct {
	stream *portaudio.Stream
	device []byte
	in     []byte
	out    []byte

	cancelFn  context.CancelFunc
	waitGroup sync.WaitGroup
	filledCh  chan struct{}
	takenCh   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// openPump opens the default device for input (inChannels > 0) or for
// output (outChannels > 0) with a buffer of the given amount of frames.
func openPump[T any](
	ctx context.Context,
	inChannels, outChannels int,
	sampleRate float64,
	frames int,
) (*pump, error) {
	var sample T
	buf := make([]T, frames*max(inChannels, outChannels))
	logger.Debugf(ctx, "openPump: %T, in:%d, out:%d, %v Hz, %d frames", sample, inChannels, outChannels, sampleRate, frames)
	stream, err := portaudio.OpenDefaultStream(inChannels, outChannels, sampleRate, frames, buf)
	if err != nil {
		return nil, err
	}

	device := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(buf))), len(buf)*int(unsafe.Sizeof(sample)))
	p := &pump{
		stream:   stream,
		device:   device,
		filledCh: make(chan struct{}),
		takenCh:  make(chan struct{}),
	}
	spare := make([]byte, len(device))
	if inChannels > 0 {
		p.in, p.out = device, spare
	} else {
		p.in, p.out = spare, device
	}
	return p, nil
}

// start runs produce (filling p.in) and consume (handling p.out) until
// either fails or ctx is cancelled; then the stream is closed.
func (p *pump) start(
	ctx context.Context,
	produce func(context.Context) error,
	consume func(context.Context) error,
) error {
	ctx, p.cancelFn = context.WithCancel(ctx)
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("unable to start the stream: %w", err)
	}

	p.waitGroup.Add(3)
	observability.Go(ctx, func() {
		defer p.waitGroup.Done()
		<-ctx.Done()
		p.Close()
	})
	observability.Go(ctx, func() {
		defer p.waitGroup.Done()
		defer p.cancelFn()
		p.produceLoop(ctx, produce)
	})
	observability.Go(ctx, func() {
		defer p.waitGroup.Done()
		defer p.cancelFn()
		p.consumeLoop(ctx, consume)
	})
	return nil
}

func (p *pump) produceLoop(
	ctx context.Context,
	produce func(context.Context) error,
) (_ret error) {
	logger.Debugf(ctx, "produceLoop")
	defer func() { logger.Debugf(ctx, "/produceLoop: %v", _ret) }()
	defer close(p.filledCh)

	for {
		if err := produce(ctx); err != nil {
			return err
		}
		select {
		case p.filledCh <- struct{}{}:
		case <-p.takenCh:
			// the consumer is gone
			return nil
		}
		if _, ok := <-p.takenCh; !ok {
			return nil
		}
	}
}

func (p *pump) consumeLoop(
	ctx context.Context,
	consume func(context.Context) error,
) (_ret error) {
	logger.Debugf(ctx, "consumeLoop")
	defer func() { logger.Debugf(ctx, "/consumeLoop: %v", _ret) }()
	defer close(p.takenCh)

	for {
		if _, ok := <-p.filledCh; !ok {
			return nil
		}
		copy(p.out, p.in)
		p.takenCh <- struct{}{}

		if err := consume(ctx); err != nil {
			return err
		}
	}
}

func (p *pump) Close() error {
	p.closeOnce.Do(func() {
		if p.cancelFn != nil {
			p.cancelFn()
		}
		if err := p.stream.Abort(); err != nil {
			p.closeErr = fmt.Errorf("unable to abort the stream: %w", err)
			return
		}
		p.closeErr = p.stream.Close()
	})
	return p.closeErr
}

// Drain waits until both loops are finished.
func (p *pump) Drain() error {
	p.waitGroup.Wait()
	return nil
}
