package capture

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

// DefaultQueueSize is the amount of chunks a DeviceSource keeps while
// the consumer is busy.
const DefaultQueueSize = 4

// DeviceSource captures audio from a recorder backend.
type DeviceSource struct {
	format      audio.Format
	chunkFrames int
	queue       *chunkQueue
	writer      *chunkWriter
	counter     *datacounter.WriterCounter
	stream      audio.RecordStream

	leftover      Chunk
	lastOverflows uint64
	closeOnce     sync.Once
	closeErr      error
}

var _ Source = (*DeviceSource)(nil)

// OpenDevice starts recording. Only mono S16LE is supported.
func OpenDevice(
	ctx context.Context,
	recorder audio.RecorderPCM,
	format audio.Format,
	chunkFrames int,
) (_ret *DeviceSource, _err error) {
	logger.Debugf(ctx, "OpenDevice(ctx, %T, %#+v, %d)", recorder, format, chunkFrames)
	defer func() { logger.Debugf(ctx, "/OpenDevice(ctx, %T, %#+v, %d): %v", recorder, format, chunkFrames, _err) }()

	if err := checkFormat(format); err != nil {
		return nil, err
	}
	if chunkFrames <= 0 {
		return nil, fmt.Errorf("chunk size should be positive, got %d", chunkFrames)
	}

	queue := newChunkQueue(DefaultQueueSize)
	writer := &chunkWriter{
		chunkBytes: chunkFrames * int(format.FrameSize()),
		queue:      queue,
	}
	counter := datacounter.NewWriterCounter(writer)
	stream, err := recorder.RecordPCM(ctx, format.SampleRate, format.Channels, format.PCMFormat, counter)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("unable to start recording: %w", err)
	}

	return &DeviceSource{
		format:      format,
		chunkFrames: chunkFrames,
		queue:       queue,
		writer:      writer,
		counter:     counter,
		stream:      stream,
	}, nil
}

func checkFormat(format audio.Format) error {
	if format.PCMFormat != audio.PCMFormatS16LE {
		return fmt.Errorf("only %s is supported, got %s", audio.PCMFormatS16LE, format.PCMFormat)
	}
	if format.Channels != 1 {
		return fmt.Errorf("only mono is supported, got %d channels", format.Channels)
	}
	if format.SampleRate == 0 {
		return fmt.Errorf("the sample rate is not set")
	}
	return nil
}

func (s *DeviceSource) Format() audio.Format {
	return s.format
}

func (s *DeviceSource) Read(
	ctx context.Context,
	maxFrames int,
	timeout time.Duration,
) (Chunk, error) {
	if maxFrames <= 0 {
		return Chunk{}, fmt.Errorf("maxFrames should be positive, got %d", maxFrames)
	}
	if len(s.leftover.Samples) > 0 {
		return s.split(s.leftover, maxFrames), nil
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		chunk, ok, closed := s.queue.Pop()
		if ok {
			chunk.DeviceOverflows = s.deviceOverflows()
			return s.split(chunk, maxFrames), nil
		}
		if closed {
			return Chunk{}, io.EOF
		}
		select {
		case <-ctx.Done():
			return Chunk{}, ctx.Err()
		case <-timeoutCh:
			return Chunk{}, ErrTimeout
		case <-s.queue.notifyCh:
		case <-s.queue.closedCh:
		}
	}
}

func (s *DeviceSource) split(chunk Chunk, maxFrames int) Chunk {
	s.leftover = Chunk{}
	if len(chunk.Samples) <= maxFrames {
		return chunk
	}
	s.leftover = Chunk{
		Samples:    chunk.Samples[maxFrames:],
		CapturedAt: chunk.CapturedAt,
	}
	chunk.Samples = chunk.Samples[:maxFrames]
	return chunk
}

func (s *DeviceSource) deviceOverflows() uint64 {
	counter, ok := s.stream.(audio.OverflowCounter)
	if !ok {
		return 0
	}
	cur := counter.Overflows()
	delta := cur - s.lastOverflows
	s.lastOverflows = cur
	return delta
}

// BytesCaptured returns the amount of bytes received from the device.
func (s *DeviceSource) BytesCaptured() uint64 {
	return s.counter.Count()
}

// DroppedSamples returns the amount of samples lost because the
// consumer did not keep up.
func (s *DeviceSource) DroppedSamples() uint64 {
	return s.queue.DroppedTotal()
}

func (s *DeviceSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.stream.Close()
		s.writer.Close()
		s.queue.Close()
	})
	return s.closeErr
}

// chunkWriter slices the byte stream written by a recorder into chunks.
type chunkWriter struct {
	locker     sync.Mutex
	chunkBytes int
	pending    []byte
	queue      *chunkQueue
	closed     bool
}

var _ io.Writer = (*chunkWriter)(nil)

func (w *chunkWriter) Write(b []byte) (int, error) {
	w.locker.Lock()
	defer w.locker.Unlock()
	if w.closed {
		return 0, io.ErrClosedPipe
	}

	w.pending = append(w.pending, b...)
	consumed := 0
	for len(w.pending)-consumed >= w.chunkBytes {
		w.queue.Push(Chunk{
			Samples:    decodeS16LE(w.pending[consumed : consumed+w.chunkBytes]),
			CapturedAt: time.Now(),
		})
		consumed += w.chunkBytes
	}
	w.pending = append(w.pending[:0], w.pending[consumed:]...)
	return len(b), nil
}

func (w *chunkWriter) Close() {
	w.locker.Lock()
	defer w.locker.Unlock()
	w.closed = true
	w.pending = nil
}

func decodeS16LE(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for idx := range samples {
		samples[idx] = int16(binary.LittleEndian.Uint16(b[idx*2:]))
	}
	return samples
}
