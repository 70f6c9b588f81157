// Package framebuffer turns arbitrarily sized chunks of 16-bit PCM samples
// into a sequence of fixed-size processing frames.
package framebuffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/iamcalledrob/circular"
)

const sampleSize = 2

// Buffer accumulates pushed samples and yields complete frames in FIFO
// order. Whatever is shorter than one frame stays buffered until
// enough samples arrive.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	frameLength int
	storage     *circular.Buffer
	scratch     []byte
}

// New returns a Buffer yielding frames of frameLength samples. The
// storage is pre-sized for chunkHint samples plus a residual and grows
// when a bigger chunk arrives.
func New(frameLength int, chunkHint int) (*Buffer, error) {
	if frameLength <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d", frameLength)
	}
	if chunkHint < 0 {
		chunkHint = 0
	}
	capacity := (chunkHint + frameLength) * sampleSize
	return &Buffer{
		frameLength: frameLength,
		storage:     circular.NewBuffer(capacity),
		scratch:     make([]byte, frameLength*sampleSize),
	}, nil
}

// FrameLength returns the amount of samples in every yielded frame.
func (b *Buffer) FrameLength() int {
	return b.frameLength
}

// Residual returns the amount of buffered samples.
// Right after a complete Drain it is always less than FrameLength.
func (b *Buffer) Residual() int {
	return b.buffered()
}

func (b *Buffer) buffered() int {
	return b.storage.Len() / sampleSize
}

// Push appends the samples to the tail of the buffer.
func (b *Buffer) Push(chunk []int16) error {
	if len(chunk) == 0 {
		return nil
	}
	raw := make([]byte, len(chunk)*sampleSize)
	for idx, sample := range chunk {
		binary.LittleEndian.PutUint16(raw[idx*sampleSize:], uint16(sample))
	}

	required := (b.buffered() + len(chunk)) * sampleSize
	if required > b.storage.Cap() {
		if err := b.grow(required + b.frameLength*sampleSize); err != nil {
			return err
		}
	}

	n, err := b.storage.Write(raw)
	if err != nil {
		return fmt.Errorf("unable to write to the circular buffer: %w", err)
	}
	if n != len(raw) {
		return fmt.Errorf("wrote != requested: %d != %d", n, len(raw))
	}
	return nil
}

func (b *Buffer) grow(capacity int) error {
	old := make([]byte, b.buffered()*sampleSize)
	if err := b.readFull(old); err != nil {
		return err
	}
	b.storage = circular.NewBuffer(capacity)
	if len(old) == 0 {
		return nil
	}
	n, err := b.storage.Write(old)
	if err != nil {
		return fmt.Errorf("unable to move the buffered samples: %w", err)
	}
	if n != len(old) {
		return fmt.Errorf("moved != buffered: %d != %d", n, len(old))
	}
	return nil
}

func (b *Buffer) readFull(dst []byte) error {
	received := 0
	for received < len(dst) {
		n, err := b.storage.Read(dst[received:])
		received += n
		if err != nil {
			if errors.Is(err, io.EOF) && received == len(dst) {
				break
			}
			return fmt.Errorf("unable to read from the circular buffer (got %d out of %d bytes): %w", received, len(dst), err)
		}
		if n == 0 {
			return fmt.Errorf("the circular buffer returned no data (got %d out of %d bytes)", received, len(dst))
		}
	}
	return nil
}

// Drain yields every complete frame that is currently buffered. Each
// yielded slice is owned by the consumer. Frames not consumed because
// the iteration was stopped early stay buffered.
//
// Calling Drain again without a Push in between yields nothing.
func (b *Buffer) Drain() iter.Seq[[]int16] {
	return func(yield func([]int16) bool) {
		for b.buffered() >= b.frameLength {
			if err := b.readFull(b.scratch); err != nil {
				panic(fmt.Errorf("internal error: unable to read a buffered frame: %w", err))
			}

			frame := make([]int16, b.frameLength)
			for idx := range frame {
				frame[idx] = int16(binary.LittleEndian.Uint16(b.scratch[idx*sampleSize:]))
			}
			if !yield(frame) {
				return
			}
		}
	}
}

// Flush removes and returns the buffered residual (less than one frame
// if Drain was fully consumed before).
func (b *Buffer) Flush() []int16 {
	buffered := b.buffered()
	if buffered == 0 {
		return nil
	}
	raw := make([]byte, buffered*sampleSize)
	if err := b.readFull(raw); err != nil {
		panic(fmt.Errorf("internal error: unable to read the residual: %w", err))
	}
	result := make([]int16, buffered)
	for idx := range result {
		result[idx] = int16(binary.LittleEndian.Uint16(raw[idx*sampleSize:]))
	}
	return result
}
