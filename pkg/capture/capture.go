// Package capture provides sources of mono signed 16-bit audio chunks:
// live input devices and audio files.
package capture

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/xaionaro-go/noisecancel/pkg/audio"
)

// ErrTimeout is returned by Source.Read if no audio became available
// within the given timeout. The source stays usable.
var ErrTimeout = errors.New("timed out waiting for audio")

// Chunk is a piece of captured audio. It is never modified after being
// returned by Read.
type Chunk struct {
	Samples []int16

	// Dropped is the amount of samples lost right before this chunk
	// because the consumer did not keep up.
	Dropped uint64

	// DeviceOverflows is the amount of overflows reported by the device
	// since the previous chunk.
	DeviceOverflows uint64

	CapturedAt time.Time
}

// Overflowed reports if any input was lost before this chunk.
func (c Chunk) Overflowed() bool {
	return c.Dropped > 0 || c.DeviceOverflows > 0
}

// Source is a stream of chunks. Read is not safe for concurrent use.
type Source interface {
	io.Closer

	Format() audio.Format

	// Read returns up to maxFrames samples. It waits at most timeout
	// (forever if it is not positive) and returns ErrTimeout if nothing
	// arrived. io.EOF is returned once the source is exhausted or closed.
	Read(ctx context.Context, maxFrames int, timeout time.Duration) (Chunk, error)
}

// ChunkFrames returns the amount of samples in a chunk of the given
// duration.
func ChunkFrames(format audio.Format, duration time.Duration) int {
	return format.Encoding().SamplesForDuration(duration)
}
