package pipeline

import (
	"fmt"
	"time"
)

// ErrCaptureOverflow is reported when input was lost before a chunk.
// It does not stop the pipeline.
type ErrCaptureOverflow struct {
	Chunk           uint64
	Dropped         uint64
	DeviceOverflows uint64
}

func (e *ErrCaptureOverflow) Error() string {
	return fmt.Sprintf("capture overflow before chunk #%d: %d samples dropped, %d device overflows", e.Chunk, e.Dropped, e.DeviceOverflows)
}

// ErrLatencyBudgetExceeded is reported when processing a chunk took
// longer than the budget. It does not stop the pipeline.
type ErrLatencyBudgetExceeded struct {
	Chunk   uint64
	Elapsed time.Duration
	Budget  time.Duration
}

func (e *ErrLatencyBudgetExceeded) Error() string {
	return fmt.Sprintf("processing of chunk #%d took %v, which exceeds the budget of %v", e.Chunk, e.Elapsed, e.Budget)
}

// ErrFrameProcessing is reported when the denoiser failed on a single
// frame while the denoiser session stays usable. The frame is recorded
// as silence and is not sent to the monitor.
type ErrFrameProcessing struct {
	Chunk uint64
	Frame int
	Err   error
}

func (e *ErrFrameProcessing) Error() string {
	return fmt.Sprintf("unable to process frame #%d of chunk #%d: %v", e.Frame, e.Chunk, e.Err)
}

func (e *ErrFrameProcessing) Unwrap() error {
	return e.Err
}
