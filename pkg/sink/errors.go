package sink

import (
	"fmt"
)

// ErrMonitorWrite is reported when the live monitor failed to accept
// a frame. The recording is not affected.
type ErrMonitorWrite struct {
	Err error
}

func (e *ErrMonitorWrite) Error() string {
	return fmt.Sprintf("unable to write to the monitor: %v", e.Err)
}

func (e *ErrMonitorWrite) Unwrap() error {
	return e.Err
}
