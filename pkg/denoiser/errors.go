package denoiser

import (
	"errors"
	"fmt"
)

var (
	// ErrUseAfterDestroy is returned by any call made after Close.
	ErrUseAfterDestroy = errors.New("the denoiser session is already destroyed")

	// ErrNotReady is returned by a Session that was never created via New.
	ErrNotReady = errors.New("the denoiser session is not initialized")
)

// ErrEngineInit means the noise suppression engine could not be acquired.
type ErrEngineInit struct {
	Err error
}

func (e *ErrEngineInit) Error() string {
	return fmt.Sprintf("unable to initialize the noise suppression engine: %v", e.Err)
}

func (e *ErrEngineInit) Unwrap() error {
	return e.Err
}

// ErrFrameLength means a frame of a wrong size was submitted.
type ErrFrameLength struct {
	Expected int
	Received int
}

func (e *ErrFrameLength) Error() string {
	return fmt.Sprintf("invalid frame length: expected %d samples, received %d", e.Expected, e.Received)
}
