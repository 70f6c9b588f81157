package types

import (
	"io"
)

type Stream interface {
	io.Closer
}

type PlayStream interface {
	Stream
	Drain() error
}

type RecordStream interface {
	Stream
}

// OverflowCounter is implemented by record streams that can tell how many
// times the device dropped input data.
type OverflowCounter interface {
	Overflows() uint64
}
