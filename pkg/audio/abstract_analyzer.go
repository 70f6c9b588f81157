package audio

import (
	"context"
	"io"
)

// AbstractAnalyzer is a component consuming PCM audio of a fixed layout,
// which it reports via Encoding and Channels.
type AbstractAnalyzer interface {
	io.Closer

	Encoding(context.Context) (Encoding, error)
	Channels(context.Context) (Channel, error)
}
