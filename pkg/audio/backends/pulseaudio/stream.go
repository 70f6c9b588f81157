package pulseaudio

import (
	"fmt"

	"github.com/jfreymuth/pulse"
)

// closeStream stops the stream and closes it together with its client;
// the client panics if the connection is already broken.
func closeStream(client *pulse.Client, stop func(), close func()) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	stop()
	close()
	client.Close()
	return
}

type PlayStream struct {
	*pulse.Client
	*pulse.PlaybackStream
}

func (stream *PlayStream) Drain() error {
	stream.PlaybackStream.Drain()
	if stream.Error() != nil {
		return fmt.Errorf("an error occurred during playback: %w", stream.Error())
	}
	if stream.Underflow() {
		return fmt.Errorf("underflow")
	}
	return nil
}

func (stream *PlayStream) Close() error {
	return closeStream(stream.Client, stream.PlaybackStream.Stop, stream.PlaybackStream.Close)
}

type RecordStream struct {
	*pulse.Client
	*pulse.RecordStream
}

func (stream *RecordStream) Drain() error {
	if stream.Error() != nil {
		return fmt.Errorf("an error occurred during recording: %w", stream.Error())
	}
	return nil
}

func (stream *RecordStream) Close() error {
	return closeStream(stream.Client, stream.RecordStream.Stop, stream.RecordStream.Close)
}
