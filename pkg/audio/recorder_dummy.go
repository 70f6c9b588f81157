package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
)

// BackendDummy selects RecorderPCMDummy and PlayerPCMDummy.
const BackendDummy = "dummy"

const dummyRecordPeriod = 10 * time.Millisecond

// RecorderPCMDummy records silence in real time, for running without an
// input device.
type RecorderPCMDummy struct{}

var _ RecorderPCM = RecorderPCMDummy{}

func (RecorderPCMDummy) Close() error {
	return nil
}

func (RecorderPCMDummy) Ping(context.Context) error {
	return nil
}

func (RecorderPCMDummy) RecordPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	writer io.Writer,
) (RecordStream, error) {
	if sampleRate == 0 || channels == 0 {
		return nil, fmt.Errorf("invalid stream parameters: %d Hz, %d channels", sampleRate, channels)
	}
	if format.Size() == 0 {
		return nil, fmt.Errorf("unsupported PCM format %s", format)
	}
	encoding := EncodingPCM{PCMFormat: format, SampleRate: sampleRate}
	silence := make([]byte, encoding.BytesForDuration(dummyRecordPeriod)*uint64(channels))

	stream := &RecordStreamDummy{stopCh: make(chan struct{}), doneCh: make(chan struct{})}
	observability.Go(ctx, func() {
		defer close(stream.doneCh)
		t := time.NewTicker(dummyRecordPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stream.stopCh:
				return
			case <-t.C:
			}
			if _, err := writer.Write(silence); err != nil {
				logger.Debugf(ctx, "unable to write the silence: %v", err)
				return
			}
		}
	})
	return stream, nil
}

// RecordStreamDummy is the stream of RecorderPCMDummy.
type RecordStreamDummy struct {
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ RecordStream = (*RecordStreamDummy)(nil)

// Close stops the recording; nothing is written after it returns.
func (s *RecordStreamDummy) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	return nil
}
