package audio

import (
	"context"
	"fmt"
	"io"

	"github.com/xaionaro-go/noisecancel/pkg/audio/registry"
)

type Recorder struct {
	RecorderPCM
	Backend string
}

func NewRecorder(recorderPCM RecorderPCM) *Recorder {
	return &Recorder{
		RecorderPCM: recorderPCM,
	}
}

var lastRecorder lastBackend

func recorderCandidate(entry registry.Entry[registry.RecorderPCMFactory]) candidate[RecorderPCM] {
	return candidate[RecorderPCM]{
		name: entry.Name,
		open: entry.Factory.NewRecorderPCM,
	}
}

// NewRecorderAuto returns a recorder of the highest priority backend that
// could be initialized and pinged. If none works, the returned error lists
// why every backend was rejected.
func NewRecorderAuto(
	ctx context.Context,
) (*Recorder, error) {
	var candidates []candidate[RecorderPCM]
	for _, entry := range registry.RecorderFactories() {
		candidates = append(candidates, recorderCandidate(entry))
	}

	recorder, name, err := openFirst(ctx, "recorder", &lastRecorder, candidates)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		RecorderPCM: recorder,
		Backend:     name,
	}, nil
}

// NewRecorderBackend returns a recorder of the named backend, or the
// same as NewRecorderAuto for BackendAuto.
func NewRecorderBackend(
	ctx context.Context,
	name string,
) (*Recorder, error) {
	if name == "" || name == BackendAuto {
		return NewRecorderAuto(ctx)
	}
	if name == BackendDummy {
		return &Recorder{
			RecorderPCM: RecorderPCMDummy{},
			Backend:     BackendDummy,
		}, nil
	}
	entry, ok := registry.RecorderFactory(name)
	if !ok {
		return nil, fmt.Errorf("unknown recorder backend '%s'", name)
	}
	recorder, _, err := openFirst(ctx, "recorder", nil, []candidate[RecorderPCM]{recorderCandidate(entry)})
	if err != nil {
		return nil, err
	}
	return &Recorder{
		RecorderPCM: recorder,
		Backend:     name,
	}, nil
}

func (a *Recorder) RecordPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	pcmFormat PCMFormat,
	pcmWriter io.Writer,
) (RecordStream, error) {
	return a.RecorderPCM.RecordPCM(
		ctx,
		sampleRate,
		channels,
		pcmFormat,
		pcmWriter,
	)
}
