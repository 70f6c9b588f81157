package sink

import (
	"slices"
	"sync"
)

// Recording keeps the raw input and the processed output of a session.
type Recording struct {
	locker    sync.Mutex
	raw       []int16
	processed []int16
	chunks    uint64
	frames    uint64
}

func NewRecording() *Recording {
	return &Recording{}
}

// Append stores a captured chunk together with all the frames produced
// from it.
func (r *Recording) Append(raw []int16, frames [][]int16) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.raw = append(r.raw, raw...)
	for _, frame := range frames {
		r.processed = append(r.processed, frame...)
	}
	r.chunks++
	r.frames += uint64(len(frames))
}

// AppendProcessed stores frames that have no captured chunk of their
// own (e.g. the padded tail of a session).
func (r *Recording) AppendProcessed(frames ...[]int16) {
	r.locker.Lock()
	defer r.locker.Unlock()
	for _, frame := range frames {
		r.processed = append(r.processed, frame...)
	}
	r.frames += uint64(len(frames))
}

func (r *Recording) Raw() []int16 {
	r.locker.Lock()
	defer r.locker.Unlock()
	return slices.Clone(r.raw)
}

func (r *Recording) Processed() []int16 {
	r.locker.Lock()
	defer r.locker.Unlock()
	return slices.Clone(r.processed)
}

type RecordingStats struct {
	Chunks           uint64
	Frames           uint64
	RawSamples       int
	ProcessedSamples int
}

func (r *Recording) Stats() RecordingStats {
	r.locker.Lock()
	defer r.locker.Unlock()
	return RecordingStats{
		Chunks:           r.chunks,
		Frames:           r.frames,
		RawSamples:       len(r.raw),
		ProcessedSamples: len(r.processed),
	}
}
