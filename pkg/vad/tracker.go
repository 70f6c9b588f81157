package vad

import (
	"sync"
	"time"
)

// Tracker accumulates per-frame voice decisions of a session.
type Tracker struct {
	locker sync.Mutex

	ConfidenceThreshold float64
	MinDuration         time.Duration
	FrameDuration       time.Duration

	frames        uint64
	voicedFrames  uint64
	maxConfidence float64
	voiceRun      time.Duration
	firstVoice    time.Duration
}

func NewTracker(
	confidenceThreshold float64,
	minDuration time.Duration,
	frameDuration time.Duration,
) *Tracker {
	return &Tracker{
		ConfidenceThreshold: confidenceThreshold,
		MinDuration:         minDuration,
		FrameDuration:       frameDuration,
		firstVoice:          -1,
	}
}

// Observe registers the confidence of the next frame and reports if
// the frame is considered voiced.
func (t *Tracker) Observe(confidence float64) bool {
	t.locker.Lock()
	defer t.locker.Unlock()

	pos := t.frames
	t.frames++
	if confidence > t.maxConfidence {
		t.maxConfidence = confidence
	}

	if confidence < t.ConfidenceThreshold {
		t.voiceRun = 0
		return false
	}
	t.voicedFrames++
	t.voiceRun += t.FrameDuration
	if t.firstVoice < 0 && t.voiceRun >= t.MinDuration {
		runFrames := uint64((t.voiceRun + t.FrameDuration - 1) / t.FrameDuration)
		t.firstVoice = t.FrameDuration * time.Duration(pos+1-runFrames)
	}
	return true
}

type TrackerStats struct {
	Frames        uint64
	VoicedFrames  uint64
	MaxConfidence float64

	// FirstVoice is the offset of the first run of voiced frames
	// lasting at least MinDuration; negative if there was none.
	FirstVoice time.Duration
}

func (t *Tracker) Stats() TrackerStats {
	t.locker.Lock()
	defer t.locker.Unlock()
	return TrackerStats{
		Frames:        t.frames,
		VoicedFrames:  t.voicedFrames,
		MaxConfidence: t.maxConfidence,
		FirstVoice:    t.firstVoice,
	}
}
