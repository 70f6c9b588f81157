// Package pipeline runs the capture → denoise → dispatch loop of a
// speech enhancement session.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/noisecancel/pkg/capture"
	"github.com/xaionaro-go/noisecancel/pkg/denoiser"
	"github.com/xaionaro-go/noisecancel/pkg/framebuffer"
	"github.com/xaionaro-go/noisecancel/pkg/postprocess"
	"github.com/xaionaro-go/noisecancel/pkg/sink"
	"github.com/xaionaro-go/noisecancel/pkg/vad"
)

// Driver is the single loop that moves audio from the capture through
// the denoiser to the sinks. The denoiser session is used exclusively
// by the driver.
type Driver struct {
	Config        Config
	Source        capture.Source
	Denoiser      *denoiser.Session
	PostProcessor *postprocess.PostProcessor
	Sink          *sink.Multiplexer

	// VAD is optional; without it the voice probability reported by
	// the denoiser is used.
	VAD      vad.VAD
	Reporter Reporter

	buffer      *framebuffer.Buffer
	voice       *vad.Tracker
	readTimeout time.Duration

	statsLocker sync.Mutex
	stats       Stats
	running     bool
}

func NewDriver(
	cfg Config,
	source capture.Source,
	session *denoiser.Session,
	postProcessor *postprocess.PostProcessor,
	mux *sink.Multiplexer,
) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if source == nil || session == nil || postProcessor == nil || mux == nil {
		return nil, fmt.Errorf("source, denoiser, post-processor and sink are required")
	}

	buffer, err := framebuffer.New(session.FrameLength(), cfg.ChunkFrames)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the frame buffer: %w", err)
	}

	sampleRate := source.Format().SampleRate
	if sampleRate == 0 {
		return nil, fmt.Errorf("the source has no sample rate")
	}
	frameDuration := time.Duration(session.FrameLength()) * time.Second / time.Duration(sampleRate)
	chunkDuration := time.Duration(cfg.ChunkFrames) * time.Second / time.Duration(sampleRate)
	readTimeout := cfg.ReadTimeout
	switch {
	case readTimeout == 0:
		readTimeout = chunkDuration
	case readTimeout > chunkDuration:
		return nil, fmt.Errorf("the read timeout %v exceeds the chunk duration %v", readTimeout, chunkDuration)
	}

	return &Driver{
		Config:        cfg,
		Source:        source,
		Denoiser:      session,
		PostProcessor: postProcessor,
		Sink:          mux,
		Reporter:      LogReporter{},
		buffer:        buffer,
		voice:         vad.NewTracker(cfg.VoiceThreshold, cfg.VoiceMinDuration, frameDuration),
		readTimeout:   readTimeout,
		stats: Stats{
			FirstVoice: -1,
			TailPolicy: cfg.TailPolicy,
		},
	}, nil
}

// Run processes chunks until the capture is exhausted or ctx is
// cancelled (both end the session normally and nil is returned), or
// until a fatal error. Everything recorded before a fatal error stays
// in the recording.
func (d *Driver) Run(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Run")
	defer func() { logger.Debugf(ctx, "/Run: %v", _err) }()

	d.statsLocker.Lock()
	if d.running || d.stats.StopReason != StopReasonUndefined {
		d.statsLocker.Unlock()
		return fmt.Errorf("the driver may be run only once")
	}
	d.running = true
	d.statsLocker.Unlock()

	for {
		if ctx.Err() != nil {
			return d.finish(ctx, StopReasonCancelled)
		}

		chunk, err := d.Source.Read(ctx, d.Config.ChunkFrames, d.readTimeout)
		readAt := time.Now()
		switch {
		case err == nil:
		case errors.Is(err, capture.ErrTimeout):
			logger.Debugf(ctx, "no audio within %v", d.readTimeout)
			d.updateStats(func(s *Stats) { s.Timeouts++ })
			continue
		case errors.Is(err, io.EOF):
			return d.finish(ctx, StopReasonEndOfInput)
		case ctx.Err() != nil:
			return d.finish(ctx, StopReasonCancelled)
		default:
			d.setStopReason(StopReasonFailure)
			return fmt.Errorf("unable to read from the capture: %w", err)
		}

		if err := d.processChunk(ctx, chunk, readAt); err != nil {
			d.setStopReason(StopReasonFailure)
			return err
		}
	}
}

func (d *Driver) processChunk(
	ctx context.Context,
	chunk capture.Chunk,
	readAt time.Time,
) error {
	chunkIdx := d.Stats().Chunks

	if chunk.Overflowed() {
		d.report(ctx, &ErrCaptureOverflow{
			Chunk:           chunkIdx,
			Dropped:         chunk.Dropped,
			DeviceOverflows: chunk.DeviceOverflows,
		})
	}

	if err := d.buffer.Push(chunk.Samples); err != nil {
		return fmt.Errorf("unable to buffer chunk #%d: %w", chunkIdx, err)
	}

	// In-flight frames are always completed, cancellation is only
	// checked between chunks.
	frameCtx := context.WithoutCancel(ctx)
	var (
		frames [][]int16
		voiced int
		failed int
	)
	for frame := range d.buffer.Drain() {
		out, isVoice, err := d.processFrame(frameCtx, frame)
		if err != nil {
			if d.denoiserUnusable(err) {
				return fmt.Errorf("unable to process frame #%d of chunk #%d: %w", len(frames), chunkIdx, err)
			}
			d.report(ctx, &ErrFrameProcessing{Chunk: chunkIdx, Frame: len(frames), Err: err})
			out = d.failedFrame(len(frame))
			failed++
		}
		frames = append(frames, out)
		if isVoice {
			voiced++
		}
	}
	d.Sink.Record(chunk.Samples, frames)

	elapsed := time.Since(readAt)
	exceeded := elapsed > d.Config.LatencyBudget
	if exceeded {
		d.report(ctx, &ErrLatencyBudgetExceeded{
			Chunk:   chunkIdx,
			Elapsed: elapsed,
			Budget:  d.Config.LatencyBudget,
		})
	}

	voice := d.voice.Stats()
	d.updateStats(func(s *Stats) {
		s.Chunks++
		s.VoicedFrames = voice.VoicedFrames
		s.FirstVoice = voice.FirstVoice
		s.Frames += uint64(len(frames))
		s.FailedFrames += uint64(failed)
		s.Samples += uint64(len(chunk.Samples))
		if chunk.Overflowed() {
			s.Overflows++
			s.DroppedSamples += chunk.Dropped
		}
		if exceeded {
			s.BudgetMisses++
		}
		s.TotalIteration += elapsed
		if elapsed > s.MaxIteration {
			s.MaxIteration = elapsed
		}
	})

	if o, ok := d.Reporter.(IterationObserver); ok {
		o.ObserveIteration(ctx, Iteration{
			Chunk:        chunkIdx,
			Samples:      len(chunk.Samples),
			Frames:       len(frames),
			VoicedFrames: voiced,
			Elapsed:      elapsed,
			Overflow:     chunk.Overflowed(),
			Exceeded:     exceeded,
		})
	}
	return nil
}

func (d *Driver) processFrame(
	ctx context.Context,
	frame []int16,
) ([]int16, bool, error) {
	result, err := d.Denoiser.Process(ctx, postprocess.ToFloat(frame))
	if err != nil {
		return nil, false, err
	}
	out := d.PostProcessor.Apply(result.Frame)

	confidence := result.VoiceProbability
	if d.VAD != nil {
		c, err := d.VAD.VoiceConfidence(ctx, out)
		if err != nil {
			d.report(ctx, fmt.Errorf("voice activity detection failed: %w", err))
		} else {
			confidence = c
		}
	}
	isVoice := d.voice.Observe(confidence)

	d.Sink.Enqueue(ctx, out)
	return out, isVoice, nil
}

// denoiserUnusable tells a failure of the denoiser session itself from a
// failure of a single frame, after which the session keeps working.
func (d *Driver) denoiserUnusable(err error) bool {
	var lengthErr *denoiser.ErrFrameLength
	switch {
	case errors.Is(err, denoiser.ErrUseAfterDestroy),
		errors.Is(err, denoiser.ErrNotReady),
		errors.As(err, &lengthErr):
		return true
	}
	return d.Denoiser.State() != denoiser.StateReady
}

// failedFrame is what is recorded in place of a frame the denoiser failed
// on: silence, so the processed recording stays aligned with the raw one.
// The frame is never sent to the monitor.
func (d *Driver) failedFrame(length int) []int16 {
	d.voice.Observe(0)
	return make([]int16, length)
}

func (d *Driver) finish(ctx context.Context, reason StopReason) error {
	logger.Debugf(ctx, "finishing: %s", reason)
	residual := d.buffer.Flush()
	tailSamples := len(residual)
	if tailSamples > 0 {
		switch d.Config.TailPolicy {
		case TailPolicyPad:
			frame := make([]int16, d.buffer.FrameLength())
			copy(frame, residual)
			out, _, err := d.processFrame(context.WithoutCancel(ctx), frame)
			failed := uint64(0)
			if err != nil {
				if d.denoiserUnusable(err) {
					d.setStopReason(StopReasonFailure)
					return fmt.Errorf("unable to process the tail: %w", err)
				}
				d.report(ctx, &ErrFrameProcessing{Chunk: d.Stats().Chunks, Err: err})
				out = d.failedFrame(len(frame))
				failed = 1
			}
			d.Sink.Recording().AppendProcessed(out)
			d.updateStats(func(s *Stats) {
				s.Frames++
				s.FailedFrames += failed
			})
		case TailPolicyDiscard:
			logger.Debugf(ctx, "discarding %d tail samples", tailSamples)
		}
	}

	d.updateStats(func(s *Stats) { s.TailSamples = tailSamples })
	d.setStopReason(reason)
	return nil
}

func (d *Driver) report(ctx context.Context, err error) {
	if d.Reporter == nil {
		return
	}
	d.Reporter.Report(ctx, err)
}

func (d *Driver) updateStats(fn func(s *Stats)) {
	d.statsLocker.Lock()
	defer d.statsLocker.Unlock()
	fn(&d.stats)
}

func (d *Driver) setStopReason(reason StopReason) {
	voice := d.voice.Stats()
	d.updateStats(func(s *Stats) {
		s.StopReason = reason
		s.VoicedFrames = voice.VoicedFrames
		s.FirstVoice = voice.FirstVoice
	})
}

func (d *Driver) Stats() Stats {
	d.statsLocker.Lock()
	defer d.statsLocker.Unlock()
	return d.stats
}
