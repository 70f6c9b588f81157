package pipeline

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Reporter receives the non-fatal errors of a session:
// *ErrCaptureOverflow, *ErrLatencyBudgetExceeded, *ErrFrameProcessing,
// *sink.ErrMonitorWrite and VAD failures. It may be called from different goroutines.
type Reporter interface {
	Report(ctx context.Context, err error)
}

// IterationObserver may additionally be implemented by a Reporter to
// be notified about every processed chunk.
type IterationObserver interface {
	ObserveIteration(ctx context.Context, it Iteration)
}

type ReporterFunc func(ctx context.Context, err error)

func (fn ReporterFunc) Report(ctx context.Context, err error) {
	fn(ctx, err)
}

// LogReporter writes every reported error as a warning.
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, err error) {
	logger.Warnf(ctx, "%v", err)
}

// Reporters fans reports out to every reporter in the slice.
type Reporters []Reporter

func (s Reporters) Report(ctx context.Context, err error) {
	for _, r := range s {
		r.Report(ctx, err)
	}
}

func (s Reporters) ObserveIteration(ctx context.Context, it Iteration) {
	for _, r := range s {
		if o, ok := r.(IterationObserver); ok {
			o.ObserveIteration(ctx, it)
		}
	}
}
