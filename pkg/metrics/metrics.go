// Package metrics exports the pipeline activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xaionaro-go/noisecancel/pkg/pipeline"
	"github.com/xaionaro-go/noisecancel/pkg/sink"
)

const (
	ErrorTypeCaptureOverflow = "capture_overflow"
	ErrorTypeLatencyBudget   = "latency_budget_exceeded"
	ErrorTypeMonitorWrite    = "monitor_write"
	ErrorTypeFrameProcessing = "frame_processing"
	ErrorTypeOther           = "other"
)

// Metrics is a pipeline.Reporter that counts what it is told about.
type Metrics struct {
	ChunksProcessed prometheus.Counter
	FramesProcessed prometheus.Counter
	VoicedFrames    prometheus.Counter
	ChunkDuration   prometheus.Histogram
	Errors          *prometheus.CounterVec
}

var (
	_ pipeline.Reporter          = (*Metrics)(nil)
	_ pipeline.IterationObserver = (*Metrics)(nil)
)

// New registers the metrics in the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "noisecancel_chunks_processed_total",
			Help: "Total audio chunks processed",
		}),
		FramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "noisecancel_frames_processed_total",
			Help: "Total frames passed through the denoiser",
		}),
		VoicedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "noisecancel_voiced_frames_total",
			Help: "Frames considered to contain voice",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "noisecancel_chunk_processing_duration_seconds",
			Help:    "Time from a chunk being captured to all its frames being dispatched",
			Buckets: []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "noisecancel_errors_total",
			Help: "Non-fatal errors by type",
		}, []string{"error_type"}),
	}
}

func (m *Metrics) Report(_ context.Context, err error) {
	m.Errors.WithLabelValues(errorType(err)).Inc()
}

func errorType(err error) string {
	var (
		overflow *pipeline.ErrCaptureOverflow
		budget   *pipeline.ErrLatencyBudgetExceeded
		monitor  *sink.ErrMonitorWrite
		frame    *pipeline.ErrFrameProcessing
	)
	switch {
	case errors.As(err, &overflow):
		return ErrorTypeCaptureOverflow
	case errors.As(err, &budget):
		return ErrorTypeLatencyBudget
	case errors.As(err, &monitor):
		return ErrorTypeMonitorWrite
	case errors.As(err, &frame):
		return ErrorTypeFrameProcessing
	default:
		return ErrorTypeOther
	}
}

func (m *Metrics) ObserveIteration(_ context.Context, it pipeline.Iteration) {
	m.ChunksProcessed.Inc()
	m.FramesProcessed.Add(float64(it.Frames))
	m.VoicedFrames.Add(float64(it.VoicedFrames))
	m.ChunkDuration.Observe(it.Elapsed.Seconds())
}

// Handler serves the metrics of the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
