package main

import (
	"context"
	"fmt"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	_ "github.com/xaionaro-go/noisecancel/pkg/audio/backends/oto"
	_ "github.com/xaionaro-go/noisecancel/pkg/audio/backends/portaudio"
	_ "github.com/xaionaro-go/noisecancel/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/noisecancel/pkg/config"
	"github.com/xaionaro-go/noisecancel/pkg/metrics"
	"github.com/xaionaro-go/noisecancel/pkg/pipeline"
	"github.com/xaionaro-go/observability"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	flags := config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := flags.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	l := newLogger(cfg)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logger.Error(ctx, err)
		belt.Flush(ctx)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) logger.Logger {
	logrusLogger := logrus.New()
	if cfg.Log.File != "" {
		logrusLogger.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			Compress:   true,
		})
	}
	return xlogrus.New(logrusLogger).WithLevel(cfg.LogLevel())
}

func run(ctx context.Context, cfg *config.Config) (_err error) {
	logger.Debugf(ctx, "run")
	defer func() { logger.Debugf(ctx, "/run: %v", _err) }()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	components, closer, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	components.Reporter = pipeline.Reporters{pipeline.LogReporter{}, m}

	session := pipeline.NewSession(cfg.SessionConfig(), components)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("unable to start the session: %w", err)
	}

	if cfg.Input.Path == "" {
		fmt.Println("Recording audio... Press Ctrl+C to stop.")
	}

	sessionDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(sessionDone)
		return session.Run(gctx)
	})
	if addr := cfg.Server.MetricsListenAddr; addr != "" {
		g.Go(func() error {
			return serve(gctx, sessionDone, "metrics", addr, metrics.Handler(registry))
		})
	}
	if addr := cfg.Server.PprofListenAddr; addr != "" {
		g.Go(func() error {
			return serve(gctx, sessionDone, "net/pprof", addr, nil)
		})
	}
	observability.Go(ctx, func() {
		logStats(ctx, sessionDone, session)
	})

	var mErr *multierror.Error
	if err := g.Wait(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	if ctx.Err() != nil {
		fmt.Println("\nStopping recording...")
	}

	result, err := session.Stop(context.WithoutCancel(ctx))
	if err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to finalize the session: %w", err))
	}
	if result != nil {
		printResult(result)
	}
	return mErr.ErrorOrNil()
}

func logStats(
	ctx context.Context,
	sessionDone <-chan struct{},
	session *pipeline.Session,
) {
	logger.Tracef(ctx, "stats printer loop")
	defer logger.Tracef(ctx, "/stats printer loop")
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-sessionDone:
			return
		case <-t.C:
			s := session.Stats()
			logger.Debugf(ctx, "chunks:%d frames:%d voiced:%d overflows:%d budget_misses:%d avg_iteration:%v",
				s.Chunks, s.Frames, s.VoicedFrames, s.Overflows, s.BudgetMisses, s.AvgIteration())
		}
	}
}

func printResult(result *pipeline.SessionResult) {
	s := result.Stats
	fmt.Printf("Stopped: %s; processed %d chunks (%d frames), %d samples in the tail (%s).\n",
		s.StopReason, s.Chunks, s.Frames, s.TailSamples, s.TailPolicy)
	if s.Overflows > 0 || s.BudgetMisses > 0 || result.Monitor.Dropped > 0 {
		fmt.Printf("Capture overflows: %d (%d samples lost); latency budget misses: %d; monitor frames dropped: %d.\n",
			s.Overflows, s.DroppedSamples, s.BudgetMisses, result.Monitor.Dropped)
	}
	if s.FailedFrames > 0 {
		fmt.Printf("Frames the denoiser failed on (recorded as silence): %d.\n", s.FailedFrames)
	}
	if s.FirstVoice >= 0 {
		fmt.Printf("Voice detected in %d frames, first at %v.\n", s.VoicedFrames, s.FirstVoice)
	} else {
		fmt.Println("No voice detected.")
	}
	fmt.Println()

	if result.Raw != nil {
		fmt.Printf("Raw audio saved to %s\n", result.Raw.Path)
		printVerified(*result.Raw)
	}
	if result.Processed.Path != "" {
		fmt.Printf("Processed audio saved to %s.\n", result.Processed.Path)
		printVerified(result.Processed)
	}
}

func printVerified(p pipeline.Persisted) {
	fmt.Printf("File: %s\n%sFile is a valid WAV file.\n\n", p.Path, p.Info)
}
