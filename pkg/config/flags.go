package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/xaionaro-go/noisecancel/pkg/pipeline"
)

// Flags is the command line surface of Config. Only the flags that
// were set explicitly override the values from the config file.
type Flags struct {
	fs *pflag.FlagSet

	ConfigPath        string
	Backend           string
	Input             string
	Pace              bool
	Output            string
	RawOutput         string
	Engine            string
	Gain              float64
	ChunkDuration     time.Duration
	LatencyBudget     time.Duration
	TailPolicy        string
	VADMode           string
	VADThreshold      float64
	NoMonitor         bool
	MonitorQueueSize  int
	LogLevel          string
	LogFile           string
	MetricsListenAddr string
	PprofListenAddr   string
}

func RegisterFlags(fs *pflag.FlagSet) *Flags {
	def := Default()
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "path to a YAML config file")
	fs.StringVar(&f.Backend, "backend", def.Audio.Backend, "audio backend to capture and play with, 'auto', or 'dummy' to record silence and discard the playback")
	fs.StringVar(&f.Input, "input", "", "audio file (WAV or Ogg Vorbis) to process instead of the microphone")
	fs.BoolVar(&f.Pace, "pace", false, "process the input file in real time")
	fs.StringVar(&f.Output, "output", def.Output.Path, "where to save the processed audio")
	fs.StringVar(&f.RawOutput, "raw-output", def.Output.RawPath, "where to save the raw captured audio; empty to skip")
	fs.StringVar(&f.Engine, "engine", def.Processing.Engine, fmt.Sprintf("noise suppression engine, one of %v", ValidEngines))
	fs.Float64Var(&f.Gain, "gain", def.Processing.Gain, "amplification applied to the denoised signal")
	fs.DurationVar(&f.ChunkDuration, "chunk-duration", def.Audio.ChunkDuration, "duration of one capture read")
	fs.DurationVar(&f.LatencyBudget, "latency-budget", def.Processing.LatencyBudget, "maximal time to process one chunk")
	fs.StringVar(&f.TailPolicy, "tail-policy", def.Processing.TailPolicy.String(), "what to do with the last incomplete frame: pad or discard")
	fs.StringVar(&f.VADMode, "vad", def.VAD.Mode, fmt.Sprintf("voice activity detector, one of %v", ValidVADModes))
	fs.Float64Var(&f.VADThreshold, "vad-threshold", def.VAD.Threshold, "voice confidence above which a frame is voiced")
	fs.BoolVar(&f.NoMonitor, "no-monitor", false, "do not play the processed audio")
	fs.IntVar(&f.MonitorQueueSize, "monitor-queue-size", def.Monitor.QueueSize, "amount of frames waiting for playback before the oldest is dropped")
	fs.StringVar(&f.LogLevel, "log-level", def.Log.Level, "logging level")
	fs.StringVar(&f.LogFile, "log-file", def.Log.File, "write logs to this file (rotated) instead of stderr")
	fs.StringVar(&f.MetricsListenAddr, "metrics-listen-addr", def.Server.MetricsListenAddr, "serve Prometheus metrics at this address")
	fs.StringVar(&f.PprofListenAddr, "net-pprof-listen-addr", def.Server.PprofListenAddr, "serve net/pprof at this address")
	return f
}

// Resolve builds the effective config: defaults, then the config file
// (if any), then the explicitly set flags. Only the merged result is
// validated, so a flag may fix an invalid value of the file.
func (f *Flags) Resolve() (*Config, error) {
	cfg := Default()
	if f.ConfigPath != "" {
		var err error
		cfg, err = readFile(f.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	if err := f.apply(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (f *Flags) apply(cfg *Config) error {
	changed := f.fs.Changed
	if changed("backend") {
		cfg.Audio.Backend = f.Backend
	}
	if changed("input") {
		cfg.Input.Path = f.Input
	}
	if changed("pace") {
		cfg.Input.Pace = f.Pace
	}
	if changed("output") {
		cfg.Output.Path = f.Output
	}
	if changed("raw-output") {
		cfg.Output.RawPath = f.RawOutput
	}
	if changed("engine") {
		cfg.Processing.Engine = f.Engine
	}
	if changed("gain") {
		cfg.Processing.Gain = f.Gain
	}
	if changed("chunk-duration") {
		cfg.Audio.ChunkDuration = f.ChunkDuration
	}
	if changed("latency-budget") {
		cfg.Processing.LatencyBudget = f.LatencyBudget
	}
	if changed("tail-policy") {
		policy, err := pipeline.ParseTailPolicy(f.TailPolicy)
		if err != nil {
			return err
		}
		cfg.Processing.TailPolicy = policy
	}
	if changed("vad") {
		cfg.VAD.Mode = f.VADMode
	}
	if changed("vad-threshold") {
		cfg.VAD.Threshold = f.VADThreshold
	}
	if changed("no-monitor") {
		cfg.Monitor.Enabled = !f.NoMonitor
	}
	if changed("monitor-queue-size") {
		cfg.Monitor.QueueSize = f.MonitorQueueSize
	}
	if changed("log-level") {
		cfg.Log.Level = f.LogLevel
	}
	if changed("log-file") {
		cfg.Log.File = f.LogFile
	}
	if changed("metrics-listen-addr") {
		cfg.Server.MetricsListenAddr = f.MetricsListenAddr
	}
	if changed("net-pprof-listen-addr") {
		cfg.Server.PprofListenAddr = f.PprofListenAddr
	}
	return nil
}
