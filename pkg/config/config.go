// Package config defines the settings of a noise suppression session.
package config

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/noisecancel/pkg/audio"
	"github.com/xaionaro-go/noisecancel/pkg/pipeline"
	"github.com/xaionaro-go/noisecancel/pkg/postprocess"
	"github.com/xaionaro-go/noisecancel/pkg/sink"
)

const (
	EngineRNNoise     = "rnnoise"
	EngineSpectral    = "spectral"
	EnginePassthrough = "passthrough"

	VADModeEngine   = "engine"
	VADModeFVAD     = "fvad"
	VADModeSpectral = "spectral"
)

var (
	ValidEngines  = []string{EngineRNNoise, EngineSpectral, EnginePassthrough}
	ValidVADModes = []string{VADModeEngine, VADModeFVAD, VADModeSpectral}
)

type Config struct {
	Audio      Audio      `yaml:"audio"`
	Processing Processing `yaml:"processing"`
	VAD        VAD        `yaml:"vad"`
	Monitor    Monitor    `yaml:"monitor"`
	Input      Input      `yaml:"input"`
	Output     Output     `yaml:"output"`
	Log        Log        `yaml:"log"`
	Server     Server     `yaml:"server"`
}

type Audio struct {
	// Backend is the name of the audio backend (e.g. "pulseaudio") or
	// "auto".
	Backend       string        `yaml:"backend"`
	SampleRate    uint32        `yaml:"sample_rate"`
	Channels      uint32        `yaml:"channels"`
	ChunkDuration time.Duration `yaml:"chunk_duration"`

	// FrameLength is used by engines that accept any frame size.
	FrameLength int `yaml:"frame_length"`
}

type Processing struct {
	Engine        string              `yaml:"engine"`
	Gain          float64             `yaml:"gain"`
	LatencyBudget time.Duration       `yaml:"latency_budget"`
	TailPolicy    pipeline.TailPolicy `yaml:"tail_policy"`
}

type VAD struct {
	// Mode selects where voice confidence comes from: "engine" (the
	// probability reported by the denoiser), "fvad" (WebRTC VAD on the
	// denoised output) or "spectral" (a separate spectral gate run over
	// the denoised output).
	Mode        string        `yaml:"mode"`
	FVADMode    int           `yaml:"fvad_mode"`
	Threshold   float64       `yaml:"threshold"`
	MinDuration time.Duration `yaml:"min_duration"`
}

type Monitor struct {
	Enabled    bool          `yaml:"enabled"`
	QueueSize  int           `yaml:"queue_size"`
	BufferSize time.Duration `yaml:"buffer_size"`
}

type Input struct {
	// Path is an audio file to process instead of the microphone.
	Path string `yaml:"path"`

	// Pace makes file input run in real time. It is implied when the
	// monitor is enabled.
	Pace bool `yaml:"pace"`
}

type Output struct {
	Path    string `yaml:"path"`
	RawPath string `yaml:"raw_path"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Server struct {
	MetricsListenAddr string `yaml:"metrics_listen_addr"`
	PprofListenAddr   string `yaml:"pprof_listen_addr"`
}

func Default() *Config {
	return &Config{
		Audio: Audio{
			Backend:       audio.BackendAuto,
			SampleRate:    16000,
			Channels:      1,
			ChunkDuration: 200 * time.Millisecond,
			FrameLength:   480,
		},
		Processing: Processing{
			Engine:        EngineSpectral,
			Gain:          postprocess.DefaultGain,
			LatencyBudget: pipeline.DefaultLatencyBudget,
			TailPolicy:    pipeline.TailPolicyPad,
		},
		VAD: VAD{
			Mode:      VADModeEngine,
			FVADMode:  2,
			Threshold: pipeline.DefaultVoiceThreshold,
		},
		Monitor: Monitor{
			Enabled:    true,
			QueueSize:  sink.DefaultQueueSize,
			BufferSize: audio.BufferSize,
		},
		Output: Output{
			Path:    "processed_audio.wav",
			RawPath: "raw_audio.wav",
		},
		Log: Log{
			Level: logger.LevelInfo.String(),
		},
	}
}

// Validate returns every problem found in the config.
func Validate(cfg *Config) error {
	var mErr *multierror.Error
	add := func(format string, args ...any) {
		mErr = multierror.Append(mErr, fmt.Errorf(format, args...))
	}

	if cfg.Audio.Backend == "" {
		add("audio.backend is not set")
	}
	if cfg.Audio.SampleRate == 0 {
		add("audio.sample_rate should be positive")
	}
	if cfg.Audio.Channels != 1 {
		add("audio.channels: only mono is supported, got %d", cfg.Audio.Channels)
	}
	if cfg.Audio.ChunkDuration <= 0 {
		add("audio.chunk_duration should be positive, got %v", cfg.Audio.ChunkDuration)
	} else if cfg.Audio.SampleRate > 0 && cfg.ChunkFrames() == 0 {
		add("audio.chunk_duration %v is shorter than one sample", cfg.Audio.ChunkDuration)
	}
	if cfg.Audio.FrameLength <= 0 {
		add("audio.frame_length should be positive, got %d", cfg.Audio.FrameLength)
	}

	if !slices.Contains(ValidEngines, cfg.Processing.Engine) {
		add("processing.engine %q is invalid; valid values: %v", cfg.Processing.Engine, ValidEngines)
	}
	if math.IsNaN(cfg.Processing.Gain) || math.IsInf(cfg.Processing.Gain, 0) || cfg.Processing.Gain < 0 {
		add("processing.gain %v is invalid", cfg.Processing.Gain)
	}
	if cfg.Processing.LatencyBudget <= 0 {
		add("processing.latency_budget should be positive, got %v", cfg.Processing.LatencyBudget)
	}
	if _, err := cfg.Processing.TailPolicy.MarshalText(); err != nil {
		add("processing.tail_policy: %v", err)
	}

	if !slices.Contains(ValidVADModes, cfg.VAD.Mode) {
		add("vad.mode %q is invalid; valid values: %v", cfg.VAD.Mode, ValidVADModes)
	}
	if cfg.VAD.FVADMode < 0 || cfg.VAD.FVADMode > 3 {
		add("vad.fvad_mode should be in [0, 3], got %d", cfg.VAD.FVADMode)
	}
	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		add("vad.threshold should be in [0, 1], got %v", cfg.VAD.Threshold)
	}
	if cfg.VAD.MinDuration < 0 {
		add("vad.min_duration should not be negative, got %v", cfg.VAD.MinDuration)
	}

	if cfg.Monitor.QueueSize < 1 {
		add("monitor.queue_size should be at least 1, got %d", cfg.Monitor.QueueSize)
	}
	if cfg.Monitor.BufferSize <= 0 {
		add("monitor.buffer_size should be positive, got %v", cfg.Monitor.BufferSize)
	}

	if cfg.Output.Path == "" {
		add("output.path is not set")
	}
	if cfg.Output.RawPath != "" && cfg.Output.RawPath == cfg.Output.Path {
		add("output.raw_path and output.path should differ")
	}

	var level logger.Level
	if err := level.Set(cfg.Log.Level); err != nil {
		add("log.level %q is invalid: %v", cfg.Log.Level, err)
	}

	return mErr.ErrorOrNil()
}

// Format is the PCM layout the pipeline works in.
func (cfg *Config) Format() audio.Format {
	return audio.Format{
		SampleRate: audio.SampleRate(cfg.Audio.SampleRate),
		Channels:   audio.Channel(cfg.Audio.Channels),
		PCMFormat:  audio.PCMFormatS16LE,
	}
}

// ChunkFrames is the amount of samples in one chunk.
func (cfg *Config) ChunkFrames() int {
	return cfg.Format().Encoding().SamplesForDuration(cfg.Audio.ChunkDuration)
}

// LogLevel returns the parsed log level; the config is expected to be
// validated.
func (cfg *Config) LogLevel() logger.Level {
	level := logger.LevelInfo
	_ = level.Set(cfg.Log.Level)
	return level
}

func (cfg *Config) SessionConfig() pipeline.SessionConfig {
	result := pipeline.DefaultSessionConfig()
	result.Driver.ChunkFrames = cfg.ChunkFrames()
	result.Driver.LatencyBudget = cfg.Processing.LatencyBudget
	result.Driver.TailPolicy = cfg.Processing.TailPolicy
	result.Driver.VoiceThreshold = cfg.VAD.Threshold
	result.Driver.VoiceMinDuration = cfg.VAD.MinDuration
	result.Gain = cfg.Processing.Gain
	result.MonitorQueueSize = cfg.Monitor.QueueSize
	result.OutputPath = cfg.Output.Path
	result.RawOutputPath = cfg.Output.RawPath
	return result
}
