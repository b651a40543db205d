package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultConfig returns the daemon's built-in tuning: 16 kHz mono capture
// in 20 ms frames, strict VAD, 2 s segment cutoff with 120 ms trailing
// pad, and an 85-point match threshold with a 4 s cooldown.
//
// The YAML document is decoded over this value, so keys absent from the
// file keep their defaults while explicitly configured zeros survive
// (aggressiveness 0, cooldown_sec 0 and threshold 0 are all legal
// settings, not requests for the default).
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			FrameMs:    20,
		},
		VAD: VADConfig{
			Aggressiveness: 3,
		},
		Segmenter: SegmenterConfig{
			MaxSegmentSec: 2.0,
			MinSpeechSec:  0.25,
			SpeechPadMs:   120,
		},
		ASR: ASRConfig{
			Backend:  "auto",
			Language: "en",
			Threads:  4,
		},
		Matcher: MatcherConfig{
			Threshold:   85,
			CooldownSec: 4.0,
			MinChars:    3,
		},
		Control: ControlConfig{
			ListenAddr: "0.0.0.0:9999",
		},
	}
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [defaultConfig],
// resolves the trigger table and validates the result. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := defaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	triggers, err := ResolveTriggers(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Triggers = triggers

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Audio.SampleRate != 8000 && cfg.Audio.SampleRate != 16000 &&
		cfg.Audio.SampleRate != 32000 && cfg.Audio.SampleRate != 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is invalid; valid values: 8000, 16000, 32000, 48000", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMs != 10 && cfg.Audio.FrameMs != 20 && cfg.Audio.FrameMs != 30 {
		errs = append(errs, fmt.Errorf("audio.frame_ms %d is invalid; valid values: 10, 20, 30", cfg.Audio.FrameMs))
	}
	if cfg.Audio.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("audio.queue_size %d must not be negative", cfg.Audio.QueueSize))
	}

	if cfg.VAD.Aggressiveness < 0 || cfg.VAD.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("vad.aggressiveness %d is out of range [0, 3]", cfg.VAD.Aggressiveness))
	}

	if cfg.Segmenter.MaxSegmentSec <= 0 {
		errs = append(errs, fmt.Errorf("segmenter.max_segment_sec %.2f must be positive", cfg.Segmenter.MaxSegmentSec))
	}
	if cfg.Segmenter.MinSpeechSec < 0 {
		errs = append(errs, fmt.Errorf("segmenter.min_speech_sec %.2f must not be negative", cfg.Segmenter.MinSpeechSec))
	}
	if cfg.Segmenter.SpeechPadMs < 0 {
		errs = append(errs, fmt.Errorf("segmenter.speech_pad_ms %d must not be negative", cfg.Segmenter.SpeechPadMs))
	}

	switch cfg.ASR.Backend {
	case "auto", "native", "server":
	default:
		errs = append(errs, fmt.Errorf("asr.backend %q is invalid; valid values: auto, native, server", cfg.ASR.Backend))
	}
	if cfg.ASR.Backend == "native" && cfg.ASR.Model == "" {
		errs = append(errs, fmt.Errorf("asr.model is required when asr.backend is native"))
	}
	if cfg.ASR.Backend == "server" && cfg.ASR.ServerURL == "" {
		errs = append(errs, fmt.Errorf("asr.server_url is required when asr.backend is server"))
	}
	if cfg.ASR.Backend == "auto" && cfg.ASR.Model == "" && cfg.ASR.ServerURL == "" {
		errs = append(errs, fmt.Errorf("asr: at least one of asr.model and asr.server_url must be set"))
	}

	if cfg.Matcher.Threshold < 0 || cfg.Matcher.Threshold > 100 {
		errs = append(errs, fmt.Errorf("matcher.threshold %.1f is out of range [0, 100]", cfg.Matcher.Threshold))
	}
	if cfg.Matcher.CooldownSec < 0 {
		errs = append(errs, fmt.Errorf("matcher.cooldown_sec %.2f must not be negative", cfg.Matcher.CooldownSec))
	}

	if cfg.Control.Enabled && cfg.Control.Token == "" {
		slog.Warn("control plane enabled without a token; any host that can reach the socket can pause the daemon")
	}
	if cfg.Control.AllowCmd && !cfg.Control.Enabled {
		slog.Warn("control.allow_cmd is set but the control plane is disabled; the flag has no effect")
	}

	if len(cfg.Triggers) == 0 {
		errs = append(errs, fmt.Errorf("triggers: at least one phrase must be configured"))
	}

	return errors.Join(errs...)
}
