// Package config provides the configuration schema, loader, and default
// trigger table for the voxhook daemon.
package config

import "time"

// LogLevel controls log verbosity for the daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxhook.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	VAD       VADConfig       `yaml:"vad"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	ASR       ASRConfig       `yaml:"asr"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Control   ControlConfig   `yaml:"control"`

	// Triggers maps spoken phrases to shell commands. When empty and
	// TriggersFile is unset, [DefaultTriggers] applies.
	Triggers map[string]string `yaml:"triggers"`

	// TriggersFile points to an external YAML or JSON document holding the
	// phrase-to-command map. Entries from TriggersFile override Triggers.
	TriggersFile string `yaml:"triggers_file"`
}

// ServerConfig holds logging and telemetry settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address serving /metrics, /healthz and
	// /readyz. Empty disables the telemetry endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// AudioConfig describes the capture stream.
type AudioConfig struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameMs is the frame duration in milliseconds. Must be one of the
	// durations the VAD accepts (10, 20 or 30). Default: 20.
	FrameMs int `yaml:"frame_ms"`

	// Device selects the capture device by case-insensitive name
	// substring. Empty means the system default.
	Device string `yaml:"device"`

	// QueueSize bounds the frame queue between capture and segmentation.
	QueueSize int `yaml:"queue_size"`
}

// VADConfig describes speech/non-speech classification.
type VADConfig struct {
	// Aggressiveness tunes how strict the classifier is about calling a
	// frame speech, from 0 (permissive) to 3 (strict). Default: 3.
	Aggressiveness int `yaml:"aggressiveness"`
}

// SegmenterConfig holds utterance segmentation thresholds.
type SegmenterConfig struct {
	// MaxSegmentSec force-emits an utterance after this much continuous
	// speech. Default: 2.0.
	MaxSegmentSec float64 `yaml:"max_segment_sec"`

	// MinSpeechSec discards utterances shorter than this before
	// transcription. Default: 0.25.
	MinSpeechSec float64 `yaml:"min_speech_sec"`

	// SpeechPadMs is the trailing silence retained at the end of each
	// utterance, in milliseconds. Default: 120.
	SpeechPadMs int `yaml:"speech_pad_ms"`
}

// ASRConfig selects and tunes the transcription backend.
type ASRConfig struct {
	// Backend pins the engine: "native", "server", or "auto" (try native,
	// fall back to server). Default: auto.
	Backend string `yaml:"backend"`

	// Model is the path to the whisper.cpp model file used by the native
	// backend.
	Model string `yaml:"model"`

	// ServerURL is the base URL of a whisper-server instance used by the
	// server backend.
	ServerURL string `yaml:"server_url"`

	// Language is the transcription language hint, empty for auto.
	// Default: "en".
	Language string `yaml:"language"`

	// Threads bounds native inference threads. Default: 4.
	Threads int `yaml:"threads"`

	// WarmupSec transcribes this much synthetic silence at startup to pay
	// model initialization cost off the live path. 0 disables warmup.
	WarmupSec float64 `yaml:"warmup_sec"`
}

// MatcherConfig tunes fuzzy phrase matching.
type MatcherConfig struct {
	// Threshold is the minimum 0-100 similarity score. Default: 85.
	Threshold float64 `yaml:"threshold"`

	// CooldownSec is the per-phrase refire lockout in seconds. Default: 4.
	CooldownSec float64 `yaml:"cooldown_sec"`

	// MinChars discards normalized transcripts shorter than this.
	// Default: 3.
	MinChars int `yaml:"min_chars"`
}

// ControlConfig configures the UDP control plane.
type ControlConfig struct {
	// Enabled turns the inbound listener on. Default: false.
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the UDP address to bind (e.g. "0.0.0.0:9999").
	ListenAddr string `yaml:"listen_addr"`

	// Token is the shared secret every datagram must carry as a
	// "<token>:" prefix. Empty disables authentication.
	Token string `yaml:"token"`

	// AllowCmd enables the CMD verb: remote execution of arbitrary shell
	// text. Off unless explicitly opted in.
	AllowCmd bool `yaml:"allow_cmd"`

	// NotifyAddr, when set, receives a "TRIGGER:<phrase>" datagram every
	// time a trigger fires locally.
	NotifyAddr string `yaml:"notify_addr"`
}

// Cooldown returns the matcher cooldown as a duration.
func (m MatcherConfig) Cooldown() time.Duration {
	return time.Duration(m.CooldownSec * float64(time.Second))
}

// MaxSegment returns the force-cutoff threshold as a duration.
func (s SegmenterConfig) MaxSegment() time.Duration {
	return time.Duration(s.MaxSegmentSec * float64(time.Second))
}

// MinSpeech returns the short-utterance threshold as a duration.
func (s SegmenterConfig) MinSpeech() time.Duration {
	return time.Duration(s.MinSpeechSec * float64(time.Second))
}

// SpeechPad returns the trailing pad as a duration.
func (s SegmenterConfig) SpeechPad() time.Duration {
	return time.Duration(s.SpeechPadMs) * time.Millisecond
}
