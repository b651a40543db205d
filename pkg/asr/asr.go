// Package asr defines the transcription boundary of the voxhook pipeline and
// the backend selection policy.
//
// An Engine turns one utterance of normalised float32 audio into text. Each
// call is independent: no context is carried across utterances, because
// consecutive utterances may be minutes apart and unrelated.
//
// Two whisper.cpp backends ship in the whisper subpackage: the native CGO
// bindings (preferred — the model runs in-process on whatever accelerated
// build of libwhisper is linked) and an HTTP client for a whisper-server
// process (the general-purpose fallback). Open applies the selection policy:
// with BackendAuto the native backend is attempted first and the server
// backend is used only if native initialisation fails; a pinned backend that
// fails to initialise is a fatal error, never silently downgraded.
package asr

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backend selects which transcription backend Open constructs.
type Backend string

const (
	// BackendAuto tries the native backend first and falls back to the
	// server backend when native initialisation fails.
	BackendAuto Backend = "auto"

	// BackendNative pins the in-process whisper.cpp CGO backend.
	BackendNative Backend = "native"

	// BackendServer pins the whisper-server HTTP backend.
	BackendServer Backend = "server"
)

// IsValid reports whether b is a recognised backend selector.
func (b Backend) IsValid() bool {
	return b == BackendAuto || b == BackendNative || b == BackendServer
}

// Result is the outcome of transcribing one utterance.
type Result struct {
	// Text is the transcribed speech, whitespace-trimmed. Empty when the
	// engine heard nothing intelligible.
	Text string

	// Elapsed is the wall-clock inference time, reported for diagnostics and
	// latency metrics.
	Elapsed time.Duration
}

// Engine transcribes single utterances. Implementations must be safe for
// concurrent use, although the pipeline calls Transcribe from a single
// worker.
type Engine interface {
	// Transcribe converts one utterance of mono float32 samples in [-1, 1]
	// (16 kHz) into text. The call is synchronous and bounded by ctx.
	Transcribe(ctx context.Context, samples []float32) (Result, error)

	// Close releases the engine's resources. Safe to call more than once.
	Close() error
}

// Config holds the parameters for constructing an engine via [Open].
type Config struct {
	// Backend selects the backend policy. Empty means BackendAuto.
	Backend Backend

	// ModelPath is the whisper.cpp model file for the native backend.
	ModelPath string

	// ServerURL is the whisper-server base URL for the server backend
	// (e.g. "http://localhost:8080").
	ServerURL string

	// Language is the language hint (e.g. "en"). Empty lets the model
	// auto-detect.
	Language string

	// Threads is the CPU thread hint for the native backend. Zero uses the
	// binding's default.
	Threads int

	// SampleRate of the PCM audio handed to Transcribe. Zero means 16000.
	SampleRate int
}

// Factory constructs an Engine from a Config. The indirection exists so the
// selection policy can be tested without linking whisper.cpp.
type Factory func(Config) (Engine, error)

// openOptions carries the backend factories used by Open.
type openOptions struct {
	native Factory
	server Factory
}

// OpenOption overrides a backend factory, for tests.
type OpenOption func(*openOptions)

// WithNativeFactory replaces the native backend constructor.
func WithNativeFactory(f Factory) OpenOption {
	return func(o *openOptions) { o.native = f }
}

// WithServerFactory replaces the server backend constructor.
func WithServerFactory(f Factory) OpenOption {
	return func(o *openOptions) { o.server = f }
}

// Open constructs an Engine per the backend selection policy described in the
// package comment. The native and server factories are passed in by the
// caller (cmd/voxhook wires the whisper subpackage constructors); keeping
// them out of this package means tests importing asr never need libwhisper
// at link time. The returned error names the failing backend.
func Open(cfg Config, native, server Factory, opts ...OpenOption) (Engine, error) {
	o := openOptions{native: native, server: server}
	for _, opt := range opts {
		opt(&o)
	}

	backend := cfg.Backend
	if backend == "" {
		backend = BackendAuto
	}
	if !backend.IsValid() {
		return nil, fmt.Errorf("asr: backend must be auto, native or server, got %q", backend)
	}

	switch backend {
	case BackendNative:
		e, err := o.native(cfg)
		if err != nil {
			return nil, fmt.Errorf("asr: native backend (pinned): %w", err)
		}
		slog.Info("asr backend ready", "backend", "native")
		return e, nil

	case BackendServer:
		e, err := o.server(cfg)
		if err != nil {
			return nil, fmt.Errorf("asr: server backend (pinned): %w", err)
		}
		slog.Info("asr backend ready", "backend", "server")
		return e, nil
	}

	// Auto: native preferred, server as the fallback.
	e, nativeErr := o.native(cfg)
	if nativeErr == nil {
		slog.Info("asr backend ready", "backend", "native")
		return e, nil
	}
	slog.Warn("native asr init failed; falling back to server backend", "error", nativeErr)

	e, serverErr := o.server(cfg)
	if serverErr != nil {
		return nil, fmt.Errorf("asr: all backends failed: native: %v; server: %w",
			nativeErr, serverErr)
	}
	slog.Info("asr backend ready", "backend", "server")
	return e, nil
}

// Warmup transcribes d worth of synthetic silence so model and kernel
// initialisation cost is paid before the first real utterance. The outcome is
// non-fatal either way; the returned error is for logging only.
func Warmup(ctx context.Context, e Engine, d time.Duration, sampleRate int) error {
	if d <= 0 {
		return nil
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	n := int(float64(sampleRate) * d.Seconds())
	silence := make([]float32, n)

	start := time.Now()
	if _, err := e.Transcribe(ctx, silence); err != nil {
		return fmt.Errorf("asr: warmup: %w", err)
	}
	slog.Debug("asr warmup complete", "duration", d, "elapsed", time.Since(start))
	return nil
}
