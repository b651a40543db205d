// This file contains the native Engine implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxhook/voxhook/pkg/asr"
)

// Compile-time assertion that Native satisfies asr.Engine.
var _ asr.Engine = (*Native)(nil)

// Native is an in-process whisper.cpp transcription engine. The model is
// loaded once at construction and shared across calls; each Transcribe uses a
// fresh whisper context, so no state is carried between utterances.
type Native struct {
	model    whisperlib.Model
	language string
	threads  int
}

// NativeOption is a functional option for configuring a Native engine.
type NativeOption func(*Native)

// WithLanguage sets the language hint (e.g. "en"). Empty lets the model
// auto-detect.
func WithLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// WithThreads sets the CPU thread count for inference. Zero keeps the
// binding's default.
func WithThreads(threads int) NativeOption {
	return func(n *Native) { n.threads = threads }
}

// NewNative loads the whisper.cpp model from modelPath. The caller must call
// Close when the engine is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	n := &Native{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// NativeFactory adapts NewNative to the [asr.Factory] signature used by
// asr.Open.
func NativeFactory(cfg asr.Config) (asr.Engine, error) {
	var opts []NativeOption
	if cfg.Language != "" {
		opts = append(opts, WithLanguage(cfg.Language))
	}
	if cfg.Threads > 0 {
		opts = append(opts, WithThreads(cfg.Threads))
	}
	return NewNative(cfg.ModelPath, opts...)
}

// Transcribe runs whisper.cpp inference over one utterance. A new whisper
// context is created per call; contexts are not thread-safe but the model may
// be shared, so concurrent calls are permitted.
func (n *Native) Transcribe(ctx context.Context, samples []float32) (asr.Result, error) {
	if err := ctx.Err(); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	wctx, err := n.model.NewContext()
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if n.language != "" {
		if err := wctx.SetLanguage(n.language); err != nil {
			slog.Warn("whisper: failed to set language, using default",
				"language", n.language, "error", err)
		}
	}
	if n.threads > 0 {
		wctx.SetThreads(uint(n.threads))
	}

	start := time.Now()
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return asr.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return asr.Result{
		Text:    strings.Join(parts, " "),
		Elapsed: time.Since(start),
	}, nil
}

// Close releases the whisper model. Safe to call more than once.
func (n *Native) Close() error {
	if n.model != nil {
		err := n.model.Close()
		n.model = nil
		return err
	}
	return nil
}
