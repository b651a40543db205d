// Package app wires all voxhook subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New creates and connects the
// capture, segmentation, transcription, matching and control-plane
// subsystems, Run executes the pipeline loops, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithSource, WithRunner, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxhook/voxhook/internal/config"
	"github.com/voxhook/voxhook/internal/control"
	"github.com/voxhook/voxhook/internal/dispatch"
	"github.com/voxhook/voxhook/internal/gate"
	"github.com/voxhook/voxhook/internal/health"
	"github.com/voxhook/voxhook/internal/match"
	"github.com/voxhook/voxhook/internal/observe"
	"github.com/voxhook/voxhook/internal/segment"
	"github.com/voxhook/voxhook/pkg/asr"
	"github.com/voxhook/voxhook/pkg/audio"
	malgocapture "github.com/voxhook/voxhook/pkg/audio/malgo"
	"github.com/voxhook/voxhook/pkg/vad"
	"github.com/voxhook/voxhook/pkg/vad/energy"
)

// segmentQueueSize bounds the utterance queue between the frame loop and
// the segment worker. Segments arrive at speech cadence, so a short queue
// absorbs ASR latency spikes without hoarding stale audio.
const segmentQueueSize = 8

// audioStaleAfter is how long the readiness probe tolerates not seeing a
// capture frame before reporting the audio stream unhealthy.
const audioStaleAfter = 2 * time.Second

// App owns all subsystem lifetimes and orchestrates the trigger pipeline.
type App struct {
	cfg     *config.Config
	engine  asr.Engine
	gate    *gate.Gate
	seg     *segment.Segmenter
	segCfg  segment.Config
	matcher *match.Matcher
	metrics *observe.Metrics

	// Injectable collaborators.
	source   audio.Source
	detector vad.Detector
	runner   dispatch.Runner

	// Control plane — either may be nil when disabled or bind failed.
	listener *control.Listener
	notifier *control.Notifier

	segments  chan *segment.Segment
	lastFrame atomic.Int64 // unix nanos of the newest capture frame

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects an audio source instead of opening the capture device.
func WithSource(s audio.Source) Option {
	return func(a *App) { a.source = s }
}

// WithDetector injects a VAD detector instead of the built-in energy one.
func WithDetector(d vad.Detector) Option {
	return func(a *App) { a.detector = d }
}

// WithRunner injects a command runner instead of the shell runner.
func WithRunner(r dispatch.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithMetrics injects a metrics instance instead of the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithNotifier injects an outbound trigger notifier.
func WithNotifier(n *control.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// New creates an App by wiring all subsystems together. engine is the
// transcription backend selected by the caller (see [asr.Open]); the App
// takes ownership and closes it during Shutdown.
func New(cfg *config.Config, engine asr.Engine, opts ...Option) (*App, error) {
	if engine == nil {
		return nil, errors.New("app: nil ASR engine")
	}

	a := &App{
		cfg:      cfg,
		engine:   engine,
		gate:     gate.New(),
		segments: make(chan *segment.Segment, segmentQueueSize),
	}
	for _, o := range opts {
		o(a)
	}
	a.closers = append(a.closers, engine.Close)

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── Matcher ──────────────────────────────────────────────────────────
	a.matcher = match.New(cfg.Triggers,
		match.WithThreshold(cfg.Matcher.Threshold),
		match.WithCooldown(cfg.Matcher.Cooldown()),
		match.WithMinChars(cfg.Matcher.MinChars),
	)
	slog.Info("trigger table loaded", "phrases", len(a.matcher.Phrases()))

	// ── Segmenter ────────────────────────────────────────────────────────
	if a.detector == nil {
		det, err := energy.New(cfg.VAD.Aggressiveness)
		if err != nil {
			return nil, fmt.Errorf("app: init vad: %w", err)
		}
		a.detector = det
	}
	a.segCfg = segment.Config{
		SampleRate: cfg.Audio.SampleRate,
		FrameMs:    cfg.Audio.FrameMs,
		MaxSegment: cfg.Segmenter.MaxSegment(),
		MinSpeech:  cfg.Segmenter.MinSpeech(),
		SpeechPad:  cfg.Segmenter.SpeechPad(),
	}
	seg, err := segment.New(a.segCfg, a.detector)
	if err != nil {
		return nil, fmt.Errorf("app: init segmenter: %w", err)
	}
	a.seg = seg

	// ── Audio source ─────────────────────────────────────────────────────
	if a.source == nil {
		a.source = malgocapture.New(audio.Config{
			SampleRate: cfg.Audio.SampleRate,
			FrameMs:    cfg.Audio.FrameMs,
			Device:     cfg.Audio.Device,
			QueueSize:  cfg.Audio.QueueSize,
		})
	}
	a.closers = append(a.closers, func() error { return a.source.Close() })

	// ── Dispatcher ───────────────────────────────────────────────────────
	if a.runner == nil {
		a.runner = &dispatch.ShellRunner{}
	}

	// ── Control plane ────────────────────────────────────────────────────
	if cfg.Control.Enabled {
		listener, err := control.Listen(cfg.Control.ListenAddr, a.controlHandler(),
			control.WithToken(cfg.Control.Token),
			control.WithAllowCmd(cfg.Control.AllowCmd),
			control.WithObserver(func(verb control.Verb, status control.Status) {
				a.metrics.RecordControlMessage(context.Background(), string(verb), string(status))
			}),
		)
		if err != nil {
			// The pipeline is the primary function; remote control is
			// auxiliary and must not prevent startup.
			slog.Error("control plane unavailable", "error", err)
		} else {
			a.listener = listener
		}
	}
	if a.notifier == nil && cfg.Control.NotifyAddr != "" {
		notifier, err := control.Dial(cfg.Control.NotifyAddr, cfg.Control.Token)
		if err != nil {
			slog.Error("trigger notifications unavailable", "error", err)
		} else {
			a.notifier = notifier
		}
	}
	if a.notifier != nil {
		a.closers = append(a.closers, a.notifier.Close)
	}

	return a, nil
}

// Listening reports the gate state.
func (a *App) Listening() bool {
	return a.gate.Listening()
}

// Run starts the capture stream and all pipeline loops, blocking until ctx
// is cancelled or a loop fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.source.Start(ctx); err != nil {
		return fmt.Errorf("app: start capture: %w", err)
	}
	a.metrics.SetListening(ctx, true)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.frameLoop(ctx) })
	g.Go(func() error { return a.segmentWorker(ctx) })
	if a.listener != nil {
		g.Go(func() error { return a.listener.Run(ctx) })
	}
	if a.cfg.Server.MetricsAddr != "" {
		g.Go(func() error { return a.serveTelemetry(ctx) })
	}

	slog.Info("pipeline running",
		"sample_rate", a.cfg.Audio.SampleRate,
		"frame_ms", a.cfg.Audio.FrameMs,
		"control", a.listener != nil,
	)

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// frameLoop drains capture frames through the segmenter. While paused,
// frames are still drained but discarded, and any partial utterance is
// dropped.
func (a *App) frameLoop(ctx context.Context) error {
	frames := a.source.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return errors.New("app: audio stream closed")
			}
			a.lastFrame.Store(time.Now().UnixNano())
			a.metrics.FramesProcessed.Add(ctx, 1)

			if !a.gate.Listening() {
				a.metrics.FramesDropped.Add(ctx, 1)
				a.seg.Reset()
				continue
			}

			seg, _, err := a.seg.ProcessFrame(frame)
			if err != nil {
				slog.Warn("segmenter rejected frame", "error", err)
				continue
			}
			if seg == nil {
				continue
			}
			a.metrics.SegmentsEmitted.Add(ctx, 1)
			select {
			case a.segments <- seg:
			default:
				slog.Warn("segment queue full, dropping utterance",
					"frames", seg.Frames)
				a.metrics.RecordSegmentSkipped(ctx, "queue_full")
			}
		}
	}
}

// segmentWorker drains utterance segments through transcription, matching
// and dispatch.
func (a *App) segmentWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seg := <-a.segments:
			a.processSegment(ctx, seg)
		}
	}
}

// processSegment runs the transcribe → match → dispatch path for one
// utterance.
func (a *App) processSegment(ctx context.Context, seg *segment.Segment) {
	// Pausing mid-utterance discards everything already queued.
	if !a.gate.Listening() {
		a.metrics.RecordSegmentSkipped(ctx, "paused")
		return
	}
	if seg.Frames < a.seg.MinFrames() {
		a.metrics.RecordSegmentSkipped(ctx, "too_short")
		return
	}

	ctx, span := observe.StartSpan(ctx, "process_segment")
	defer span.End()

	a.metrics.SegmentDuration.Record(ctx, seg.Duration(a.segCfg).Seconds())

	samples := audio.PCM16ToFloat32(seg.PCM)
	res, err := a.engine.Transcribe(ctx, samples)
	if err != nil {
		observe.Logger(ctx).Error("transcription failed", "error", err)
		a.metrics.RecordSegmentSkipped(ctx, "asr_error")
		return
	}
	a.metrics.ASRDuration.Record(ctx, res.Elapsed.Seconds())

	text := strings.TrimSpace(res.Text)
	if text == "" {
		a.metrics.RecordSegmentSkipped(ctx, "empty_transcript")
		return
	}
	observe.Logger(ctx).Debug("transcript",
		"text", text,
		"elapsed", res.Elapsed,
	)

	m, ok := a.matcher.Match(text)
	if !ok {
		reason := "below_threshold"
		if m.Score >= a.cfg.Matcher.Threshold {
			reason = "cooldown"
		}
		a.metrics.RecordMatchRejected(ctx, reason)
		observe.Logger(ctx).Debug("no trigger matched",
			"best_phrase", m.Phrase,
			"best_score", m.Score,
		)
		return
	}
	a.fire(ctx, m, "audio")
}

// fire dispatches a matched trigger and notifies the remote peer.
func (a *App) fire(ctx context.Context, res match.Result, source string) {
	slog.Info("trigger fired",
		"phrase", res.Phrase,
		"score", res.Score,
		"source", source,
	)
	a.metrics.RecordTriggerMatch(ctx, res.Phrase, source)

	if err := a.runner.Dispatch(res.Command); err != nil {
		slog.Error("trigger command failed to start", "phrase", res.Phrase, "error", err)
		a.metrics.DispatchErrors.Add(ctx, 1)
	}
	if a.notifier != nil {
		a.notifier.TriggerFired(res.Phrase)
	}
}

// controlHandler adapts the App to the control-plane [control.Handler]
// contract.
func (a *App) controlHandler() control.Handler {
	return &ctrlHandler{app: a}
}

type ctrlHandler struct {
	app *App
}

func (h *ctrlHandler) Pause() {
	if h.app.gate.Pause() {
		h.app.metrics.SetListening(context.Background(), false)
	}
}

func (h *ctrlHandler) Resume() {
	if h.app.gate.Resume() {
		h.app.metrics.SetListening(context.Background(), true)
	}
}

// Trigger fires a phrase's command directly. This path deliberately skips
// the matcher cooldown: remote triggers are presumed intentional.
func (h *ctrlHandler) Trigger(phrase string) {
	command, ok := h.app.matcher.Lookup(phrase)
	if !ok {
		slog.Debug("remote trigger for unknown phrase", "phrase", phrase)
		return
	}
	h.app.fire(context.Background(), match.Result{
		Phrase:  match.Normalize(phrase),
		Command: command,
		Score:   100,
	}, "remote")
}

func (h *ctrlHandler) Command(shell string) {
	if err := h.app.runner.Dispatch(shell); err != nil {
		slog.Error("remote command failed to start", "error", err)
		h.app.metrics.DispatchErrors.Add(context.Background(), 1)
	}
}

// serveTelemetry exposes /metrics, /healthz and /readyz until ctx is done.
func (a *App) serveTelemetry(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(a.gate.Listening, a.healthCheckers()...).Register(mux)

	srv := &http.Server{Addr: a.cfg.Server.MetricsAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("telemetry endpoint listening", "addr", a.cfg.Server.MetricsAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: telemetry server: %w", err)
	}
}

// healthCheckers builds the readiness probes for the telemetry endpoint.
func (a *App) healthCheckers() []health.Checker {
	return []health.Checker{
		{Name: "audio", Check: func(context.Context) error {
			last := a.lastFrame.Load()
			if last == 0 {
				return errors.New("no capture frames received yet")
			}
			if age := time.Since(time.Unix(0, last)); age > audioStaleAfter {
				return fmt.Errorf("no capture frames for %s", age.Round(time.Millisecond))
			}
			return nil
		}},
		{Name: "control", Check: func(context.Context) error {
			if a.cfg.Control.Enabled && a.listener == nil {
				return errors.New("control plane enabled but not bound")
			}
			return nil
		}},
	}
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers
// are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
