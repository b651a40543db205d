// Command voxhook is the voice trigger daemon: it listens on a microphone,
// segments speech, transcribes utterances with whisper.cpp, fuzzily matches
// them against a phrase table and runs the matching shell commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxhook/voxhook/internal/app"
	"github.com/voxhook/voxhook/internal/config"
	"github.com/voxhook/voxhook/internal/observe"
	"github.com/voxhook/voxhook/pkg/asr"
	"github.com/voxhook/voxhook/pkg/asr/whisper"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxhook: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxhook: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxhook starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxhook",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── ASR engine ────────────────────────────────────────────────────────────
	engine, err := asr.Open(asr.Config{
		Backend:    asr.Backend(cfg.ASR.Backend),
		ModelPath:  cfg.ASR.Model,
		ServerURL:  cfg.ASR.ServerURL,
		Language:   cfg.ASR.Language,
		Threads:    cfg.ASR.Threads,
		SampleRate: cfg.Audio.SampleRate,
	}, whisper.NativeFactory, whisper.ServerFactory)
	if err != nil {
		slog.Error("failed to open ASR engine", "err", err)
		return 1
	}

	if warmup := time.Duration(cfg.ASR.WarmupSec * float64(time.Second)); warmup > 0 {
		if err := asr.Warmup(ctx, engine, warmup, cfg.Audio.SampleRate); err != nil {
			slog.Warn("asr warmup failed", "err", err)
		}
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, engine)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		_ = engine.Close()
		return 1
	}

	slog.Info("daemon ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         voxhook — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Audio", fmt.Sprintf("%d Hz / %d ms", cfg.Audio.SampleRate, cfg.Audio.FrameMs))
	printRow("ASR backend", cfg.ASR.Backend)
	printRow("Language", cfg.ASR.Language)
	printRow("Triggers", fmt.Sprintf("%d phrases", len(cfg.Triggers)))
	printRow("Threshold", fmt.Sprintf("%.0f / cooldown %.1fs", cfg.Matcher.Threshold, cfg.Matcher.CooldownSec))
	if cfg.Control.Enabled {
		printRow("Control", cfg.Control.ListenAddr)
	} else {
		printRow("Control", "(disabled)")
	}
	if cfg.Server.MetricsAddr != "" {
		printRow("Telemetry", cfg.Server.MetricsAddr)
	} else {
		printRow("Telemetry", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(name, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
