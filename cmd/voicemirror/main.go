// Command voicemirror is the real-time vocal formant trainer: it captures
// microphone audio, estimates formant frequencies, and displays them against
// a target profile with coaching hints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicemirror/voicemirror/internal/app"
	"github.com/voicemirror/voicemirror/internal/config"
	"github.com/voicemirror/voicemirror/internal/health"
	"github.com/voicemirror/voicemirror/internal/observe"
	sinks "github.com/voicemirror/voicemirror/internal/render"
	"github.com/voicemirror/voicemirror/pkg/audio"
	"github.com/voicemirror/voicemirror/pkg/audio/portaudio"
	"github.com/voicemirror/voicemirror/pkg/audio/synth"
	"github.com/voicemirror/voicemirror/pkg/formant"
	"github.com/voicemirror/voicemirror/pkg/render"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (empty: built-in defaults)")
	preset := flag.String("preset", "", "target profile preset, overrides the config (one of: "+strings.Join(formant.PresetNames(), ", ")+")")
	listDevices := flag.Bool("list-devices", false, "list audio input devices and exit")
	flag.Parse()

	// ── Device listing ────────────────────────────────────────────────────────
	if *listDevices {
		return printDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	var cfg *config.Config
	if *configPath == "" {
		cfg = config.Default()
	} else {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "voicemirror: %v\n", err)
			return 1
		}
	}
	if *preset != "" {
		cfg.Target = config.TargetConfig{Preset: *preset}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicemirror starting",
		"config", *configPath,
		"source", cfg.Audio.Source,
		"sink", cfg.Render.Sink,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	if cfg.Server.MetricsAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()
	}
	metrics := observe.DefaultMetrics()

	// ── Adapter registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinAdapters(reg)

	profile, err := cfg.Profile()
	if err != nil {
		slog.Error("failed to build target profile", "err", err)
		return 1
	}
	source, err := reg.CreateSource(cfg.Audio)
	if err != nil {
		slog.Error("failed to create capture source", "err", err)
		return 1
	}
	sink, err := reg.CreateSink(cfg.Render)
	if err != nil {
		slog.Error("failed to create render sink", "err", err)
		return 1
	}

	session, err := app.NewSession(cfg, source, sink, profile, metrics)
	if err != nil {
		slog.Error("failed to initialise session", "err", err)
		return 1
	}

	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr, session)
	}

	slog.Info("session ready — press Ctrl+C to stop", "profile", profile.Name())

	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("session error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinAdapters wires the capture sources and render sinks that
// ship with voicemirror into reg.
func registerBuiltinAdapters(reg *config.Registry) {
	reg.RegisterSource("portaudio", func(cfg config.AudioConfig) (audio.Source, error) {
		return portaudio.New(portaudio.Config{
			DeviceID:   cfg.Device,
			SampleRate: cfg.SampleRate,
			BlockSize:  cfg.BlockSize,
			QueueDepth: cfg.QueueDepth,
		})
	})

	// The synthetic source exists for demos and for running the full
	// pipeline on machines without audio hardware. It hums a neutral vowel.
	reg.RegisterSource("synth", func(cfg config.AudioConfig) (audio.Source, error) {
		return synth.New(synth.Config{
			SampleRate: cfg.SampleRate,
			BlockSize:  cfg.BlockSize,
			QueueDepth: cfg.QueueDepth,
			Generator: synth.GeneratorConfig{
				Amplitude: 0.5,
				Resonances: []synth.Resonance{
					{FrequencyHz: 550, BandwidthHz: 80},
					{FrequencyHz: 1700, BandwidthHz: 100},
					{FrequencyHz: 2700, BandwidthHz: 140},
				},
			},
		})
	})

	reg.RegisterSink("terminal", func(cfg config.RenderConfig) (render.Sink, error) {
		return sinks.NewTerminal(sinks.TerminalConfig{Waveform: cfg.Waveform}), nil
	})

	reg.RegisterSink("null", func(cfg config.RenderConfig) (render.Sink, error) {
		return sinks.NewNull(), nil
	})
}

// printDevices lists the available audio input devices on stdout.
func printDevices() int {
	devices, err := portaudio.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicemirror: list devices: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no audio input devices found")
		return 0
	}
	fmt.Println("available audio input devices:")
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("%s %3d  %s  (%d ch, %.0f Hz)\n",
			marker, d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	fmt.Println("\n* default device; select with audio.device in the config")
	return 0
}

// serveMetrics exposes the Prometheus scrape endpoint plus liveness and
// readiness probes for the session.
func serveMetrics(addr string, session *app.Session) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(health.SessionChecker(session.Latest)).Register(mux)
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics endpoint failed", "err", err)
	}
}

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
