// Command voxident is the main entry point for the Voxident speaker
// recognition server.
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
	"syscall"
	"time"

	"github.com/voxident/voxident/internal/app"
	"github.com/voxident/voxident/internal/config"
	"github.com/voxident/voxident/internal/observe"
	"github.com/voxident/voxident/internal/resilience"
	"github.com/voxident/voxident/internal/server"
	"github.com/voxident/voxident/pkg/provider/extractor"
	"github.com/voxident/voxident/pkg/provider/extractor/resemble"
	"github.com/voxident/voxident/pkg/provider/transcoder"
	"github.com/voxident/voxident/pkg/provider/transcoder/ffmpeg"
	"github.com/voxident/voxident/pkg/provider/transcoder/pcmwav"
)

// version is set at build time via -ldflags.
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
			fmt.Fprintf(os.Stderr, "voxident: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxident: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("voxident starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxident",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, providers, app.WithLogger(logger))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if !diff.Any() {
			return
		}
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		application.ApplyConfigDiff(diff)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── HTTP server ───────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	srv := server.New(application,
		server.WithLogger(logger),
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	)
	srv.Register(mux)

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		if cfg.Server.TLS != nil {
			errCh <- httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			errCh <- httpServer.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}
	if err := application.Close(); err != nil {
		slog.Warn("application close error", "err", err)
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the provider factories that ship with
// Voxident into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterExtractor("resemble", func(entry config.ProviderEntry) (extractor.Provider, error) {
		var opts []resemble.Option
		if entry.Model != "" {
			opts = append(opts, resemble.WithModel(entry.Model))
		}
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, resemble.WithDimensions(dims))
		}
		if secs := optInt(entry.Options, "timeout_seconds"); secs > 0 {
			opts = append(opts, resemble.WithTimeout(time.Duration(secs)*time.Second))
		}
		return resemble.New(entry.BaseURL, opts...)
	})

	reg.RegisterTranscoder("ffmpeg", func(entry config.ProviderEntry) (transcoder.Provider, error) {
		var opts []ffmpeg.Option
		if bin := optString(entry.Options, "binary"); bin != "" {
			opts = append(opts, ffmpeg.WithBinary(bin))
		}
		return ffmpeg.New(opts...)
	})

	reg.RegisterTranscoder("pcmwav", func(entry config.ProviderEntry) (transcoder.Provider, error) {
		return pcmwav.New(), nil
	})
}

// buildProviders instantiates the providers named in cfg. The extractor may be
// wrapped in a circuit-breaking fallback chain when secondary encoder
// endpoints are configured.
func buildProviders(cfg *config.Config, reg *config.Registry) (app.Providers, error) {
	var ps app.Providers

	primary, err := reg.CreateExtractor(cfg.Providers.Extractor)
	if err != nil {
		return ps, fmt.Errorf("create extractor provider %q: %w", cfg.Providers.Extractor.Name, err)
	}
	slog.Info("provider created", "kind", "extractor", "name", cfg.Providers.Extractor.Name)
	ps.Extractor = primary

	if len(cfg.Providers.ExtractorFallbacks) > 0 {
		fallbacks := make([]extractor.Provider, 0, len(cfg.Providers.ExtractorFallbacks))
		names := make([]string, 0, len(cfg.Providers.ExtractorFallbacks))
		for _, entry := range cfg.Providers.ExtractorFallbacks {
			p, err := reg.CreateExtractor(entry)
			if err != nil {
				return ps, fmt.Errorf("create fallback extractor %q: %w", entry.Name, err)
			}
			fallbacks = append(fallbacks, p)
			names = append(names, entry.Name)
			slog.Info("provider created", "kind", "extractor", "name", entry.Name, "role", "fallback")
		}
		ps.Extractor = resilience.NewExtractorFallback(
			primary, cfg.Providers.Extractor.Name, resilience.Config{}, fallbacks, names)
	}

	tc, err := reg.CreateTranscoder(cfg.Providers.Transcoder)
	if err != nil {
		return ps, fmt.Errorf("create transcoder provider %q: %w", cfg.Providers.Transcoder.Name, err)
	}
	slog.Info("provider created", "kind", "transcoder", "name", cfg.Providers.Transcoder.Name)
	ps.Transcoder = tc

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Voxident — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Extractor", cfg.Providers.Extractor.Name, cfg.Providers.Extractor.Model)
	printProvider("Transcoder", cfg.Providers.Transcoder.Name, "")
	fmt.Printf("║  Fallbacks       : %-19d ║\n", len(cfg.Providers.ExtractorFallbacks))
	fmt.Printf("║  Registry        : %-19s ║\n", cfg.Registry.Backend)
	fmt.Printf("║  Required clips  : %-19d ║\n", cfg.Enrollment.RequiredClips)
	fmt.Printf("║  Threshold       : %-19.2f ║\n", cfg.Enrollment.SimilarityThreshold)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a provider Options map[string]any.
// YAML decodes integers as int; other types yield 0.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	n, _ := opts[key].(int)
	return n
}
