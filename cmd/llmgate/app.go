package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/llmgate/internal/config"
	"github.com/MrWong99/llmgate/internal/health"
	"github.com/MrWong99/llmgate/internal/observe"
	"github.com/MrWong99/llmgate/internal/resilience"
	"github.com/MrWong99/llmgate/pkg/llm"
)

// app holds process-wide state shared by the commands. Configuration and
// backends are built lazily so that "doctor" can report a broken setup
// instead of failing before it runs.
type app struct {
	// Persistent flags.
	logLevel    string
	metricsAddr string
	configPath  string

	metrics *observe.Metrics
	closers []func(context.Context) error

	cfgOnce sync.Once
	cfg     *config.Config
	cfgErr  error

	clientsOnce sync.Once
	clients     *config.Clients
	clientsErr  error
}

// start installs the logger and telemetry and, when requested, the metrics
// and health endpoints.
func (a *app) start(ctx context.Context) error {
	level := config.LogLevel(a.logLevel)
	if a.logLevel != "" && !level.IsValid() {
		return fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", a.logLevel)
	}
	if a.logLevel == "" {
		level = config.LogInfo
	}
	slog.SetDefault(newLogger(level))

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)
	a.metrics = observe.DefaultMetrics()

	if a.metricsAddr != "" {
		if err := a.serveMetrics(); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) serveMetrics() error {
	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.metricsAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(health.Checker{Name: "config", Check: func(context.Context) error {
		_, err := a.config()
		return err
	}}).Register(mux)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "err", err)
		}
	}()
	slog.Info("metrics server listening", "addr", ln.Addr().String())
	a.closers = append(a.closers, srv.Shutdown)
	return nil
}

// config loads the configuration once. Unless --log-level was given, the
// logger is rebuilt at the configured level.
func (a *app) config() (*config.Config, error) {
	a.cfgOnce.Do(func() {
		a.cfg, a.cfgErr = config.Load(config.LoadOptions{FilePath: a.configPath})
		if a.cfgErr != nil {
			return
		}
		if a.logLevel == "" {
			slog.SetDefault(newLogger(a.cfg.EffectiveLogLevel()))
		}
		if err := a.cfg.ApplyPrices(); err != nil {
			a.cfgErr = err
		}
	})
	return a.cfg, a.cfgErr
}

// backend builds the configured backend once, with its HTTP traffic routed
// through the tracing transport.
func (a *app) backend() (*config.Clients, error) {
	a.clientsOnce.Do(func() {
		cfg, err := a.config()
		if err != nil {
			a.clientsErr = err
			return
		}
		a.clients, a.clientsErr = newRegistry().Create(cfg, observe.Client(a.metrics))
	})
	return a.clients, a.clientsErr
}

// instrumented returns the backend completer wrapped with metrics and
// tracing. Requests keep the model they ask for.
func (a *app) instrumented() (*observe.Completer, error) {
	clients, err := a.backend()
	if err != nil {
		return nil, err
	}
	return observe.Instrument(clients.Completer, string(a.cfg.Backend), a.metrics), nil
}

// completer returns the instrumented completer. With fallback models, calls
// that fail on primary move on to the next model, and the request's own
// model is replaced by the fallback chain.
func (a *app) completer(primary string, fallbacks []string) (llm.Completer, error) {
	c, err := a.instrumented()
	if err != nil {
		return nil, err
	}
	cfg := a.cfg
	if len(fallbacks) == 0 {
		fallbacks = cfg.File.FallbackModels
	}
	if len(fallbacks) == 0 {
		return c, nil
	}
	if primary == "" {
		primary = cfg.Models.Default
	}
	fb, err := resilience.NewModelFallback(c, primary, fallbacks, resilience.FallbackConfig{})
	if err != nil {
		return nil, err
	}
	slog.Debug("model fallback enabled", "models", fb.Models())
	return fb, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}
}
