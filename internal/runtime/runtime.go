package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/lecsum/internal/bus"
	"github.com/loqalabs/lecsum/internal/config"
	"github.com/loqalabs/lecsum/internal/natsserver"
	"github.com/loqalabs/lecsum/internal/pipeline"
	"github.com/loqalabs/lecsum/internal/service"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	factory     pipeline.Factory
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	embedded *natsserver.EmbeddedServer
	bus      *bus.Client
	service  *service.Service

	bound      chan struct{}
	boundOnce  sync.Once
	listenAddr string
}

// New creates the daemon runtime. A nil factory selects engines from cfg.
func New(cfg config.Config, factory pipeline.Factory, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:     cfg,
		logger:  logger,
		factory: factory,
		bound:   make(chan struct{}),
	}
}

// Addr blocks until Start has bound the HTTP listener and returns its address.
// It returns "" when Start failed before binding.
func (r *Runtime) Addr() string {
	<-r.bound
	return r.listenAddr
}

func (r *Runtime) markBound(addr string) {
	r.boundOnce.Do(func() {
		r.listenAddr = addr
		close(r.bound)
	})
}

// abort releases what Start acquired before the HTTP server was running.
func (r *Runtime) abort(err error) error {
	r.stopBus()
	if r.tracerClose != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if closeErr := r.tracerClose(shutdownCtx); closeErr != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", closeErr.Error()))
		}
		r.tracerClose = nil
	}
	return err
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer r.markBound("")

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if err := r.startBus(ctx); err != nil {
		return r.abort(err)
	}

	opts := pipeline.Options{Factory: r.factory}
	if r.bus != nil {
		opts.Notifier = r.bus
	}
	runner := pipeline.New(r.cfg, opts, r.logger)

	if r.bus != nil {
		r.service = service.New(ctx, r.bus.Conn(), runner, r.cfg.Settings, r.logger)
		if err := r.service.Start(); err != nil {
			return r.abort(err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.Handle("POST /summarize", summarizeHandler(runner, r.cfg.Settings, r.logger))
	if metricsHandler != nil && r.cfg.Telemetry.MetricsPath != "" {
		mux.Handle(r.cfg.Telemetry.MetricsPath, metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return r.abort(fmt.Errorf("listen on %s: %w", addr, err))
	}
	r.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.markBound(listener.Addr().String())
	r.logger.Info("runtime started",
		slog.String("addr", listener.Addr().String()),
		slog.String("whisper_model", r.cfg.WhisperModel),
		slog.String("ollama_model", r.cfg.OllamaModel))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()
	r.stopBus()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) startBus(ctx context.Context) error {
	if !r.cfg.Bus.Enabled {
		return nil
	}
	busCfg := r.cfg.Bus
	embedded, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return err
	}
	r.embedded = embedded
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return err
	}
	r.bus = client
	return nil
}

func (r *Runtime) stopBus() {
	if r.service != nil {
		r.service.Close()
		r.service = nil
	}
	if r.bus != nil {
		r.bus.Close()
		r.bus = nil
	}
	if r.embedded != nil {
		r.embedded.Shutdown()
		r.embedded = nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	busReady := !r.cfg.Bus.Enabled || (r.bus.Healthy() && r.service != nil && r.service.Healthy())
	if r.ready.Load() && busReady {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
