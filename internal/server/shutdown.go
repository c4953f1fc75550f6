package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/efebarandurmaz/qre/internal/config"
)

// Priorities of the prepared hooks. Lower runs first.
const (
	priorityHTTPServer     = 10
	priorityTemporalWorker = 20
	priorityTracing        = 80
	priorityAuditLog       = 95

	defaultShutdownTimeout = 30 * time.Second
)

// ShutdownHandler runs registered hooks once, in priority order, when a
// signal arrives or Shutdown is called.
type ShutdownHandler struct {
	mu      sync.Mutex
	hooks   []ShutdownHook
	started bool
	err     error

	timeout time.Duration
	signals []os.Signal
	logger  *slog.Logger

	trigger  chan struct{}
	stopping chan struct{}
	done     chan struct{}
	once     sync.Once
}

type ShutdownHook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

type ShutdownConfig struct {
	// Timeout bounds all hooks together. Zero means 30s.
	Timeout time.Duration
	// Signals start the shutdown. None means only Shutdown does.
	Signals []os.Signal
	Logger  *slog.Logger
}

// DefaultShutdownConfig listens for SIGTERM and SIGINT.
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: defaultShutdownTimeout,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
	}
}

func NewShutdownHandler(cfg *ShutdownConfig) *ShutdownHandler {
	if cfg == nil {
		cfg = DefaultShutdownConfig()
	}
	h := &ShutdownHandler{
		timeout:  cfg.Timeout,
		signals:  cfg.Signals,
		logger:   cfg.Logger,
		trigger:  make(chan struct{}),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
	if h.timeout <= 0 {
		h.timeout = defaultShutdownTimeout
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

// RegisterHook adds fn under name. Hooks of equal priority run in the order
// they were added.
func (h *ShutdownHandler) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	h.AddHook(ShutdownHook{Name: name, Priority: priority, Fn: fn})
}

func (h *ShutdownHandler) AddHook(hook ShutdownHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
	slices.SortStableFunc(h.hooks, func(a, b ShutdownHook) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
}

// Start arms the handler. Calling it again does nothing.
func (h *ShutdownHandler) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return
	}
	h.started = true

	sigCh := make(chan os.Signal, 1)
	if len(h.signals) > 0 {
		signal.Notify(sigCh, h.signals...)
	}
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			h.logger.Info("shutdown signal received", "signal", sig.String())
		case <-h.trigger:
		}
		h.run()
	}()
}

// Shutdown starts the hooks without a signal. Before Start it does nothing.
func (h *ShutdownHandler) Shutdown() {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if started {
		h.once.Do(func() { close(h.trigger) })
	}
}

func (h *ShutdownHandler) Wait() { <-h.done }

// WaitWithTimeout reports whether the hooks finished within timeout.
func (h *ShutdownHandler) WaitWithTimeout(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-h.done:
		return true
	case <-t.C:
		return false
	}
}

// Done is closed once every hook has returned.
func (h *ShutdownHandler) Done() <-chan struct{} { return h.done }

// ShutdownCh is closed as soon as shutdown begins.
func (h *ShutdownHandler) ShutdownCh() <-chan struct{} { return h.stopping }

// Err joins the errors of the hooks that failed. It is nil until Done is
// closed.
func (h *ShutdownHandler) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// run executes every hook under one shared deadline. A failed hook is
// logged and the rest still run.
func (h *ShutdownHandler) run() {
	close(h.stopping)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := slices.Clone(h.hooks)
	h.mu.Unlock()

	var failed []error
	for _, hook := range hooks {
		start := time.Now()
		if err := hook.Fn(ctx); err != nil {
			h.logger.Error("shutdown hook failed", "hook", hook.Name, "error", err)
			failed = append(failed, fmt.Errorf("%s: %w", hook.Name, err))
			continue
		}
		h.logger.Debug("shutdown hook done", "hook", hook.Name, "duration", time.Since(start))
	}
	h.err = errors.Join(failed...)
	close(h.done)
}

// HTTPServerShutdownHook drains an HTTP server before the other hooks run.
func HTTPServerShutdownHook(name string, shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{Name: name, Priority: priorityHTTPServer, Fn: shutdownFn}
}

// TemporalWorkerShutdownHook stops a Temporal worker. stopFn blocks until
// in-flight activities return.
func TemporalWorkerShutdownHook(stopFn func()) ShutdownHook {
	return ShutdownHook{Name: "temporal-worker", Priority: priorityTemporalWorker, Fn: func(context.Context) error {
		stopFn()
		return nil
	}}
}

func TracingShutdownHook(shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{Name: "tracing", Priority: priorityTracing, Fn: shutdownFn}
}

// AuditLoggerShutdownHook closes the audit log last so it sees the other
// hooks' events.
func AuditLoggerShutdownHook(closeFn func() error) ShutdownHook {
	return ShutdownHook{Name: "audit-logger", Priority: priorityAuditLog, Fn: func(context.Context) error {
		return closeFn()
	}}
}

// Server runs the API with health endpoints and graceful shutdown.
type Server struct {
	Health   *HealthServer
	Shutdown *ShutdownHandler
	http     *http.Server
	logger   *slog.Logger
}

// NewServer wires handler into an HTTP server configured by cfg. Shutdown
// first marks the server not ready and then drains the HTTP server.
func NewServer(cfg config.ServerConfig, handler http.Handler, health *HealthServer, shutdown *ShutdownHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	shutdown.RegisterHook("readiness", 0, func(context.Context) error {
		health.SetReady(false)
		return nil
	})
	shutdown.AddHook(HTTPServerShutdownHook("http-server", srv.Shutdown))

	return &Server{Health: health, Shutdown: shutdown, http: srv, logger: logger}
}

// ListenAndServe listens on the configured address and serves until
// shutdown completes.
func (s *Server) ListenAndServe() error {
	addr := s.http.Addr
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until shutdown completes. A serve failure triggers the
// shutdown hooks before it is returned.
func (s *Server) Serve(ln net.Listener) error {
	s.Shutdown.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()
	s.Health.SetReady(true)
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if !isClosed(err) {
			s.logger.Error("server failed", "error", err)
			s.Shutdown.Shutdown()
			s.Shutdown.Wait()
			return err
		}
	case <-s.Shutdown.Done():
	}
	s.Shutdown.Wait()
	s.logger.Info("server stopped")
	return nil
}

// isClosed reports whether err only says the server was shut down.
func isClosed(err error) bool {
	return err == nil || errors.Is(err, http.ErrServerClosed)
}
