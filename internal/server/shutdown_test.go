package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/efebarandurmaz/qre/internal/config"
)

func TestDefaultShutdownConfig(t *testing.T) {
	cfg := DefaultShutdownConfig()
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.Timeout)
	}
	if len(cfg.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(cfg.Signals))
	}
}

func TestNewShutdownHandler_Timeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  *ShutdownConfig
		want time.Duration
	}{
		{"nil config", nil, 30 * time.Second},
		{"explicit", &ShutdownConfig{Timeout: 10 * time.Second}, 10 * time.Second},
		{"zero", &ShutdownConfig{}, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewShutdownHandler(tt.cfg)
			if h.timeout != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, h.timeout)
			}
		})
	}
}

func TestShutdownHandler_HookPriority(t *testing.T) {
	h := NewShutdownHandler(nil)

	h.RegisterHook("low", 100, func(ctx context.Context) error { return nil })
	h.RegisterHook("high", 10, func(ctx context.Context) error { return nil })
	h.RegisterHook("mid", 50, func(ctx context.Context) error { return nil })
	h.RegisterHook("mid-2", 50, func(ctx context.Context) error { return nil })
	h.AddHook(TracingShutdownHook(func(ctx context.Context) error { return nil }))

	want := []string{"high", "mid", "mid-2", "tracing", "low"}
	for i, name := range want {
		if h.hooks[i].Name != name {
			t.Fatalf("hook %d: expected %s, got %s", i, name, h.hooks[i].Name)
		}
	}
}

func newTestShutdown() *ShutdownHandler {
	return NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})
}

func TestShutdownHandler_HookOrder(t *testing.T) {
	h := newTestShutdown()

	var order []int
	h.RegisterHook("third", 30, func(ctx context.Context) error {
		order = append(order, 3)
		return nil
	})
	h.RegisterHook("first", 10, func(ctx context.Context) error {
		order = append(order, 1)
		return nil
	})
	h.RegisterHook("second", 20, func(ctx context.Context) error {
		order = append(order, 2)
		return nil
	})

	h.Start()
	h.Shutdown()
	if !h.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown timed out")
	}

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected order [1 2 3], got %v", order)
	}
}

func TestShutdownHandler_HookWithError(t *testing.T) {
	var logs bytes.Buffer
	h := NewShutdownHandler(&ShutdownConfig{
		Timeout: 5 * time.Second,
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
	})

	var called bool
	h.RegisterHook("failing", 10, func(ctx context.Context) error {
		return errors.New("hook failed")
	})
	h.RegisterHook("after", 20, func(ctx context.Context) error {
		called = true
		return nil
	})

	h.Start()
	h.Shutdown()
	h.Wait()

	if !called {
		t.Fatal("expected second hook to run after the first failed")
	}
	if !strings.Contains(logs.String(), "hook=failing") {
		t.Fatalf("expected failure to be logged, got %q", logs.String())
	}
	if err := h.Err(); err == nil || !strings.Contains(err.Error(), "failing: hook failed") {
		t.Fatalf("expected joined hook error, got %v", err)
	}
}

func TestShutdownHandler_ShutdownCh(t *testing.T) {
	h := newTestShutdown()
	release := make(chan struct{})
	h.RegisterHook("blocking", 10, func(ctx context.Context) error {
		<-release
		return nil
	})

	h.Start()
	h.Shutdown()
	h.Shutdown() // second trigger is a no-op

	select {
	case <-h.ShutdownCh():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not start")
	}
	select {
	case <-h.Done():
		t.Fatal("done before hooks finished")
	default:
	}

	close(release)
	if !h.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown timed out")
	}
}

func TestShutdownHandler_WaitWithTimeout_Timeout(t *testing.T) {
	h := newTestShutdown()
	release := make(chan struct{})
	defer close(release)
	h.RegisterHook("slow", 10, func(ctx context.Context) error {
		<-release
		return nil
	})

	h.Start()
	h.Shutdown()

	if h.WaitWithTimeout(100 * time.Millisecond) {
		t.Fatal("expected timeout")
	}
}

func TestShutdownHandler_DoubleStart(t *testing.T) {
	h := NewShutdownHandler(nil)

	h.Start()
	h.Start() // Should not panic

	if !h.started {
		t.Fatal("expected started to be true")
	}
}

func TestShutdownHandler_ShutdownBeforeStart(t *testing.T) {
	h := NewShutdownHandler(nil)

	h.Shutdown()
	if h.WaitWithTimeout(50 * time.Millisecond) {
		t.Fatal("expected no shutdown before Start")
	}
}

func TestCommonHooks(t *testing.T) {
	var calls []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			calls = append(calls, name)
			return nil
		}
	}

	tests := []struct {
		hook     ShutdownHook
		name     string
		priority int
	}{
		{HTTPServerShutdownHook("api", record("api")), "api", 10},
		{TemporalWorkerShutdownHook(func() { calls = append(calls, "worker") }), "temporal-worker", 20},
		{TracingShutdownHook(record("tracing")), "tracing", 80},
		{AuditLoggerShutdownHook(func() error { return record("audit")(context.Background()) }), "audit-logger", 95},
	}
	for _, tt := range tests {
		if tt.hook.Name != tt.name {
			t.Errorf("expected name %s, got %s", tt.name, tt.hook.Name)
		}
		if tt.hook.Priority != tt.priority {
			t.Errorf("%s: expected priority %d, got %d", tt.name, tt.priority, tt.hook.Priority)
		}
		if err := tt.hook.Fn(context.Background()); err != nil {
			t.Errorf("%s: %v", tt.name, err)
		}
	}
	if len(calls) != 4 {
		t.Fatalf("expected 4 hook calls, got %v", calls)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	health := NewHealthServer(nil)
	shutdown := NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})
	api := NewAPI(Options{Health: health})
	srv := NewServer(config.Default().Server, api.Handler(), health, shutdown, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/ready"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	shutdown.Shutdown()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	if health.ready.Load() {
		t.Fatal("expected not ready after shutdown")
	}
}
