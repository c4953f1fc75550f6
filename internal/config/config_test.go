package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidate_Default(t *testing.T) {
	warnings := Default().Validate()
	if len(warnings) != 0 {
		t.Errorf("default config should have no warnings, got %v", warnings)
	}
}

func TestValidate_Warnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"budget", func(c *Config) { c.Estimation.ErrorBudget = 1.5 }, "error_budget"},
		{"rounds", func(c *Config) { c.Estimation.MaxRounds = -1 }, "max_rounds"},
		{"concurrency", func(c *Config) { c.Estimation.BatchConcurrency = -2 }, "batch_concurrency"},
		{"sample_rate", func(c *Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
		{"log_format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"addr", func(c *Config) { c.Server.Addr = "" }, "addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			found := false
			for _, w := range cfg.Validate() {
				if strings.Contains(w, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected a warning mentioning %q", tt.want)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := Default()
	if cfg.Estimation != d.Estimation || cfg.Server != d.Server || cfg.Log != d.Log {
		t.Errorf("Load = %+v, want defaults %+v", cfg, d)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Temporal.TaskQueue != "qre-estimation" {
		t.Errorf("task queue = %q", cfg.Temporal.TaskQueue)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qre.yaml")
	content := `
estimation:
  qubit: qubit_maj_ns_e6
  error_budget: 0.01
  optimize: qubits
server:
  addr: ":9090"
  read_timeout: 5s
log:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Estimation.Qubit != "qubit_maj_ns_e6" || cfg.Estimation.ErrorBudget != 0.01 || cfg.Estimation.Optimize != "qubits" {
		t.Errorf("estimation = %+v", cfg.Estimation)
	}
	if cfg.Estimation.QecScheme != "surface_code" {
		t.Errorf("unset key lost its default: %q", cfg.Estimation.QecScheme)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %q", cfg.Log.Format)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("QRE_ESTIMATION_QUBIT", "qubit_gate_us_e4")
	t.Setenv("QRE_SERVER_ADDR", ":7070")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Estimation.Qubit != "qubit_gate_us_e4" || cfg.Server.Addr != ":7070" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Estimation, cfg.Server)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("estimation: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected malformed config to fail")
	}
}

func TestJobDefaults(t *testing.T) {
	d := Default().Estimation.JobDefaults()
	if d.Qubit != "qubit_gate_ns_e3" || d.QecScheme != "surface_code" || d.ErrorBudget != 1e-3 {
		t.Errorf("unexpected defaults %+v", d)
	}
	if d.MaxRounds == nil || *d.MaxRounds != 3 {
		t.Errorf("expected max rounds 3, got %v", d.MaxRounds)
	}

	e := Default().Estimation
	e.MaxRounds = 0
	if e.JobDefaults().MaxRounds != nil {
		t.Error("expected no round limit for max_rounds 0")
	}
}

func TestTracingService(t *testing.T) {
	tc := TracingConfig{Endpoint: "collector:4317", SampleRate: 0.25, Insecure: true}
	cfg := tc.Service("qre-worker", "1.2.3")
	if cfg.ServiceName != "qre-worker" || cfg.ServiceVersion != "1.2.3" {
		t.Errorf("unexpected service %+v", cfg)
	}
	if cfg.OTLPEndpoint != "collector:4317" || cfg.SampleRate != 0.25 || !cfg.Insecure {
		t.Errorf("unexpected exporter settings %+v", cfg)
	}
}

func TestOpenAudit(t *testing.T) {
	none, err := ServerConfig{}.OpenAudit()
	if err != nil || none != nil {
		t.Fatalf("expected no audit logger, got %v, %v", none, err)
	}

	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := ServerConfig{AuditLog: path}.OpenAudit()
	if err != nil {
		t.Fatalf("OpenAudit: %v", err)
	}
	defer l.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("audit file not created: %v", err)
	}
}
