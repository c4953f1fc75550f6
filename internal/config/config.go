package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/efebarandurmaz/qre/internal/jobs"
	"github.com/efebarandurmaz/qre/internal/observability"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Estimation EstimationConfig `mapstructure:"estimation"`
	Server     ServerConfig     `mapstructure:"server"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Log        LogConfig        `mapstructure:"log"`
}

// EstimationConfig holds the defaults applied when a request leaves a
// parameter unset.
type EstimationConfig struct {
	Qubit            string  `mapstructure:"qubit"`
	QecScheme        string  `mapstructure:"qec_scheme"`
	ErrorBudget      float64 `mapstructure:"error_budget"`
	BudgetPolicy     string  `mapstructure:"budget_policy"`
	MaxRounds        int     `mapstructure:"max_rounds"`
	Optimize         string  `mapstructure:"optimize"`
	BatchConcurrency int     `mapstructure:"batch_concurrency"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	AuditLog        string        `mapstructure:"audit_log"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TracingConfig struct {
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Insecure   bool    `mapstructure:"insecure"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Estimation: EstimationConfig{
			Qubit:            "qubit_gate_ns_e3",
			QecScheme:        "surface_code",
			ErrorBudget:      1e-3,
			BudgetPolicy:     "uniform",
			MaxRounds:        3,
			Optimize:         "none",
			BatchConcurrency: 4,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Temporal: TemporalConfig{
			Host:      "localhost:7233",
			Namespace: "default",
			TaskQueue: "qre-estimation",
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
			Insecure:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// JobDefaults returns the defaults applied to requests and batch jobs. A
// non-positive round limit leaves the built-in limit in place.
func (e EstimationConfig) JobDefaults() jobs.Defaults {
	d := jobs.Defaults{
		Qubit:        e.Qubit,
		QecScheme:    e.QecScheme,
		ErrorBudget:  e.ErrorBudget,
		BudgetPolicy: e.BudgetPolicy,
	}
	if e.MaxRounds > 0 {
		rounds := e.MaxRounds
		d.MaxRounds = &rounds
	}
	return d
}

// OpenAudit opens the audit log named by AuditLog. It returns nil, which
// drops every event, when AuditLog is empty.
func (s ServerConfig) OpenAudit() (*observability.AuditLogger, error) {
	if s.AuditLog == "" {
		return nil, nil
	}
	return observability.NewAuditLogger(&observability.AuditConfig{Enabled: true, OutputPath: s.AuditLog})
}

// Service returns the tracing setup of one process.
func (t TracingConfig) Service(name, version string) *observability.TracingConfig {
	cfg := observability.DefaultTracingConfig()
	cfg.ServiceName = name
	cfg.ServiceVersion = version
	cfg.OTLPEndpoint = t.Endpoint
	cfg.Insecure = t.Insecure
	cfg.SampleRate = t.SampleRate
	return cfg
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if b := c.Estimation.ErrorBudget; b <= 0 || b > 1 {
		warnings = append(warnings, fmt.Sprintf("estimation error_budget %g is outside (0, 1]; requests without a budget will fail", b))
	}

	if c.Estimation.MaxRounds < 0 {
		warnings = append(warnings, fmt.Sprintf("estimation max_rounds %d is negative", c.Estimation.MaxRounds))
	}

	if c.Estimation.BatchConcurrency < 0 {
		warnings = append(warnings, fmt.Sprintf("estimation batch_concurrency %d is negative; GOMAXPROCS will be used", c.Estimation.BatchConcurrency))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		warnings = append(warnings, fmt.Sprintf("log format '%s' is not one of text, json", c.Log.Format))
	}

	if c.Server.Addr == "" {
		warnings = append(warnings, "server addr is empty")
	}

	return warnings
}

// Load reads configuration from file and environment. An empty path or a
// missing file yields the defaults, still overridden by QRE_* variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix("QRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !missing(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// setDefaults registers every key so that environment variables bind even
// when no file mentions them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("estimation.qubit", d.Estimation.Qubit)
	v.SetDefault("estimation.qec_scheme", d.Estimation.QecScheme)
	v.SetDefault("estimation.error_budget", d.Estimation.ErrorBudget)
	v.SetDefault("estimation.budget_policy", d.Estimation.BudgetPolicy)
	v.SetDefault("estimation.max_rounds", d.Estimation.MaxRounds)
	v.SetDefault("estimation.optimize", d.Estimation.Optimize)
	v.SetDefault("estimation.batch_concurrency", d.Estimation.BatchConcurrency)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.audit_log", d.Server.AuditLog)

	v.SetDefault("temporal.host", d.Temporal.Host)
	v.SetDefault("temporal.namespace", d.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", d.Temporal.TaskQueue)

	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func missing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
