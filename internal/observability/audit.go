package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efebarandurmaz/qre/internal/errs"
)

type AuditEventType string

const (
	AuditEventEstimateStart    AuditEventType = "estimate.start"
	AuditEventEstimateComplete AuditEventType = "estimate.complete"
	AuditEventEstimateError    AuditEventType = "estimate.error"
	AuditEventBatchStart       AuditEventType = "batch.start"
	AuditEventBatchEnd         AuditEventType = "batch.end"
	AuditEventRequest          AuditEventType = "http.request"
	AuditEventWorkflowStart    AuditEventType = "workflow.start"
	AuditEventWorkflowEnd      AuditEventType = "workflow.end"
)

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	SessionID   string         `json:"session_id"`
	RequestID   string         `json:"request_id,omitempty"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	Success     bool           `json:"success"`
	DurationMs  int64          `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditLogger appends events as JSON lines. Every method is safe on a nil
// logger, which drops all events.
type AuditLogger struct {
	mu        sync.Mutex
	w         io.Writer
	sessionID string
	enabled   bool
}

type AuditConfig struct {
	Enabled bool
	// OutputPath is a file appended to, or "stdout" or "stderr".
	OutputPath string
	// SessionID tags every event. A random one is used when empty.
	SessionID string
}

func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{Enabled: true, OutputPath: "stderr"}
}

// NewAuditLogger opens the configured output.
func NewAuditLogger(cfg *AuditConfig) (*AuditLogger, error) {
	if cfg == nil {
		cfg = DefaultAuditConfig()
	}
	var w io.Writer
	switch cfg.OutputPath {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		w = f
	}
	return NewAuditWriter(w, cfg.SessionID, cfg.Enabled), nil
}

// NewAuditWriter logs to w, which the logger closes on Close if it can.
func NewAuditWriter(w io.Writer, sessionID string, enabled bool) *AuditLogger {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &AuditLogger{w: w, sessionID: sessionID, enabled: enabled}
}

func (l *AuditLogger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// Log writes event, filling in its timestamp and session when unset.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if l == nil || !l.enabled {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(data)
	return err
}

// Close closes a file output. Standard streams stay open.
func (l *AuditLogger) Close() error {
	if l == nil || l.w == os.Stdout || l.w == os.Stderr {
		return nil
	}
	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the ID set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// event starts an event of type typ tagged with the request in ctx.
func event(ctx context.Context, typ AuditEventType, success bool, format string, args ...any) *AuditEvent {
	return &AuditEvent{
		EventType: typ,
		RequestID: RequestID(ctx),
		Success:   success,
		Message:   fmt.Sprintf(format, args...),
	}
}

func (e *AuditEvent) took(d time.Duration) *AuditEvent {
	e.DurationMs = d.Milliseconds()
	return e
}

func (e *AuditEvent) with(details map[string]any) *AuditEvent {
	e.Details = details
	return e
}

func (l *AuditLogger) LogEstimateStart(ctx context.Context, label, qubit, scheme string, errorBudget float64) {
	_ = l.Log(event(ctx, AuditEventEstimateStart, true, "Estimate %s started", label).with(map[string]any{
		"qubit":        qubit,
		"qec_scheme":   scheme,
		"error_budget": errorBudget,
	}))
}

func (l *AuditLogger) LogEstimateComplete(ctx context.Context, label string, d time.Duration, physicalQubits, runtimeNs uint64) {
	_ = l.Log(event(ctx, AuditEventEstimateComplete, true, "Estimate %s completed", label).took(d).with(map[string]any{
		"physical_qubits": physicalQubits,
		"runtime_ns":      runtimeNs,
	}))
}

// LogEstimateError records err with its kind as the error code.
func (l *AuditLogger) LogEstimateError(ctx context.Context, label string, d time.Duration, err error) {
	e := event(ctx, AuditEventEstimateError, false, "Estimate %s failed", label).took(d)
	e.ErrorCode = string(errs.KindOf(err))
	e.ErrorDetail = err.Error()
	_ = l.Log(e)
}

func (l *AuditLogger) LogBatchStart(ctx context.Context, batchID string, jobCount int) {
	e := event(ctx, AuditEventBatchStart, true, "Batch started with %d jobs", jobCount).
		with(map[string]any{"job_count": jobCount})
	e.WorkflowID = batchID
	_ = l.Log(e)
}

// LogBatchEnd counts the batch as failed when any job failed.
func (l *AuditLogger) LogBatchEnd(ctx context.Context, batchID string, d time.Duration, succeeded, failed int) {
	e := event(ctx, AuditEventBatchEnd, failed == 0, "Batch completed: %d succeeded, %d failed", succeeded, failed).
		took(d).
		with(map[string]any{"succeeded": succeeded, "failed": failed})
	e.WorkflowID = batchID
	_ = l.Log(e)
}

func (l *AuditLogger) LogRequest(ctx context.Context, method, path string, status int, d time.Duration) {
	_ = l.Log(event(ctx, AuditEventRequest, status < 400, "%s %s -> %d", method, path, status).
		took(d).
		with(map[string]any{"method": method, "path": path, "status": status}))
}

// LogWorkflowStart records a batch handed to Temporal.
func (l *AuditLogger) LogWorkflowStart(ctx context.Context, workflowID string, jobCount int) {
	e := event(ctx, AuditEventWorkflowStart, true, "Workflow started with %d jobs", jobCount)
	e.WorkflowID = workflowID
	_ = l.Log(e)
}

func (l *AuditLogger) LogWorkflowEnd(ctx context.Context, workflowID string, success bool, d time.Duration) {
	e := event(ctx, AuditEventWorkflowEnd, success, "Workflow completed").took(d)
	e.WorkflowID = workflowID
	_ = l.Log(e)
}
