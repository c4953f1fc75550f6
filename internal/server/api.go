package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/jobs"
	"github.com/efebarandurmaz/qre/internal/model"
	"github.com/efebarandurmaz/qre/internal/observability"
	"github.com/efebarandurmaz/qre/internal/program"
	"github.com/google/uuid"
)

// KindBadRequest tags request bodies that could not be decoded.
const KindBadRequest errs.Kind = "BadRequest"

const requestIDHeader = "X-Request-ID"

// Options configure the HTTP API.
type Options struct {
	Catalog   *hardware.Catalog
	Compilers *program.Registry
	Estimator *estimator.Estimator
	// Defaults fill request parameters left unset.
	Defaults jobs.Defaults
	Metrics  *observability.EstimatorMetrics
	Audit    *observability.AuditLogger
	Logger   *slog.Logger
	// Health is mounted next to the API routes when set.
	Health *HealthServer
	// MaxBodyBytes limits request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
	// BatchConcurrency bounds batch jobs in flight. Zero or less uses GOMAXPROCS.
	BatchConcurrency int
}

// API serves estimates over HTTP.
type API struct {
	opts   Options
	logger *slog.Logger
}

// EstimateRequest is the body of POST /v1/estimate. Exactly one of
// LogicalCounts and Program must be set.
type EstimateRequest struct {
	LogicalCounts *program.LogicalCounts `json:"logicalCounts,omitempty"`
	Program       *jobs.Program          `json:"program,omitempty"`
	Params        jobs.Params            `json:"params"`
}

// BatchRequest is the body of POST /v1/estimate/batch. Every item is
// estimated for the same program.
type BatchRequest struct {
	LogicalCounts *program.LogicalCounts `json:"logicalCounts,omitempty"`
	Program       *jobs.Program          `json:"program,omitempty"`
	Items         []jobs.Job             `json:"items"`
}

// FrontierResponse carries the results of a frontier estimate.
type FrontierResponse struct {
	Status   string         `json:"status"`
	Frontier []model.Result `json:"frontier"`
}

// BatchResponse carries batch outcomes in request order.
type BatchResponse struct {
	BatchID string              `json:"batchId"`
	Items   []estimator.Outcome `json:"items"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status string      `json:"status"`
	Error  *errs.Error `json:"error"`
}

// PresetsResponse lists what requests can refer to by name.
type PresetsResponse struct {
	Qubits     []hardware.QubitParams `json:"qubits"`
	QecSchemes []hardware.QecScheme   `json:"qecSchemes"`
	Compilers  []string               `json:"compilers"`
}

// NewAPI creates the API, filling unset options with defaults.
func NewAPI(opts Options) *API {
	if opts.Catalog == nil {
		opts.Catalog = hardware.Default()
	}
	if opts.Compilers == nil {
		opts.Compilers = program.DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Estimator == nil {
		opts.Estimator = estimator.New(estimator.Options{Logger: opts.Logger})
	}
	if opts.Audit == nil {
		opts.Audit = observability.NewAuditWriter(io.Discard, "", false)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &API{opts: opts, logger: opts.Logger}
}

// Handler returns the routed API wrapped in request middleware.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/estimate", a.handleEstimate)
	mux.HandleFunc("POST /v1/estimate/batch", a.handleBatch)
	mux.HandleFunc("GET /v1/presets", a.handlePresets)
	if a.opts.Metrics != nil {
		mux.Handle("GET /metrics", a.opts.Metrics.Handler())
	}
	if a.opts.Health != nil {
		a.opts.Health.Register(mux)
	}
	return a.middleware(mux)
}

func (a *API) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !a.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	counts, err := a.counts(ctx, req.LogicalCounts, req.Program)
	if err != nil {
		a.writeError(w, err)
		return
	}
	params := req.Params.WithDefaults(a.opts.Defaults)
	in, err := params.Input(a.opts.Catalog, counts)
	if err != nil {
		a.writeError(w, err)
		return
	}

	label := observability.RequestID(ctx)
	a.opts.Audit.LogEstimateStart(ctx, label, in.Qubit.Name, in.Scheme.Name, in.ErrorBudget)
	start := time.Now()
	results, err := a.opts.Estimator.Run(ctx, in)
	if err != nil {
		a.opts.Audit.LogEstimateError(ctx, label, time.Since(start), err)
		a.writeError(w, err)
		return
	}
	head := results[0].PhysicalCounts
	a.opts.Audit.LogEstimateComplete(ctx, label, time.Since(start), head.PhysicalQubits, uint64(head.Runtime))

	if in.EstimateType == model.Frontier {
		a.writeJSON(w, http.StatusOK, FrontierResponse{Status: model.StatusSuccess, Frontier: results})
		return
	}
	a.writeJSON(w, http.StatusOK, results[0])
}

func (a *API) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		a.writeError(w, errs.New(KindBadRequest, "", "batch has no items"))
		return
	}
	ctx := r.Context()
	counts, err := a.counts(ctx, req.LogicalCounts, req.Program)
	if err != nil {
		a.writeError(w, err)
		return
	}

	batchID := uuid.NewString()
	a.opts.Audit.LogBatchStart(ctx, batchID, len(req.Items))
	start := time.Now()

	// Items that fail to resolve keep their slot with the error; the rest run
	// as one batch.
	out := make([]estimator.Outcome, len(req.Items))
	var runnable []estimator.Job
	var slots []int
	for i, item := range req.Items {
		if item.Label == "" {
			item.Label = fmt.Sprintf("job-%d", i+1)
		}
		out[i] = estimator.Outcome{Label: item.Label, Detail: item.Detail}
		in, err := item.Params.WithDefaults(a.opts.Defaults).Input(a.opts.Catalog, counts)
		if err != nil {
			out[i].Error = estimator.AsError(err)
			continue
		}
		runnable = append(runnable, estimator.Job{Label: item.Label, Detail: item.Detail, Input: in})
		slots = append(slots, i)
	}

	outcomes, err := a.opts.Estimator.Batch(ctx, runnable, a.concurrency())
	if err != nil {
		a.opts.Audit.LogBatchEnd(ctx, batchID, time.Since(start), 0, len(req.Items))
		a.writeError(w, err)
		return
	}
	for i, o := range outcomes {
		out[slots[i]] = o
	}

	failed := 0
	for _, o := range out {
		if o.Failed() {
			failed++
		}
	}
	a.opts.Audit.LogBatchEnd(ctx, batchID, time.Since(start), len(out)-failed, failed)
	a.writeJSON(w, http.StatusOK, BatchResponse{BatchID: batchID, Items: out})
}

func (a *API) handlePresets(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, PresetsResponse{
		Qubits:     a.opts.Catalog.Qubits(),
		QecSchemes: a.opts.Catalog.Schemes(),
		Compilers:  a.opts.Compilers.Names(),
	})
}

// counts takes the program's logical counts from exactly one of the two
// request fields.
func (a *API) counts(ctx context.Context, counts *program.LogicalCounts, prog *jobs.Program) (program.LogicalCounts, error) {
	switch {
	case counts != nil && prog != nil:
		return program.LogicalCounts{}, errs.New(KindBadRequest, "", "logicalCounts and program are mutually exclusive")
	case counts != nil:
		return *counts, nil
	case prog != nil:
		return prog.Compile(ctx, a.opts.Compilers)
	}
	return program.LogicalCounts{}, errs.New(KindBadRequest, "", "one of logicalCounts or program is required")
}

func (a *API) concurrency() int {
	if a.opts.BatchConcurrency > 0 {
		return a.opts.BatchConcurrency
	}
	return runtime.GOMAXPROCS(0)
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.writeError(w, errs.New(KindBadRequest, "", "decoding request: %v", err))
		return false
	}
	return true
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	e := estimator.AsError(err)
	status := http.StatusUnprocessableEntity
	switch e.Kind {
	case KindBadRequest:
		status = http.StatusBadRequest
	case errs.KindCanceled:
		status = http.StatusServiceUnavailable
	}
	a.writeJSON(w, status, ErrorResponse{Status: "Failed", Error: e})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Warn("writing response", "error", err)
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// middleware tags each request with an ID and records it in metrics, the
// audit log and the debug log.
func (a *API) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := observability.WithRequestID(r.Context(), id)
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if a.opts.Metrics != nil {
			a.opts.Metrics.RecordHTTPRequest(route, rec.status)
		}
		a.opts.Audit.LogRequest(ctx, r.Method, r.URL.Path, rec.status, elapsed)
		a.logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", elapsed, "request_id", id)
	})
}
