// Package metrics collects per-run statistics for the CLI summary.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/efebarandurmaz/qre/internal/program"
)

// RunMetrics collects statistics for one CLI run. It observes the
// estimator's stages and is safe for concurrent use by batch jobs.
type RunMetrics struct {
	mu sync.Mutex

	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at,omitempty"`
	Duration          time.Duration  `json:"duration_ms,omitempty"`
	Source            SourceMetrics  `json:"source"`
	Stages            []StageMetrics `json:"stages"`
	FactoryCandidates int            `json:"factory_candidates"`
	Estimates         int            `json:"estimates"`
	FailedEstimates   int            `json:"failed_estimates"`
	BatchJobs         int            `json:"batch_jobs,omitempty"`
	FailedBatchJobs   int            `json:"failed_batch_jobs,omitempty"`
	Headline          *Headline      `json:"headline,omitempty"`
	Errors            []string       `json:"errors,omitempty"`
	stageIndex        map[string]int
}

// SourceMetrics describes the estimated program.
type SourceMetrics struct {
	Name     string                `json:"name"`
	Compiler string                `json:"compiler"`
	Bytes    int                   `json:"bytes"`
	Counts   program.LogicalCounts `json:"logical_counts"`
}

// StageMetrics accumulates the runs of one pipeline stage. An estimate that
// re-plans its layout or an optimized estimate runs a stage many times.
type StageMetrics struct {
	Name     string        `json:"name"`
	Calls    int           `json:"calls"`
	Duration time.Duration `json:"duration_ms"`
	Errors   int           `json:"errors"`
}

// Headline holds the numbers of the reported estimate.
type Headline struct {
	PhysicalQubits uint64 `json:"physical_qubits"`
	RuntimeNs      uint64 `json:"runtime_ns"`
	CodeDistance   int    `json:"code_distance"`
	TFactories     uint64 `json:"t_factories"`
}

// New starts tracking a run.
func New() *RunMetrics {
	return &RunMetrics{StartedAt: time.Now(), stageIndex: make(map[string]int)}
}

// CollectSource records the program the run estimates.
func (m *RunMetrics) CollectSource(src program.Source, compiler string, counts program.LogicalCounts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Source = SourceMetrics{Name: src.Name, Compiler: compiler, Bytes: len(src.Content), Counts: counts}
}

// ObserveStage records one stage run. Stages keep the order they first ran in.
func (m *RunMetrics) ObserveStage(stage string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.stageIndex[stage]
	if !ok {
		i = len(m.Stages)
		m.stageIndex[stage] = i
		m.Stages = append(m.Stages, StageMetrics{Name: stage})
	}
	s := &m.Stages[i]
	s.Calls++
	s.Duration += d
	if err != nil {
		s.Errors++
	}
}

// ObserveFactoryCandidates counts distillation candidates evaluated.
func (m *RunMetrics) ObserveFactoryCandidates(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FactoryCandidates += n
}

// RecordEstimate counts a finished estimate.
func (m *RunMetrics) RecordEstimate(_ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Estimates++
	if err != nil {
		m.FailedEstimates++
		m.Errors = append(m.Errors, err.Error())
	}
}

// RecordBatchJob counts a finished batch job.
func (m *RunMetrics) RecordBatchJob(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchJobs++
	if err != nil {
		m.FailedBatchJobs++
	}
}

// SetHeadline records the numbers of the reported estimate.
func (m *RunMetrics) SetHeadline(h Headline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Headline = &h
}

// Finish marks the run as complete.
func (m *RunMetrics) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
}

// PrintSummary writes a human-readable summary.
func (m *RunMetrics) PrintSummary(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║        QRE ESTIMATION SUMMARY        ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-24s║\n", m.Duration.Round(time.Microsecond))
	fmt.Fprintf(w, "║ Estimates:   %-24s║\n", fmt.Sprintf("%d (%d failed)", m.Estimates, m.FailedEstimates))
	if m.BatchJobs > 0 {
		fmt.Fprintf(w, "║ Batch jobs:  %-24s║\n", fmt.Sprintf("%d (%d failed)", m.BatchJobs, m.FailedBatchJobs))
	}
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ PROGRAM (%s)\n", m.Source.Compiler)
	fmt.Fprintf(w, "║   Source:      %s (%s)\n", m.Source.Name, humanize.Bytes(uint64(m.Source.Bytes)))
	fmt.Fprintf(w, "║   Qubits:      %s\n", humanize.Comma(m.Source.Counts.NumQubits))
	fmt.Fprintf(w, "║   T gates:     %s\n", humanize.Comma(m.Source.Counts.TCount))
	fmt.Fprintf(w, "║   Rotations:   %s\n", humanize.Comma(m.Source.Counts.RotationCount))
	fmt.Fprintf(w, "║   CCZ/CCiX:    %s / %s\n", humanize.Comma(m.Source.Counts.CCZCount), humanize.Comma(m.Source.Counts.CCIXCount))
	fmt.Fprintf(w, "║   Measures:    %s\n", humanize.Comma(m.Source.Counts.MeasurementCount))
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ STAGES\n")
	for _, s := range m.Stages {
		status := "OK"
		if s.Errors > 0 {
			status = fmt.Sprintf("%d errors", s.Errors)
		}
		fmt.Fprintf(w, "║   %-11s %10s  x%-5d %s\n", s.Name, s.Duration.Round(time.Microsecond), s.Calls, status)
	}
	fmt.Fprintf(w, "║   factory candidates: %d\n", m.FactoryCandidates)
	if m.Headline != nil {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ RESULT\n")
		fmt.Fprintf(w, "║   Physical qubits: %s\n", humanize.Comma(int64(m.Headline.PhysicalQubits)))
		fmt.Fprintf(w, "║   Runtime:         %s\n", time.Duration(m.Headline.RuntimeNs))
		fmt.Fprintf(w, "║   Code distance:   %d\n", m.Headline.CodeDistance)
		fmt.Fprintf(w, "║   T factories:     %d\n", m.Headline.TFactories)
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the metrics as formatted JSON.
func (m *RunMetrics) JSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.MarshalIndent(m, "", "  ")
}
