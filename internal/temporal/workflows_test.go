package temporal

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/efebarandurmaz/qre/internal/budget"
	"github.com/efebarandurmaz/qre/internal/estimator"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/jobs"
	"github.com/efebarandurmaz/qre/internal/observability"
	"github.com/efebarandurmaz/qre/internal/program"
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"
)

var testCounts = program.LogicalCounts{NumQubits: 10, TCount: 100, MeasurementCount: 50}

func testJobs() []jobs.Job {
	return []jobs.Job{
		{Label: "maj", Params: jobs.Params{QubitParams: hardware.QubitSpec{Name: "qubit_maj_ns_e6"}}},
		{Label: "bad-budget", Params: jobs.Params{ErrorBudget: &jobs.ErrorBudget{Total: 1.5}}},
		{Label: "unknown", Params: jobs.Params{QubitParams: hardware.QubitSpec{Name: "qubit_nope"}}},
		{Label: "gate", Params: jobs.Params{QubitParams: hardware.QubitSpec{Name: "qubit_gate_ns_e3"}}},
		{Label: "explicit", Params: jobs.Params{
			QubitParams: hardware.QubitSpec{Name: "qubit_gate_us_e4"},
			ErrorBudget: &jobs.ErrorBudget{Parts: &budget.Explicit{Logical: 5e-4, TStates: 5e-4}},
		}},
	}
}

func setTestDependencies(t *testing.T) {
	t.Helper()
	SetDependencies(&Dependencies{
		Estimator: estimator.New(estimator.Options{}),
		Catalog:   hardware.Default(),
		Defaults:  jobs.Defaults{Qubit: "qubit_gate_ns_e3", QecScheme: "surface_code"},
	})
	t.Cleanup(func() { SetDependencies(nil) })
}

func TestBatchEstimationWorkflow(t *testing.T) {
	setTestDependencies(t)

	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivity(EstimateActivity)

	// A window of two forces three rounds of activities.
	env.ExecuteWorkflow(BatchEstimationWorkflow, BatchInput{BatchID: "batch-1", Counts: testCounts, Jobs: testJobs(), Concurrency: 2})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}

	var out BatchOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	if out.BatchID != "batch-1" {
		t.Errorf("expected batch-1, got %s", out.BatchID)
	}
	if out.Succeeded != 3 || out.Failed != 2 {
		t.Errorf("expected 3 succeeded and 2 failed, got %d and %d", out.Succeeded, out.Failed)
	}

	want := []struct {
		label string
		kind  estimator.Kind
	}{
		{"maj", ""},
		{"bad-budget", estimator.KindInvalidBudget},
		{"unknown", estimator.KindConfiguration},
		{"gate", ""},
		{"explicit", ""},
	}
	if len(out.Outcomes) != len(want) {
		t.Fatalf("expected %d outcomes, got %d", len(want), len(out.Outcomes))
	}
	for i, w := range want {
		o := out.Outcomes[i]
		if o.Label != w.label {
			t.Errorf("outcome %d: expected label %s, got %s", i, w.label, o.Label)
		}
		if w.kind == "" {
			if o.Failed() || len(o.Results) != 1 || o.Results[0].PhysicalCounts.PhysicalQubits == 0 {
				t.Errorf("%s: expected one result, got %+v", w.label, o)
			}
			continue
		}
		if o.Error == nil || o.Error.Kind != w.kind {
			t.Errorf("%s: expected %s, got %+v", w.label, w.kind, o.Error)
		}
	}

	explicit := out.Outcomes[4].Results[0].ErrorBudget
	if explicit.Logical != 5e-4 || explicit.TStates != 5e-4 {
		t.Errorf("explicit split not kept: %+v", explicit)
	}
}

func TestBatchEstimationWorkflow_ActivityFailure(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivity(EstimateActivity)
	env.OnActivity(EstimateActivity, mock.Anything, mock.Anything).
		Return(estimator.Outcome{}, errors.New("worker lost"))

	env.ExecuteWorkflow(BatchEstimationWorkflow, BatchInput{Counts: testCounts, Jobs: testJobs()[:1]})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
}

func TestBatchEstimationWorkflow_DefaultBatchID(t *testing.T) {
	setTestDependencies(t)

	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivity(EstimateActivity)
	env.ExecuteWorkflow(BatchEstimationWorkflow, BatchInput{Counts: testCounts, Jobs: testJobs()[:1]})

	var out BatchOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	if out.BatchID == "" {
		t.Fatal("expected the workflow ID as batch ID")
	}
	if out.Succeeded != 1 {
		t.Fatalf("expected one success, got %+v", out)
	}
}

func TestEstimateActivity(t *testing.T) {
	setTestDependencies(t)

	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(EstimateActivity)

	val, err := env.ExecuteActivity(EstimateActivity, EstimateInput{Counts: testCounts, Job: testJobs()[0]})
	if err != nil {
		t.Fatalf("activity failed: %v", err)
	}
	var out estimator.Outcome
	if err := val.Get(&out); err != nil {
		t.Fatal(err)
	}
	if out.Failed() || len(out.Results) != 1 {
		t.Fatalf("expected one result, got %+v", out)
	}
	if got := out.Results[0].JobParams.QubitParams.Name; got != "qubit_maj_ns_e6" {
		t.Errorf("expected maj qubit, got %s", got)
	}

	val, err = env.ExecuteActivity(EstimateActivity, EstimateInput{Counts: program.LogicalCounts{NumQubits: 1, TCount: -1}, Job: jobs.Job{Label: "bad"}})
	if err != nil {
		t.Fatalf("estimation failure should not fail the activity: %v", err)
	}
	out = estimator.Outcome{}
	if err := val.Get(&out); err != nil {
		t.Fatal(err)
	}
	if out.Error == nil || out.Error.Kind != estimator.KindInvalidLogicalCounts {
		t.Fatalf("expected InvalidLogicalCounts, got %+v", out.Error)
	}
}

func TestEstimateActivity_AuditsRuntime(t *testing.T) {
	var audit bytes.Buffer
	SetDependencies(&Dependencies{
		Estimator: estimator.New(estimator.Options{}),
		Catalog:   hardware.Default(),
		Defaults:  jobs.Defaults{Qubit: "qubit_gate_ns_e3", QecScheme: "surface_code"},
		Audit:     observability.NewAuditWriter(&audit, "worker-test", true),
	})
	t.Cleanup(func() { SetDependencies(nil) })

	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(EstimateActivity)

	val, err := env.ExecuteActivity(EstimateActivity, EstimateInput{Counts: testCounts, Job: testJobs()[0]})
	if err != nil {
		t.Fatalf("activity failed: %v", err)
	}
	var out estimator.Outcome
	if err := val.Get(&out); err != nil {
		t.Fatal(err)
	}
	if out.Failed() {
		t.Fatalf("expected a result, got %+v", out.Error)
	}
	want := uint64(out.Results[0].PhysicalCounts.Runtime)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(audit.String()), "\n") {
		var e struct {
			EventType string `json:"event_type"`
			Details   struct {
				RuntimeNs uint64 `json:"runtime_ns"`
			} `json:"details"`
		}
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("decode audit line %q: %v", line, err)
		}
		if e.EventType != "estimate.complete" {
			continue
		}
		found = true
		if e.Details.RuntimeNs != want {
			t.Errorf("audit runtime_ns = %d, want %d", e.Details.RuntimeNs, want)
		}
	}
	if !found {
		t.Fatalf("no estimate.complete event in audit log:\n%s", audit.String())
	}
}
