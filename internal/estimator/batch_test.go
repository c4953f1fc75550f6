package estimator

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

type batchCounter struct {
	stageRecorder
	mu     sync.Mutex
	ok     int
	failed int
}

func (b *batchCounter) RecordBatchJob(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failed++
	} else {
		b.ok++
	}
}

func TestBatch_PreservesOrder(t *testing.T) {
	base := majInput(t)
	var jobs []Job
	for i := 0; i < 8; i++ {
		in := base
		in.Counts.TCount = int64(50 * (i + 1))
		jobs = append(jobs, Job{Label: fmt.Sprintf("job-%d", i), Input: in})
	}
	bad := base
	bad.ErrorBudget = 1.5
	jobs = append(jobs, Job{Label: "bad", Detail: "out of range budget", Input: bad})

	counter := &batchCounter{}
	out, err := New(Options{Observer: counter}).Batch(context.Background(), jobs, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(jobs) {
		t.Fatalf("got %d outcomes, want %d", len(out), len(jobs))
	}
	for i, o := range out {
		if o.Label != jobs[i].Label {
			t.Errorf("outcome %d label = %q, want %q", i, o.Label, jobs[i].Label)
		}
	}
	for i := 0; i < 8; i++ {
		if out[i].Failed() || len(out[i].Results) != 1 {
			t.Fatalf("job %d: %+v", i, out[i].Error)
		}
		if got := out[i].Results[0].LogicalCounts.TCount; got != int64(50*(i+1)) {
			t.Errorf("job %d carries tCount %d", i, got)
		}
	}
	last := out[len(out)-1]
	if !last.Failed() || last.Error.Kind != KindInvalidBudget || last.Detail != "out of range budget" {
		t.Errorf("unexpected failing outcome %+v", last)
	}
	if counter.ok != 8 || counter.failed != 1 {
		t.Errorf("recorded %d ok and %d failed jobs", counter.ok, counter.failed)
	}
}

func TestBatch_MatchesSequential(t *testing.T) {
	in := majInput(t)
	est := New(Options{})
	want, err := est.Estimate(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := est.Batch(context.Background(), []Job{{Label: "a", Input: in}, {Label: "b", Input: in}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range out {
		got := o.Results[0].PhysicalCounts
		if got.PhysicalQubits != want.PhysicalCounts.PhysicalQubits || got.Runtime != want.PhysicalCounts.Runtime {
			t.Errorf("%s: batch result differs from a direct estimate", o.Label)
		}
	}
}

func TestBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).Batch(ctx, []Job{{Label: "a", Input: majInput(t)}}, 1)
	wantKind(t, err, KindCanceled)
}

func TestBatch_Empty(t *testing.T) {
	out, err := New(Options{}).Batch(context.Background(), nil, 2)
	if err != nil || len(out) != 0 {
		t.Errorf("Batch(nil) = %v, %v", out, err)
	}
}
