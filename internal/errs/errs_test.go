package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  Kind
		wantStage Stage
	}{
		{"plain error", errors.New("boom"), KindConfiguration, StageValidation},
		{"tagged without stage", New(KindInvalidBudget, "", "bad"), KindInvalidBudget, StageValidation},
		{"tagged with stage", New(KindNoFeasibleTFactory, StageTFactory, "none"), KindNoFeasibleTFactory, StageTFactory},
		{"wrapped tagged", fmt.Errorf("ctx: %w", New(KindInvalidBudget, StageBudget, "bad")), KindInvalidBudget, StageBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(KindConfiguration, StageValidation, tt.err)
			if got.Kind != tt.wantKind || got.Stage != tt.wantStage {
				t.Errorf("Wrap() = %s/%s, want %s/%s", got.Kind, got.Stage, tt.wantKind, tt.wantStage)
			}
		})
	}

	if Wrap(KindConfiguration, StageValidation, nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestWrapLeavesSharedErrorUntouched(t *testing.T) {
	shared := New(KindInvalidLogicalCounts, "", "negative tCount")

	first := Wrap(KindConfiguration, StageValidation, shared)
	second := Wrap(KindConfiguration, StageLayout, shared)

	if shared.Stage != "" {
		t.Fatalf("shared error stage changed to %q", shared.Stage)
	}
	if first.Stage != StageValidation || second.Stage != StageLayout {
		t.Errorf("stages = %q, %q", first.Stage, second.Stage)
	}
	if first.Message != shared.Message || first.Kind != shared.Kind {
		t.Errorf("copy lost fields: %+v", first)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("x")) != "" {
		t.Error("plain error has a kind")
	}
	if !Is(fmt.Errorf("wrap: %w", New(KindCanceled, "", "stop")), KindCanceled) {
		t.Error("kind lost through wrapping")
	}
}
