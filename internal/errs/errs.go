// Package errs defines the tagged error kinds surfaced by the estimator.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an estimation failure.
type Kind string

const (
	KindInvalidBudget          Kind = "InvalidBudget"
	KindNoFeasibleCodeDistance Kind = "NoFeasibleCodeDistance"
	KindNoFeasibleTFactory     Kind = "NoFeasibleTFactory"
	KindInvalidLogicalCounts   Kind = "InvalidLogicalCounts"
	KindConfiguration          Kind = "ConfigurationError"
	KindConstraintsUnsatisfied Kind = "ConstraintsUnsatisfied"
	KindCanceled               Kind = "Canceled"
)

// Stage names the pipeline step that produced an error.
type Stage string

const (
	StageValidation Stage = "validation"
	StageBudget     Stage = "budget"
	StageLayout     Stage = "layout"
	StageTFactory   Stage = "tfactory"
	StageAssembly   Stage = "assembly"
	StageReport     Stage = "report"
)

// Error is a structured estimation failure.
type Error struct {
	Kind    Kind   `json:"kind"`
	Stage   Stage  `json:"stage,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with a formatted message.
func New(kind Kind, stage Stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with a kind and stage. An err that is already an *Error keeps
// its kind; when it has no stage a copy carrying stage is returned and err
// itself is left untouched.
func Wrap(kind Kind, stage Stage, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Stage != "" {
			return e
		}
		staged := *e
		staged.Stage = stage
		return &staged
	}
	return &Error{Kind: kind, Stage: stage, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
