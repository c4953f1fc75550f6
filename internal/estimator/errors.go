package estimator

import (
	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/hardware"
)

// Error is the structured failure returned by every estimator operation.
type Error = errs.Error

// Kind classifies an Error.
type Kind = errs.Kind

const (
	KindInvalidBudget          = errs.KindInvalidBudget
	KindNoFeasibleCodeDistance = errs.KindNoFeasibleCodeDistance
	KindNoFeasibleTFactory     = errs.KindNoFeasibleTFactory
	KindInvalidLogicalCounts   = errs.KindInvalidLogicalCounts
	KindConfiguration          = errs.KindConfiguration
	KindConstraintsUnsatisfied = errs.KindConstraintsUnsatisfied
	KindCanceled               = errs.KindCanceled
)

// AsError converts any error into an *Error. Untagged errors become
// configuration errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	return errs.Wrap(errs.KindConfiguration, "", err)
}

// ResolveHardware resolves qubit and scheme specs against a catalog and tags
// lookup failures as configuration errors.
func ResolveHardware(c *hardware.Catalog, qs hardware.QubitSpec, ss hardware.SchemeSpec) (hardware.QubitParams, hardware.QecScheme, error) {
	if c == nil {
		c = hardware.Default()
	}
	q, err := c.ResolveQubit(qs)
	if err != nil {
		return hardware.QubitParams{}, hardware.QecScheme{}, errs.Wrap(errs.KindConfiguration, errs.StageValidation, err)
	}
	s, err := c.ResolveScheme(ss, q)
	if err != nil {
		return hardware.QubitParams{}, hardware.QecScheme{}, errs.Wrap(errs.KindConfiguration, errs.StageValidation, err)
	}
	return q, s, nil
}
