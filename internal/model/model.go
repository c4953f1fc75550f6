// Package model holds the estimation result types shared by the estimator,
// the report builder and the adapters.
package model

import (
	"github.com/efebarandurmaz/qre/internal/budget"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/layout"
	"github.com/efebarandurmaz/qre/internal/program"
	"github.com/efebarandurmaz/qre/internal/tfactory"
)

// StatusSuccess is the only status a returned result carries.
const StatusSuccess = "Success"

// EstimateType selects a single estimate or a qubits/runtime frontier.
type EstimateType string

const (
	SinglePoint EstimateType = "singlePoint"
	Frontier    EstimateType = "frontier"
)

// Constraints restrict the search. Nil pointers mean unconstrained.
type Constraints struct {
	MaxDistillationRounds int                `json:"maxDistillationRounds" yaml:"maxDistillationRounds"`
	MaxPhysicalQubits     *uint64            `json:"maxPhysicalQubits,omitempty" yaml:"maxPhysicalQubits,omitempty"`
	MaxDuration           *hardware.Duration `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`
	MaxTFactories         *uint64            `json:"maxTFactories,omitempty" yaml:"maxTFactories,omitempty"`
	LogicalDepthFactor    *float64           `json:"logicalDepthFactor,omitempty" yaml:"logicalDepthFactor,omitempty"`
}

// DefaultConstraints allows up to three distillation rounds and nothing else.
func DefaultConstraints() Constraints {
	return Constraints{MaxDistillationRounds: tfactory.DefaultMaxRounds}
}

// JobParams echoes the resolved inputs of an estimate.
type JobParams struct {
	QecScheme    hardware.QecScheme   `json:"qecScheme"`
	ErrorBudget  float64              `json:"errorBudget"`
	BudgetPolicy string               `json:"budgetPolicy"`
	Optimize     string               `json:"optimize,omitempty"`
	QubitParams  hardware.QubitParams `json:"qubitParams"`
	Constraints  Constraints          `json:"constraints"`
	EstimateType EstimateType         `json:"estimateType"`
}

// Breakdown details how the physical counts were derived.
type Breakdown struct {
	AlgorithmicLogicalQubits       uint64   `json:"algorithmicLogicalQubits"`
	AlgorithmicLogicalDepth        uint64   `json:"algorithmicLogicalDepth"`
	LogicalDepth                   uint64   `json:"logicalDepth"`
	ClockFrequency                 float64  `json:"clockFrequency"`
	NumTStates                     uint64   `json:"numTstates"`
	NumTFactories                  *uint64  `json:"numTfactories,omitempty"`
	NumTFactoryRuns                *uint64  `json:"numTfactoryRuns,omitempty"`
	PhysicalQubitsForTFactories    uint64   `json:"physicalQubitsForTfactories"`
	PhysicalQubitsForAlgorithm     uint64   `json:"physicalQubitsForAlgorithm"`
	RequiredLogicalQubitErrorRate  float64  `json:"requiredLogicalQubitErrorRate"`
	RequiredLogicalTStateErrorRate *float64 `json:"requiredLogicalTstateErrorRate,omitempty"`
	NumTsPerRotation               *uint64  `json:"numTsPerRotation,omitempty"`
	CliffordErrorRate              float64  `json:"cliffordErrorRate"`
}

// PhysicalCounts are the headline physical resources.
type PhysicalCounts struct {
	PhysicalQubits uint64            `json:"physicalQubits"`
	Runtime        hardware.Duration `json:"runtime"`
	RQOPS          uint64            `json:"rqops"`
	Breakdown      Breakdown         `json:"breakdown"`
}

// TFactory summarizes the chosen distillation factory.
type TFactory struct {
	PhysicalQubits         uint64              `json:"physicalQubits"`
	Runtime                hardware.Duration   `json:"runtime"`
	NumTStates             uint64              `json:"numTstates"`
	NumInputTStates        uint64              `json:"numInputTstates"`
	NumRounds              int                 `json:"numRounds"`
	NumUnitsPerRound       []uint64            `json:"numUnitsPerRound"`
	UnitNamePerRound       []string            `json:"unitNamePerRound"`
	CodeDistancePerRound   []int               `json:"codeDistancePerRound"`
	PhysicalQubitsPerRound []uint64            `json:"physicalQubitsPerRound"`
	RuntimePerRound        []hardware.Duration `json:"runtimePerRound"`
	LogicalErrorRate       float64             `json:"logicalErrorRate"`
	SuccessProbability     float64             `json:"successProbability"`
}

// NewTFactory flattens a planned factory into per-round lists.
func NewTFactory(f tfactory.Factory) TFactory {
	t := TFactory{
		PhysicalQubits:         f.PhysicalQubits,
		Runtime:                f.Duration,
		NumTStates:             f.NumOutputTStates,
		NumInputTStates:        f.NumInputTStates,
		NumRounds:              len(f.Rounds),
		NumUnitsPerRound:       make([]uint64, 0, len(f.Rounds)),
		UnitNamePerRound:       make([]string, 0, len(f.Rounds)),
		CodeDistancePerRound:   make([]int, 0, len(f.Rounds)),
		PhysicalQubitsPerRound: make([]uint64, 0, len(f.Rounds)),
		RuntimePerRound:        make([]hardware.Duration, 0, len(f.Rounds)),
		LogicalErrorRate:       f.OutputErrorRate,
		SuccessProbability:     f.SuccessProbability,
	}
	for _, r := range f.Rounds {
		t.NumUnitsPerRound = append(t.NumUnitsPerRound, r.NumUnits)
		t.UnitNamePerRound = append(t.UnitNamePerRound, r.Unit)
		t.CodeDistancePerRound = append(t.CodeDistancePerRound, r.CodeDistance)
		t.PhysicalQubitsPerRound = append(t.PhysicalQubitsPerRound, r.PhysicalQubits)
		t.RuntimePerRound = append(t.RuntimePerRound, r.Duration)
	}
	return t
}

// Formatted holds human-readable renderings of the numeric results.
type Formatted struct {
	Runtime                        string `json:"runtime"`
	RQOPS                          string `json:"rqops"`
	PhysicalQubits                 string `json:"physicalQubits"`
	AlgorithmicLogicalQubits       string `json:"algorithmicLogicalQubits"`
	AlgorithmicLogicalDepth        string `json:"algorithmicLogicalDepth"`
	LogicalDepth                   string `json:"logicalDepth"`
	ClockFrequency                 string `json:"clockFrequency"`
	NumTStates                     string `json:"numTstates"`
	NumTFactories                  string `json:"numTfactories"`
	NumTFactoryRuns                string `json:"numTfactoryRuns"`
	PhysicalQubitsForAlgorithm     string `json:"physicalQubitsForAlgorithm"`
	PhysicalQubitsForTFactories    string `json:"physicalQubitsForTfactories"`
	PhysicalQubitsForTFactoriesPct string `json:"physicalQubitsForTfactoriesPercentage"`
	RequiredLogicalQubitErrorRate  string `json:"requiredLogicalQubitErrorRate"`
	RequiredLogicalTStateErrorRate string `json:"requiredLogicalTstateErrorRate"`
	NumTsPerRotation               string `json:"numTsPerRotation"`
	LogicalCycleTime               string `json:"logicalCycleTime"`
	LogicalErrorRate               string `json:"logicalErrorRate"`
	TFactoryRuntime                string `json:"tfactoryRuntime"`
	TFactoryRuntimePerRound        string `json:"tfactoryRuntimePerRound"`
	TFactoryQubitsPerRound         string `json:"tfactoryPhysicalQubitsPerRound"`
	TStateLogicalErrorRate         string `json:"tstateLogicalErrorRate"`
	ErrorBudget                    string `json:"errorBudget"`
	ErrorBudgetLogical             string `json:"errorBudgetLogical"`
	ErrorBudgetTStates             string `json:"errorBudgetTstates"`
	ErrorBudgetRotations           string `json:"errorBudgetRotations"`
}

// ReportEntry describes one displayed value. Path is a dotted location in
// the result JSON.
type ReportEntry struct {
	Path        string `json:"path"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Explanation string `json:"explanation"`
}

// ReportGroup is a titled section of the report.
type ReportGroup struct {
	Title         string        `json:"title"`
	AlwaysVisible bool          `json:"alwaysVisible"`
	Entries       []ReportEntry `json:"entries"`
}

// ReportData is the presentation metadata for a result.
type ReportData struct {
	Groups      []ReportGroup `json:"groups"`
	Assumptions []string      `json:"assumptions"`
}

// Result is a successful estimation.
type Result struct {
	Status                  string                `json:"status"`
	JobParams               JobParams             `json:"jobParams"`
	PhysicalCounts          PhysicalCounts        `json:"physicalCounts"`
	PhysicalCountsFormatted Formatted             `json:"physicalCountsFormatted"`
	LogicalQubit            layout.LogicalQubit   `json:"logicalQubit"`
	TFactory                *TFactory             `json:"tfactory,omitempty"`
	ErrorBudget             budget.ErrorBudget    `json:"errorBudget"`
	LogicalCounts           program.LogicalCounts `json:"logicalCounts"`
	ReportData              ReportData            `json:"reportData"`
}
