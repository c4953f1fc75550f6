package report

import (
	"fmt"

	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/model"
)

// Build returns r with its formatted view and report data filled in. Numeric
// fields are not modified.
func Build(r model.Result) model.Result {
	r.PhysicalCountsFormatted = Format(r)
	r.ReportData = model.ReportData{
		Groups:      Groups(r),
		Assumptions: Assumptions(),
	}
	return r
}

// Format renders the numeric fields of r.
func Format(r model.Result) model.Formatted {
	pc := r.PhysicalCounts
	b := pc.Breakdown
	f := model.Formatted{
		Runtime:                        Duration(uint64(pc.Runtime)),
		RQOPS:                          SI(float64(pc.RQOPS)),
		PhysicalQubits:                 Count(pc.PhysicalQubits),
		AlgorithmicLogicalQubits:       Count(b.AlgorithmicLogicalQubits),
		AlgorithmicLogicalDepth:        Count(b.AlgorithmicLogicalDepth),
		LogicalDepth:                   Count(b.LogicalDepth),
		ClockFrequency:                 Frequency(b.ClockFrequency),
		NumTStates:                     Count(b.NumTStates),
		NumTFactories:                  OptionalCount(b.NumTFactories),
		NumTFactoryRuns:                OptionalCount(b.NumTFactoryRuns),
		PhysicalQubitsForAlgorithm:     Count(b.PhysicalQubitsForAlgorithm),
		PhysicalQubitsForTFactories:    Count(b.PhysicalQubitsForTFactories),
		PhysicalQubitsForTFactoriesPct: Percent(fraction(b.PhysicalQubitsForTFactories, pc.PhysicalQubits)),
		RequiredLogicalQubitErrorRate:  Rate(b.RequiredLogicalQubitErrorRate),
		RequiredLogicalTStateErrorRate: OptionalRate(b.RequiredLogicalTStateErrorRate),
		NumTsPerRotation:               OptionalCount(b.NumTsPerRotation),
		LogicalCycleTime:               Duration(uint64(r.LogicalQubit.LogicalCycleTime)),
		LogicalErrorRate:               Rate(r.LogicalQubit.LogicalErrorRate),
		TFactoryRuntime:                NotApplicable,
		TFactoryRuntimePerRound:        NotApplicable,
		TFactoryQubitsPerRound:         NotApplicable,
		TStateLogicalErrorRate:         NotApplicable,
		ErrorBudget:                    Rate(r.JobParams.ErrorBudget),
		ErrorBudgetLogical:             Rate(r.ErrorBudget.Logical),
		ErrorBudgetTStates:             Rate(r.ErrorBudget.TStates),
		ErrorBudgetRotations:           Rate(r.ErrorBudget.Rotations),
	}
	if t := r.TFactory; t != nil {
		f.TFactoryRuntime = Duration(uint64(t.Runtime))
		f.TFactoryRuntimePerRound = join(t.RuntimePerRound, func(d hardware.Duration) string { return Duration(uint64(d)) })
		f.TFactoryQubitsPerRound = join(t.PhysicalQubitsPerRound, Count)
		f.TStateLogicalErrorRate = Rate(t.LogicalErrorRate)
	}
	return f
}

func fraction(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// Groups builds the ordered report sections for r. The T factory section is
// present only when the result has a factory.
func Groups(r model.Result) []model.ReportGroup {
	pc := r.PhysicalCounts
	b := pc.Breakdown
	lq := r.LogicalQubit
	q := r.JobParams.QubitParams
	s := r.JobParams.QecScheme

	groups := []model.ReportGroup{
		{
			Title:         "Physical resource estimates",
			AlwaysVisible: true,
			Entries: []model.ReportEntry{
				{
					Path:        "physicalCountsFormatted.runtime",
					Label:       "Runtime",
					Description: "Total runtime",
					Explanation: fmt.Sprintf("The runtime is the product of the logical depth (%s) and the logical cycle time (%s).",
						Count(b.LogicalDepth), Duration(uint64(lq.LogicalCycleTime))),
				},
				{
					Path:        "physicalCountsFormatted.rqops",
					Label:       "rQOPS",
					Description: "Reliable quantum operations per second",
					Explanation: fmt.Sprintf("The number of algorithmic logical qubits (%s) multiplied by the logical clock frequency (%s).",
						Count(b.AlgorithmicLogicalQubits), Frequency(b.ClockFrequency)),
				},
				{
					Path:        "physicalCountsFormatted.physicalQubits",
					Label:       "Physical qubits",
					Description: "Number of physical qubits",
					Explanation: fmt.Sprintf("The sum of the physical qubits for the algorithm (%s) and for the T factories (%s).",
						Count(b.PhysicalQubitsForAlgorithm), Count(b.PhysicalQubitsForTFactories)),
				},
			},
		},
		{
			Title: "Resource estimates breakdown",
			Entries: []model.ReportEntry{
				{
					Path:        "physicalCountsFormatted.algorithmicLogicalQubits",
					Label:       "Logical algorithmic qubits",
					Description: "Number of logical qubits for the algorithm after layout",
					Explanation: fmt.Sprintf("Laying out %d program qubits needs 2Q + ceil(sqrt(8Q)) + 1 logical qubits.", r.LogicalCounts.NumQubits),
				},
				{
					Path:        "physicalCountsFormatted.algorithmicLogicalDepth",
					Label:       "Algorithmic depth",
					Description: "Number of logical cycles for the algorithm",
					Explanation: "Measurements, rotations and T gates take one cycle each, CCZ and CCiX gates take three, and each rotation layer takes one cycle per synthesized T state.",
				},
				{
					Path:        "physicalCountsFormatted.logicalDepth",
					Label:       "Logical depth",
					Description: "Number of logical cycles performed",
					Explanation: "The algorithmic depth, stretched where needed so that T factories can produce all T states in time.",
				},
				{
					Path:        "physicalCountsFormatted.clockFrequency",
					Label:       "Clock frequency",
					Description: "Number of logical cycles per second",
					Explanation: "The inverse of the logical cycle time.",
				},
				{
					Path:        "physicalCountsFormatted.numTstates",
					Label:       "Number of T states",
					Description: "Number of T states consumed by the algorithm",
					Explanation: "T gates, four per CCZ or CCiX gate, and the T states synthesizing each rotation.",
				},
				{
					Path:        "physicalCountsFormatted.numTfactories",
					Label:       "Number of T factories",
					Description: "Number of T factories running in parallel",
					Explanation: "Chosen so that all T factory runs fit into the algorithm runtime.",
				},
				{
					Path:        "physicalCountsFormatted.numTfactoryRuns",
					Label:       "Number of T factory invocations",
					Description: "Number of times each T factory runs",
					Explanation: "Enough runs to produce all T states given the factory success probability.",
				},
				{
					Path:        "physicalCountsFormatted.physicalQubitsForAlgorithm",
					Label:       "Physical algorithmic qubits",
					Description: "Number of physical qubits for the algorithm after layout",
					Explanation: fmt.Sprintf("Logical algorithmic qubits times %s physical qubits per logical qubit.", Count(lq.PhysicalQubits)),
				},
				{
					Path:        "physicalCountsFormatted.physicalQubitsForTfactories",
					Label:       "Physical T factory qubits",
					Description: "Number of physical qubits for the T factories",
					Explanation: "Number of T factories times the physical qubits of one factory.",
				},
				{
					Path:        "physicalCountsFormatted.requiredLogicalQubitErrorRate",
					Label:       "Required logical qubit error rate",
					Description: "The minimum logical qubit error rate required to run the algorithm within the error budget",
					Explanation: "The logical error budget divided by the product of logical qubits and logical depth.",
				},
				{
					Path:        "physicalCountsFormatted.requiredLogicalTstateErrorRate",
					Label:       "Required logical T state error rate",
					Description: "The minimum T state error rate required for distilled T states",
					Explanation: "The T state error budget divided by the number of T states.",
				},
				{
					Path:        "physicalCountsFormatted.numTsPerRotation",
					Label:       "Number of T states per rotation",
					Description: "Number of T states to implement a rotation with an arbitrary angle",
					Explanation: "ceil(0.53 log2(R / eps) + 5.3) for R rotations and rotation budget eps.",
				},
			},
		},
		{
			Title: "Logical qubit parameters",
			Entries: []model.ReportEntry{
				{
					Path:        "jobParams.qecScheme.name",
					Label:       "QEC scheme",
					Description: "Name of the QEC scheme",
					Explanation: fmt.Sprintf("The %s scheme for %s qubits.", s.Name, s.InstructionSet),
				},
				{
					Path:        "logicalQubit.codeDistance",
					Label:       "Code distance",
					Description: "Required code distance for error correction",
					Explanation: "The smallest odd distance whose logical error rate meets the requirement.",
				},
				{
					Path:        "logicalQubit.physicalQubits",
					Label:       "Physical qubits",
					Description: "Number of physical qubits per logical qubit",
					Explanation: fmt.Sprintf("Evaluated from %s.", s.PhysicalQubitsPerLogicalQubit),
				},
				{
					Path:        "physicalCountsFormatted.logicalCycleTime",
					Label:       "Logical cycle time",
					Description: "Duration of a logical cycle",
					Explanation: fmt.Sprintf("Evaluated from %s.", s.LogicalCycleTime),
				},
				{
					Path:        "physicalCountsFormatted.logicalErrorRate",
					Label:       "Logical qubit error rate",
					Description: "Logical qubit error rate per logical cycle",
					Explanation: fmt.Sprintf("%g * (p / %g)^((d + 1) / 2) with Clifford error rate p = %s.",
						s.CrossingPrefactor, s.ErrorCorrectionThreshold, Rate(b.CliffordErrorRate)),
				},
				{
					Path:        "jobParams.qecScheme.crossingPrefactor",
					Label:       "Crossing prefactor",
					Description: "Crossing prefactor used in the logical error rate model",
					Explanation: "Fitted from simulations of the code.",
				},
				{
					Path:        "jobParams.qecScheme.errorCorrectionThreshold",
					Label:       "Error correction threshold",
					Description: "Physical error rate below which error correction helps",
					Explanation: "Fitted from simulations of the code.",
				},
			},
		},
	}

	if t := r.TFactory; t != nil {
		groups = append(groups, model.ReportGroup{
			Title: "T factory parameters",
			Entries: []model.ReportEntry{
				{
					Path:        "tfactory.physicalQubits",
					Label:       "Physical qubits",
					Description: "Number of physical qubits for a single T factory",
					Explanation: "The largest round of the factory.",
				},
				{
					Path:        "physicalCountsFormatted.tfactoryRuntime",
					Label:       "Runtime",
					Description: "Runtime of a single T factory",
					Explanation: "The sum of the round runtimes.",
				},
				{
					Path:        "tfactory.numTstates",
					Label:       "Number of output T states per run",
					Description: "Number of output T states produced in a single run",
					Explanation: "Each run of the last round yields one T state.",
				},
				{
					Path:        "tfactory.numInputTstates",
					Label:       "Number of input T states per run",
					Description: "Number of physical input T states consumed in a single run",
					Explanation: "Injected T states consumed by the first round.",
				},
				{
					Path:        "tfactory.numRounds",
					Label:       "Distillation rounds",
					Description: "The number of distillation rounds",
					Explanation: fmt.Sprintf("%d round(s) reduce the T gate error rate %s to %s.", t.NumRounds, Rate(q.TGateErrorRate), Rate(t.LogicalErrorRate)),
				},
				{
					Path:        "tfactory.numUnitsPerRound",
					Label:       "Distillation units per round",
					Description: "The number of units in each round of distillation",
					Explanation: "Earlier rounds are over-provisioned to absorb distillation failures.",
				},
				{
					Path:        "tfactory.unitNamePerRound",
					Label:       "Distillation units",
					Description: "The types of distillation units",
					Explanation: "15-to-1 protocols in the Reed-Muller preparation or space-efficient variant.",
				},
				{
					Path:        "tfactory.codeDistancePerRound",
					Label:       "Distillation code distances",
					Description: "The code distance in each round of distillation",
					Explanation: "Zero marks a round running on physical qubits.",
				},
				{
					Path:        "physicalCountsFormatted.tfactoryPhysicalQubitsPerRound",
					Label:       "Number of physical qubits per round",
					Description: "The number of physical qubits used in each round",
					Explanation: "Units per round times the qubits of one unit.",
				},
				{
					Path:        "physicalCountsFormatted.tfactoryRuntimePerRound",
					Label:       "Runtime per round",
					Description: "The runtime of each distillation round",
					Explanation: "Physical rounds use gate times and logical rounds use logical cycles.",
				},
				{
					Path:        "physicalCountsFormatted.tstateLogicalErrorRate",
					Label:       "Logical T state error rate",
					Description: "Error rate of the produced T states",
					Explanation: "At most the required logical T state error rate.",
				},
			},
		})
	}

	groups = append(groups,
		model.ReportGroup{
			Title: "Pre-layout logical resources",
			Entries: []model.ReportEntry{
				{Path: "logicalCounts.numQubits", Label: "Logical qubits (pre-layout)", Description: "Number of logical qubits in the input program"},
				{Path: "logicalCounts.tCount", Label: "T gates", Description: "Number of T gates in the input program"},
				{Path: "logicalCounts.rotationCount", Label: "Rotation gates", Description: "Number of single-qubit rotations with arbitrary angles"},
				{Path: "logicalCounts.rotationDepth", Label: "Rotation depth", Description: "Number of rotation layers"},
				{Path: "logicalCounts.cczCount", Label: "CCZ gates", Description: "Number of CCZ gates"},
				{Path: "logicalCounts.ccixCount", Label: "CCiX gates", Description: "Number of CCiX gates"},
				{Path: "logicalCounts.measurementCount", Label: "Measurement operations", Description: "Number of single-qubit measurements"},
			},
		},
		model.ReportGroup{
			Title: "Assumed error budget",
			Entries: []model.ReportEntry{
				{Path: "physicalCountsFormatted.errorBudget", Label: "Total error budget", Description: "Probability that the computation fails", Explanation: fmt.Sprintf("Split with the %s policy.", r.JobParams.BudgetPolicy)},
				{Path: "physicalCountsFormatted.errorBudgetLogical", Label: "Logical error probability", Description: "Budget for logical qubit errors"},
				{Path: "physicalCountsFormatted.errorBudgetTstates", Label: "T distillation error probability", Description: "Budget for faulty T states"},
				{Path: "physicalCountsFormatted.errorBudgetRotations", Label: "Rotation synthesis error probability", Description: "Budget for approximate rotation synthesis"},
			},
		},
		model.ReportGroup{
			Title: "Physical qubit parameters",
			Entries: []model.ReportEntry{
				{Path: "jobParams.qubitParams.name", Label: "Qubit name", Description: "Preset or custom qubit name"},
				{Path: "jobParams.qubitParams.instructionSet", Label: "Instruction set", Description: "Native operations of the qubit"},
				{Path: "jobParams.qubitParams.oneQubitMeasurementTime", Label: "Single-qubit measurement time", Description: "Duration of a single-qubit measurement"},
				{Path: "jobParams.qubitParams.oneQubitGateTime", Label: "Single-qubit gate time", Description: "Duration of a single-qubit gate"},
				{Path: "jobParams.qubitParams.twoQubitGateTime", Label: "Two-qubit gate time", Description: "Duration of a two-qubit gate or joint measurement"},
				{Path: "jobParams.qubitParams.tGateTime", Label: "T gate time", Description: "Duration of a T gate"},
				{Path: "jobParams.qubitParams.oneQubitMeasurementErrorRate", Label: "Single-qubit measurement error rate", Description: "Probability of a measurement error"},
				{Path: "jobParams.qubitParams.oneQubitGateErrorRate", Label: "Single-qubit error rate", Description: "Probability of a single-qubit gate error"},
				{Path: "jobParams.qubitParams.twoQubitGateErrorRate", Label: "Two-qubit error rate", Description: "Probability of a two-qubit gate or joint measurement error"},
				{Path: "jobParams.qubitParams.tGateErrorRate", Label: "T gate error rate", Description: "Probability of a T gate error"},
				{Path: "jobParams.qubitParams.idleErrorRate", Label: "Idle error rate", Description: "Probability of an error while idling"},
			},
		},
		model.ReportGroup{
			Title: "Constraints",
			Entries: []model.ReportEntry{
				{Path: "jobParams.constraints.maxDistillationRounds", Label: "Maximum distillation rounds", Description: "Upper bound on rounds per T factory"},
				{Path: "jobParams.constraints.maxPhysicalQubits", Label: "Maximum physical qubits", Description: "Upper bound on the total number of physical qubits"},
				{Path: "jobParams.constraints.maxDuration", Label: "Maximum runtime", Description: "Upper bound on the total runtime"},
				{Path: "jobParams.constraints.maxTFactories", Label: "Maximum T factories", Description: "Upper bound on parallel T factories"},
				{Path: "jobParams.constraints.logicalDepthFactor", Label: "Logical depth factor", Description: "Factor applied to the algorithmic depth"},
			},
		},
	)
	return groups
}

var assumptions = []string{
	"Uniform independent physical noise. Physical qubit errors are modeled as independent and uniform over all operations of the same kind.",
	"Efficient classical computation. Classical processing such as decoding keeps up with the quantum computation and does not add to the runtime.",
	"Extraction circuits for planar quantum ISA. Stabilizer extraction uses only gates and measurements available in the qubit's instruction set.",
	"Uniform independent logical noise. The logical error rate of every logical operation is the per-cycle rate of the chosen code distance.",
	"Negligible Clifford costs for synthesis. Clifford operations used in rotation synthesis are absorbed into the logical depth.",
	"Smallest number of T factories. Factories run in parallel only as far as needed to supply T states within the algorithm runtime.",
	"T states are consumed as produced. Storage of distilled T states is not modeled.",
}

// Assumptions returns the fixed list of modeling assumptions.
func Assumptions() []string {
	return append([]string(nil), assumptions...)
}
