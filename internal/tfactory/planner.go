package tfactory

import (
	"context"
	"math"

	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/layout"
)

// DefaultMaxRounds bounds the number of distillation rounds.
const DefaultMaxRounds = 3

// saturation is the relative output improvement below which a larger code
// distance for the same round is considered no better.
const saturation = 1e-9

// Round is one distillation stage of a factory.
type Round struct {
	Unit string `json:"unit"`
	// CodeDistance is zero when the round runs on physical qubits.
	CodeDistance       int               `json:"codeDistance"`
	NumUnits           uint64            `json:"numUnits"`
	PhysicalQubits     uint64            `json:"physicalQubits"`
	Duration           hardware.Duration `json:"duration"`
	InputErrorRate     float64           `json:"inputErrorRate"`
	OutputErrorRate    float64           `json:"outputErrorRate"`
	FailureProbability float64           `json:"failureProbability"`

	unitQubits  uint64
	numInputTs  uint64
	numOutputTs uint64
}

// Physical reports whether the round runs directly on physical qubits.
func (r Round) Physical() bool { return r.CodeDistance == 0 }

// Factory is a pipeline of distillation rounds producing T states.
type Factory struct {
	Rounds             []Round           `json:"rounds"`
	PhysicalQubits     uint64            `json:"physicalQubits"`
	Duration           hardware.Duration `json:"duration"`
	NumInputTStates    uint64            `json:"numInputTstates"`
	NumOutputTStates   uint64            `json:"numOutputTstates"`
	OutputErrorRate    float64           `json:"outputErrorRate"`
	SuccessProbability float64           `json:"successProbability"`
}

// cost is the space-time volume per expected output T state.
func (f Factory) cost() float64 {
	return float64(f.PhysicalQubits) * float64(f.Duration) / (float64(f.NumOutputTStates) * f.SuccessProbability)
}

// better orders candidates: lower cost, then fewer qubits, then shorter
// duration. Equal candidates keep enumeration order.
func (f Factory) better(than Factory) bool {
	if a, b := f.cost(), than.cost(); a != b {
		return a < b
	}
	if f.PhysicalQubits != than.PhysicalQubits {
		return f.PhysicalQubits < than.PhysicalQubits
	}
	return f.Duration < than.Duration
}

// Stats describes a planning run.
type Stats struct {
	Candidates int
}

// Planner searches distillation pipelines for a qubit technology and QEC scheme.
type Planner struct {
	Qubit     hardware.QubitParams
	Scheme    hardware.QecScheme
	Units     []Unit
	MaxRounds int
}

// NewPlanner creates a planner with the default units and round limit.
func NewPlanner(q hardware.QubitParams, s hardware.QecScheme) *Planner {
	return &Planner{Qubit: q, Scheme: s, Units: DefaultUnits(), MaxRounds: DefaultMaxRounds}
}

// Plan finds the cheapest factory whose output error rate is at most
// required. The context is checked between candidates.
func (p *Planner) Plan(ctx context.Context, required float64) (Factory, Stats, error) {
	if p.MaxRounds < 0 {
		return Factory{}, Stats{}, errs.New(errs.KindConfiguration, errs.StageTFactory,
			"max distillation rounds must not be negative, got %d", p.MaxRounds)
	}
	for _, u := range p.Units {
		if err := u.Validate(); err != nil {
			return Factory{}, Stats{}, errs.Wrap(errs.KindConfiguration, errs.StageTFactory, err)
		}
	}
	s, err := p.newSearch(ctx, required)
	if err != nil {
		return Factory{}, Stats{}, err
	}

	if p.Qubit.TGateErrorRate <= required {
		s.consider(nil)
	}
	if p.MaxRounds > 0 {
		if err := s.extend(nil, p.Qubit.TGateErrorRate, 3); err != nil {
			return Factory{}, s.stats, err
		}
	}
	if s.best == nil {
		return Factory{}, s.stats, errs.New(errs.KindNoFeasibleTFactory, errs.StageTFactory,
			"no factory with at most %d distillation rounds reaches T-state error rate %.3e", p.MaxRounds, required)
	}
	return *s.best, s.stats, nil
}

type search struct {
	ctx      context.Context
	p        *Planner
	required float64
	clifford float64
	// logical holds logical qubits indexed by code distance.
	logical  map[int]layout.LogicalQubit
	physical []hardware.Duration
	best     *Factory
	stats    Stats
}

func (p *Planner) newSearch(ctx context.Context, required float64) (*search, error) {
	s := &search{
		ctx:      ctx,
		p:        p,
		required: required,
		clifford: p.Qubit.CliffordErrorRate(),
		logical:  make(map[int]layout.LogicalQubit),
		physical: make([]hardware.Duration, len(p.Units)),
	}
	lp := layout.NewPlanner(p.Qubit, p.Scheme)
	for d := 3; d <= p.Scheme.MaxCodeDistance; d += 2 {
		lq, err := lp.QubitAt(d)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, errs.StageTFactory, err)
		}
		s.logical[d] = lq
	}
	for i, u := range p.Units {
		if !u.physical() {
			continue
		}
		dur, err := u.physicalDuration(p.Qubit)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, errs.StageTFactory, err)
		}
		s.physical[i] = dur
	}
	return s, nil
}

// extend appends one more round to prefix. The first round may be physical;
// later rounds are logical with non-decreasing code distance.
func (s *search) extend(prefix []Round, inputErrorRate float64, minDistance int) error {
	for i, u := range s.p.Units {
		if len(prefix) == 0 && u.physical() {
			r, ok, err := s.round(i, 0, inputErrorRate)
			if err != nil {
				return err
			}
			if ok {
				if err := s.descend(prefix, r); err != nil {
					return err
				}
			}
		}
		if !u.logical() {
			continue
		}
		prevOutput := math.Inf(1)
		for d := minDistance; d <= s.p.Scheme.MaxCodeDistance; d += 2 {
			r, ok, err := s.round(i, d, inputErrorRate)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if r.OutputErrorRate >= prevOutput*(1-saturation) {
				break
			}
			prevOutput = r.OutputErrorRate
			if err := s.descend(prefix, r); err != nil {
				return err
			}
			if r.OutputErrorRate <= s.required {
				// Larger distances only cost more for the same result.
				break
			}
		}
	}
	return nil
}

func (s *search) descend(prefix []Round, r Round) error {
	rounds := append(append(make([]Round, 0, len(prefix)+1), prefix...), r)
	if s.best != nil && lowerBound(rounds) > s.best.cost() {
		return nil
	}
	if r.OutputErrorRate <= s.required {
		s.consider(rounds)
		return nil
	}
	if len(rounds) >= s.p.MaxRounds {
		return nil
	}
	next := r.CodeDistance
	if next < 3 {
		next = 3
	}
	return s.extend(rounds, r.OutputErrorRate, next)
}

// round evaluates unit i at distance d (zero for physical qubits). ok is false
// when the round does not improve on its input.
func (s *search) round(i, d int, inputErrorRate float64) (Round, bool, error) {
	if err := s.ctx.Err(); err != nil {
		return Round{}, false, errs.Wrap(errs.KindCanceled, errs.StageTFactory, err)
	}
	s.stats.Candidates++

	u := s.p.Units[i]
	r := Round{
		Unit:           u.Name,
		CodeDistance:   d,
		InputErrorRate: inputErrorRate,
		numInputTs:     u.NumInputTs,
		numOutputTs:    u.NumOutputTs,
	}
	clifford := s.clifford
	if d == 0 {
		r.unitQubits = u.PhysicalQubits
		r.Duration = s.physical[i]
	} else {
		lq := s.logical[d]
		clifford = lq.LogicalErrorRate
		r.unitQubits = u.LogicalQubits * lq.PhysicalQubits
		r.Duration = hardware.Duration(u.LogicalCycles) * lq.LogicalCycleTime
	}
	failure, output, err := u.evaluate(s.p.Qubit, inputErrorRate, clifford)
	if err != nil {
		return Round{}, false, errs.Wrap(errs.KindConfiguration, errs.StageTFactory, err)
	}
	r.FailureProbability = failure
	r.OutputErrorRate = output
	if failure >= 1 || failure < 0 || output >= inputErrorRate || output < 0 {
		return r, false, nil
	}
	return r, true, nil
}

// lowerBound is the cheapest cost any completion of rounds can have: at
// least one unit per round and a success probability of at most one.
func lowerBound(rounds []Round) float64 {
	var qubits uint64
	var duration hardware.Duration
	for _, r := range rounds {
		qubits = max(qubits, r.unitQubits)
		duration += r.Duration
	}
	return float64(qubits) * float64(duration)
}

func (s *search) consider(rounds []Round) {
	f := s.assemble(rounds)
	if s.best == nil || f.better(*s.best) {
		s.best = &f
	}
}

// assemble sizes each round so that, in expectation, it feeds the next one.
func (s *search) assemble(rounds []Round) Factory {
	if len(rounds) == 0 {
		return Factory{
			PhysicalQubits:     1,
			Duration:           s.p.Qubit.TGateTime,
			NumInputTStates:    1,
			NumOutputTStates:   1,
			OutputErrorRate:    s.p.Qubit.TGateErrorRate,
			SuccessProbability: 1,
		}
	}
	out := make([]Round, len(rounds))
	copy(out, rounds)
	last := len(out) - 1
	out[last].NumUnits = 1
	for i := last - 1; i >= 0; i-- {
		needed := float64(out[i+1].NumUnits * out[i+1].numInputTs)
		perUnit := float64(out[i].numOutputTs) * (1 - out[i].FailureProbability)
		out[i].NumUnits = uint64(math.Ceil(needed / perUnit))
	}

	f := Factory{Rounds: out}
	for i := range out {
		out[i].PhysicalQubits = out[i].NumUnits * out[i].unitQubits
		f.PhysicalQubits = max(f.PhysicalQubits, out[i].PhysicalQubits)
		f.Duration += out[i].Duration
	}
	f.NumInputTStates = out[0].NumUnits * out[0].numInputTs
	f.NumOutputTStates = out[last].NumUnits * out[last].numOutputTs
	f.OutputErrorRate = out[last].OutputErrorRate
	f.SuccessProbability = 1 - out[last].FailureProbability
	return f
}
