package hardware

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/efebarandurmaz/qre/internal/formula"
)

// Preset names used when a request leaves qubit or scheme unset.
const (
	DefaultQubit  = "qubit_gate_ns_e3"
	DefaultScheme = "surface_code"
)

// Catalog stores qubit and QEC scheme presets. Schemes are keyed by name and
// instruction set, so one scheme name can cover several qubit technologies.
type Catalog struct {
	mu      sync.RWMutex
	qubits  map[string]QubitParams
	schemes map[string]map[InstructionSet]QecScheme
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		qubits:  make(map[string]QubitParams),
		schemes: make(map[string]map[InstructionSet]QecScheme),
	}
}

func (c *Catalog) RegisterQubit(q QubitParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qubits[normalizeName(q.Name)] = q
}

func (c *Catalog) RegisterScheme(s QecScheme) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := normalizeName(s.Name)
	if c.schemes[name] == nil {
		c.schemes[name] = make(map[InstructionSet]QecScheme)
	}
	c.schemes[name][s.InstructionSet] = s
}

func (c *Catalog) Qubit(name string) (QubitParams, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.qubits[normalizeName(name)]
	if !ok {
		return QubitParams{}, fmt.Errorf("no qubit preset named %q", name)
	}
	return q, nil
}

func (c *Catalog) Scheme(name string, set InstructionSet) (QecScheme, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bySet, ok := c.schemes[normalizeName(name)]
	if !ok {
		return QecScheme{}, fmt.Errorf("no QEC scheme preset named %q", name)
	}
	s, ok := bySet[set]
	if !ok {
		return QecScheme{}, fmt.Errorf("QEC scheme %q is not available for %s qubits", name, set)
	}
	return s, nil
}

// Qubits returns every qubit preset sorted by name.
func (c *Catalog) Qubits() []QubitParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]QubitParams, 0, len(c.qubits))
	for _, q := range c.qubits {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schemes returns every scheme preset sorted by name, then instruction set.
func (c *Catalog) Schemes() []QecScheme {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []QecScheme
	for _, bySet := range c.schemes {
		for _, s := range bySet {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].InstructionSet < out[j].InstructionSet
	})
	return out
}

// ResolveQubit looks up the named preset and applies the spec's overrides.
func (c *Catalog) ResolveQubit(spec QubitSpec) (QubitParams, error) {
	var q QubitParams
	switch {
	case spec.Name == "" && spec.InstructionSet != "":
		q = QubitParams{Name: "custom"}
	default:
		name := spec.Name
		if name == "" {
			name = DefaultQubit
		}
		preset, err := c.Qubit(name)
		if err != nil {
			if spec.InstructionSet == "" {
				return QubitParams{}, err
			}
			preset = QubitParams{Name: name}
		}
		q = preset
	}
	if q.InstructionSet == "" {
		if missing := spec.missing(); len(missing) > 0 {
			return QubitParams{}, fmt.Errorf("custom qubit %q must set %s", q.Name, strings.Join(missing, ", "))
		}
	}
	q, err := spec.apply(q)
	if err != nil {
		return QubitParams{}, err
	}
	if err := q.Validate(); err != nil {
		return QubitParams{}, err
	}
	return q, nil
}

// ResolveScheme looks up the named scheme for the qubit's instruction set and
// applies the spec's overrides. An unknown name is accepted when the spec
// defines the whole model.
func (c *Catalog) ResolveScheme(spec SchemeSpec, q QubitParams) (QecScheme, error) {
	name := spec.Name
	if name == "" {
		name = DefaultScheme
	}
	s, err := c.Scheme(name, q.InstructionSet)
	if err != nil {
		if !spec.complete() {
			return QecScheme{}, err
		}
		s = QecScheme{Name: name, InstructionSet: q.InstructionSet, MaxCodeDistance: DefaultMaxCodeDistance}
	}
	s, err = spec.apply(s)
	if err != nil {
		return QecScheme{}, fmt.Errorf("scheme %q: %w", name, err)
	}
	if err := s.Validate(); err != nil {
		return QecScheme{}, err
	}
	if _, err := s.CycleTime(q, 1); err != nil {
		return QecScheme{}, err
	}
	if _, err := s.PhysicalQubits(q, 1); err != nil {
		return QecScheme{}, err
	}
	return s, nil
}

func (s SchemeSpec) complete() bool {
	return s.ErrorCorrectionThreshold != nil && s.CrossingPrefactor != nil &&
		s.LogicalCycleTime != "" && s.PhysicalQubitsPerLogicalQubit != ""
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the shared catalog of built-in presets.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = NewCatalog()
		for _, q := range builtinQubits() {
			defaultCatalog.RegisterQubit(q)
		}
		for _, s := range builtinSchemes() {
			defaultCatalog.RegisterScheme(s)
		}
	})
	return defaultCatalog
}

func builtinQubits() []QubitParams {
	gate := func(name string, meas, gate Duration, clifford, t float64) QubitParams {
		return QubitParams{
			Name:                         name,
			InstructionSet:               GateBased,
			OneQubitMeasurementTime:      meas,
			OneQubitGateTime:             gate,
			TwoQubitGateTime:             gate,
			TGateTime:                    gate,
			OneQubitMeasurementErrorRate: clifford,
			OneQubitGateErrorRate:        clifford,
			TwoQubitGateErrorRate:        clifford,
			TGateErrorRate:               t,
			IdleErrorRate:                clifford,
		}
	}
	maj := func(name string, clifford, t float64) QubitParams {
		return QubitParams{
			Name:                         name,
			InstructionSet:               Majorana,
			OneQubitMeasurementTime:      100,
			OneQubitGateTime:             100,
			TwoQubitGateTime:             100,
			TGateTime:                    100,
			OneQubitMeasurementErrorRate: clifford,
			OneQubitGateErrorRate:        clifford,
			TwoQubitGateErrorRate:        clifford,
			TGateErrorRate:               t,
			IdleErrorRate:                clifford,
		}
	}
	return []QubitParams{
		gate("qubit_gate_ns_e3", 100, 50, 1e-3, 1e-3),
		gate("qubit_gate_ns_e4", 100, 50, 1e-4, 1e-4),
		gate("qubit_gate_us_e3", 100_000, 100_000, 1e-3, 1e-6),
		gate("qubit_gate_us_e4", 100_000, 100_000, 1e-4, 1e-6),
		maj("qubit_maj_ns_e4", 1e-4, 0.05),
		maj("qubit_maj_ns_e6", 1e-6, 0.01),
	}
}

func builtinSchemes() []QecScheme {
	return []QecScheme{
		{
			Name:                          "surface_code",
			InstructionSet:                GateBased,
			ErrorCorrectionThreshold:      0.01,
			CrossingPrefactor:             0.03,
			LogicalCycleTime:              formula.MustCompile("(4 * twoQubitGateTime + 2 * oneQubitMeasurementTime) * codeDistance"),
			PhysicalQubitsPerLogicalQubit: formula.MustCompile("2 * codeDistance * codeDistance"),
			MaxCodeDistance:               DefaultMaxCodeDistance,
		},
		{
			Name:                          "surface_code",
			InstructionSet:                Majorana,
			ErrorCorrectionThreshold:      0.0015,
			CrossingPrefactor:             0.08,
			LogicalCycleTime:              formula.MustCompile("20 * oneQubitMeasurementTime * codeDistance"),
			PhysicalQubitsPerLogicalQubit: formula.MustCompile("2 * codeDistance * codeDistance"),
			MaxCodeDistance:               DefaultMaxCodeDistance,
		},
		{
			Name:                          "floquet_code",
			InstructionSet:                Majorana,
			ErrorCorrectionThreshold:      0.01,
			CrossingPrefactor:             0.07,
			LogicalCycleTime:              formula.MustCompile("3 * oneQubitMeasurementTime * codeDistance"),
			PhysicalQubitsPerLogicalQubit: formula.MustCompile("4 * codeDistance * codeDistance + 8 * (codeDistance - 1)"),
			MaxCodeDistance:               DefaultMaxCodeDistance,
		},
	}
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
