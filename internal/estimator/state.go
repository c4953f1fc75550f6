package estimator

import "fmt"

// State is a step of a single estimation pass.
type State int

const (
	Initialized State = iota
	BudgetAllocated
	LayoutPlanned
	FactoryPlanned
	Assembled
	Succeeded
	Failed
)

var stateNames = [...]string{
	Initialized:     "Initialized",
	BudgetAllocated: "BudgetAllocated",
	LayoutPlanned:   "LayoutPlanned",
	FactoryPlanned:  "FactoryPlanned",
	Assembled:       "Assembled",
	Succeeded:       "Success",
	Failed:          "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// machine enforces the strictly sequential state order. Failed is reachable
// from any non-terminal state.
type machine struct {
	state   State
	history []State
}

func newMachine() *machine {
	return &machine{state: Initialized, history: []State{Initialized}}
}

func (m *machine) advance(next State) error {
	if m.state.Terminal() {
		return fmt.Errorf("estimator: transition %s -> %s from terminal state", m.state, next)
	}
	if next != Failed && next != m.state+1 {
		return fmt.Errorf("estimator: illegal transition %s -> %s", m.state, next)
	}
	m.state = next
	m.history = append(m.history, next)
	return nil
}

func (m *machine) fail() {
	if !m.state.Terminal() {
		m.state = Failed
		m.history = append(m.history, Failed)
	}
}
