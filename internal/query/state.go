package query

import "fmt"

// State is a stage of a single query.
type State string

// Query states, in order.
const (
	StateRequested      State = "requested"
	StateScriptObtained State = "script_obtained"
	StateExecuted       State = "executed"
	StateInterpreted    State = "interpreted"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

var forward = map[State]State{
	StateRequested:      StateScriptObtained,
	StateScriptObtained: StateExecuted,
	StateExecuted:       StateInterpreted,
	StateInterpreted:    StateDone,
}

// failureExits lists the only state each non-cancellation failure may
// leave from.
var failureExits = map[Kind]State{
	KindModelUnavailable:      StateRequested,
	KindScriptExecutionFailed: StateScriptObtained,
	KindInterpretationFailed:  StateInterpreted,
}

// Machine tracks a query's progress and rejects transitions that skip or
// revisit a state.
type Machine struct {
	state State
	trace []State
}

// NewMachine starts a machine in StateRequested.
func NewMachine() *Machine {
	return &Machine{state: StateRequested, trace: []State{StateRequested}}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Trace returns every state visited, in order.
func (m *Machine) Trace() []State { return append([]State(nil), m.trace...) }

// Terminal reports whether the query has finished.
func (m *Machine) Terminal() bool { return m.state == StateDone || m.state == StateFailed }

// Advance moves to next, which must be the successor of the current state.
func (m *Machine) Advance(next State) error {
	want, ok := forward[m.state]
	if !ok || want != next {
		return fmt.Errorf("illegal transition %s -> %s", m.state, next)
	}
	m.state = next
	m.trace = append(m.trace, next)
	return nil
}

// Fail moves to StateFailed for the given failure kind. Cancellation and
// prompt errors may leave from any non-terminal state; other kinds only
// from their own stage.
func (m *Machine) Fail(kind Kind) error {
	if m.Terminal() {
		return fmt.Errorf("illegal transition %s -> %s", m.state, StateFailed)
	}
	if kind != KindCancelled && kind != KindPromptInvalid {
		if from, ok := failureExits[kind]; !ok || from != m.state {
			return fmt.Errorf("illegal failure %s from %s", kind, m.state)
		}
	}
	m.state = StateFailed
	m.trace = append(m.trace, StateFailed)
	return nil
}
