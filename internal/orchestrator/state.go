package orchestrator

// RunState is one state of the orchestration loop. Every transition is
// logged and emitted, so stop conditions can be tested in isolation and a
// run can be replayed from its log.
type RunState string

const (
	// StateScanning runs the enabled detector phases.
	StateScanning RunState = "scanning"
	// StateClassifying normalizes findings and dedupes against prior
	// iterations.
	StateClassifying RunState = "classifying"
	// StateFixing invokes the owning fixer for each fixable bug.
	StateFixing RunState = "fixing"
	// StateReverifying reruns only the phases whose bugs were targeted
	// for fix.
	StateReverifying RunState = "reverifying"
	// StateDone is the terminal state for a run that converged or
	// exhausted its budget.
	StateDone RunState = "done"
	// StateStopped is the terminal state for an early stop on an
	// unfixable CRITICAL bug.
	StateStopped RunState = "stopped"
)

// Valid reports whether s is a known run state.
func (s RunState) Valid() bool {
	switch s {
	case StateScanning, StateClassifying, StateFixing, StateReverifying, StateDone, StateStopped:
		return true
	}
	return false
}

// Terminal reports whether s ends the loop.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateStopped
}
