package models

import "time"

// IterationResult records one pass of the scan/fix loop.
type IterationResult struct {
	// Number is the 1-based iteration index.
	Number int `json:"number"`
	// BugsFound lists every bug detected in this iteration.
	BugsFound []Bug `json:"bugs_found"`
	// FixesApplied lists every fix attempted in this iteration.
	FixesApplied []Fix `json:"fixes_applied"`
	// StartedAt is when the iteration began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the iteration ended.
	FinishedAt time.Time `json:"finished_at"`
}

// StopReason explains why an orchestration run ended.
type StopReason string

const (
	// StopReasonClean means an iteration found zero bugs.
	StopReasonClean StopReason = "clean"
	// StopReasonCritical means an unfixable CRITICAL bug halted the run.
	StopReasonCritical StopReason = "critical_unfixable"
	// StopReasonExhausted means the iteration budget ran out with bugs remaining.
	StopReasonExhausted StopReason = "max_iterations"
)

// Summary aggregates bug and fix counts for a whole run.
// TotalBugs counts distinct bugs across all iterations, deduped by
// structural identity, never a naive per-iteration sum.
type Summary struct {
	// TotalBugs is the distinct bug count across the run.
	TotalBugs int `json:"total_bugs"`
	// Fixed counts bugs whose post-fix reverification found no match.
	Fixed int `json:"fixed"`
	// Remaining is TotalBugs - Fixed.
	Remaining int `json:"remaining"`
	// SuccessRate is Fixed / TotalBugs, or 1 when no bugs were found.
	SuccessRate float64 `json:"success_rate"`
	// StoppedEarly is true when an unfixable CRITICAL bug halted the run.
	StoppedEarly bool `json:"stopped_early"`
	// StopReason names the loop-exit condition.
	StopReason StopReason `json:"stop_reason"`
}

// OrchestrationResult is the complete outcome of one orchestrate() call.
// It is created at call start, finalized at loop exit, and never mutated
// after return.
type OrchestrationResult struct {
	// RunID is a short unique identifier for this run.
	RunID string `json:"run_id"`
	// ProjectPath is the project root that was scanned.
	ProjectPath string `json:"project_path"`
	// Iterations is the append-only sequence of loop passes.
	Iterations []IterationResult `json:"iterations"`
	// Summary aggregates the run.
	Summary Summary `json:"summary"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run ended.
	FinishedAt time.Time `json:"finished_at"`
}

// PortAllocation maps service names to the ports assigned to them.
// An allocation is valid only for the busy-port snapshot it was computed
// from; it is a best-effort reservation, not a guarantee.
type PortAllocation map[string]int
