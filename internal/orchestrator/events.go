// Package orchestrator runs the scan/classify/fix/reverify loop over a
// project and owns the result of a run.
package orchestrator

import (
	"time"

	"github.com/builderpro/buildcheck/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run has begun.
	EventRunStarted EventType = "run_started"
	// EventStateChanged indicates the loop moved to a new state.
	EventStateChanged EventType = "state_changed"
	// EventPhaseStarted indicates a detector phase began scanning.
	EventPhaseStarted EventType = "phase_started"
	// EventPhaseCompleted indicates a detector phase finished scanning.
	EventPhaseCompleted EventType = "phase_completed"
	// EventBugFound indicates a new bug entered the registry.
	EventBugFound EventType = "bug_found"
	// EventFixApplied indicates a fixer succeeded.
	EventFixApplied EventType = "fix_applied"
	// EventFixFailed indicates a fixer ran and failed.
	EventFixFailed EventType = "fix_failed"
	// EventIterationCompleted indicates one loop pass finished.
	EventIterationCompleted EventType = "iteration_completed"
	// EventRunCompleted indicates the whole run is over.
	EventRunCompleted EventType = "run_completed"
)

// Event represents an event emitted by the orchestrator.
// These events drive CLI progress output and watch mode.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run the event belongs to.
	RunID string
	// Iteration is the 1-based loop pass, 0 for run-level events.
	Iteration int
	// State is the loop state for state_changed events.
	State RunState
	// Phase is the detector phase, if applicable.
	Phase models.Phase
	// Bug is the related bug, if applicable.
	Bug *models.Bug
	// Fix is the related fix, if applicable.
	Fix *models.Fix
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
