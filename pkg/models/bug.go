package models

// Severity classifies how badly a bug affects the project.
type Severity string

const (
	// SeverityCritical blocks build or runtime (missing dependency,
	// module-system mismatch, blank page, 5xx asset).
	SeverityCritical Severity = "CRITICAL"
	// SeverityMajor degrades the project without necessarily blocking it
	// (extension/syntax mismatch, cross-file port or env inconsistency).
	SeverityMajor Severity = "MAJOR"
	// SeverityMinor is advisory only and never triggers a stop.
	SeverityMinor Severity = "MINOR"
)

// Valid returns true if the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor:
		return true
	default:
		return false
	}
}

// Rank returns an ordinal for sorting, highest severity first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	case SeverityMinor:
		return 2
	default:
		return 3
	}
}

// Phase identifies the detector that produced a finding.
type Phase string

const (
	// PhaseDependencies is the dependency resolver.
	PhaseDependencies Phase = "dependencies"
	// PhaseConfig is the config validator.
	PhaseConfig Phase = "config"
	// PhaseVisual is the visual smoke-test pipeline.
	PhaseVisual Phase = "visual"
	// PhasePorts is the port manager.
	PhasePorts Phase = "ports"
)

// Valid returns true if the phase is a known value.
func (p Phase) Valid() bool {
	switch p {
	case PhaseDependencies, PhaseConfig, PhaseVisual, PhasePorts:
		return true
	default:
		return false
	}
}

// AllPhases lists every phase in canonical execution order.
func AllPhases() []Phase {
	return []Phase{PhaseDependencies, PhaseConfig, PhasePorts, PhaseVisual}
}

// Bug is a normalized finding produced by one detector phase.
// A Bug is immutable once created within an iteration.
type Bug struct {
	// ID is a short unique identifier assigned by the orchestrator.
	ID string `json:"id"`
	// Phase is the detector that found this bug.
	Phase Phase `json:"phase"`
	// Severity classifies the impact.
	Severity Severity `json:"severity"`
	// Type is a machine-readable bug category (e.g. "missing_dependency").
	Type string `json:"type"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// File is the affected file relative to the project root, if known.
	File string `json:"file,omitempty"`
	// Line is the affected line number, if known.
	Line int `json:"line,omitempty"`
	// Suggestion describes how to remedy the bug.
	Suggestion string `json:"suggestion,omitempty"`
	// Fixable indicates a deterministic remediation routine exists.
	Fixable bool `json:"fixable"`
}

// BugKey is the structural identity of a bug: two findings with the same
// key are the same bug, regardless of which iteration reported them.
type BugKey struct {
	Phase   Phase
	Type    string
	File    string
	Message string
}

// Key returns the bug's structural identity for dedup across iterations.
func (b Bug) Key() BugKey {
	return BugKey{Phase: b.Phase, Type: b.Type, File: b.File, Message: b.Message}
}

// Fix records the outcome of one remediation attempt.
type Fix struct {
	// BugID is the ID of the bug the fix targeted.
	BugID string `json:"bug_id"`
	// Action describes what the fixer did (or tried to do).
	Action string `json:"action"`
	// Success indicates whether the fix was applied.
	Success bool `json:"success"`
	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`
}
