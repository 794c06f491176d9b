// Package detector defines the contract all scan phases conform to.
//
// Detectors are heuristic: a finding is evidence of a likely defect, not a
// proof. Tests assert that known defects are detected, not that false
// negatives never occur.
package detector

import (
	"context"
	"sort"

	"github.com/builderpro/buildcheck/pkg/models"
)

// Finding is one raw detector result, normalizable to a models.Bug.
type Finding struct {
	// Phase is the detector that produced the finding.
	Phase models.Phase
	// Severity classifies the impact.
	Severity models.Severity
	// Type is a machine-readable category (e.g. "missing_dependency").
	Type string
	// Message is the human-readable description.
	Message string
	// Subject is the machine-readable target of the finding (a package
	// name, service name, or config key) consumed by fixers.
	Subject string
	// File is the affected file relative to the project root, if known.
	File string
	// Line is the affected line, if known.
	Line int
	// Suggestion describes how to remedy the finding.
	Suggestion string
	// Fixable indicates a deterministic remediation routine exists.
	Fixable bool
}

// Detector is one independent scan phase. Detectors are stateless: they
// receive a project path, return findings, and retain no references into
// orchestrator state.
type Detector interface {
	// Phase identifies the detector.
	Phase() models.Phase
	// Detect scans the project and returns findings sorted by file and line.
	Detect(ctx context.Context, projectPath string) ([]Finding, error)
}

// Fixer remedies findings its detector reported as fixable.
type Fixer interface {
	// Fix applies the deterministic remediation for the finding.
	// It returns a short description of the action taken.
	Fix(ctx context.Context, projectPath string, f Finding) (action string, err error)
}

// Sort orders findings deterministically by file, line, type, then message.
// Detectors that scan concurrently must sort before returning so that
// concurrency never reorders results.
func Sort(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Message < b.Message
	})
}
