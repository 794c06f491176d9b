package orchestrator

import (
	"testing"

	"github.com/builderpro/buildcheck/internal/detector"
	"github.com/builderpro/buildcheck/pkg/models"
)

func TestRegistryDedupesAcrossIterations(t *testing.T) {
	r := newBugRegistry()
	f := finding(models.PhaseConfig, models.SeverityMajor, "port_conflict", "two ports for frontend", false)

	_, fresh1 := r.observe([]detector.Finding{f}, 1)
	if len(fresh1) != 1 {
		t.Fatalf("fresh on first observe = %d, want 1", len(fresh1))
	}
	id := fresh1[0].bug.ID

	present, fresh2 := r.observe([]detector.Finding{f}, 2)
	if len(fresh2) != 0 {
		t.Errorf("fresh on repeat observe = %d, want 0", len(fresh2))
	}
	if len(present) != 1 || present[0].bug.ID != id {
		t.Errorf("repeat observe should reuse the record, got %+v", present)
	}
	if r.total() != 1 {
		t.Errorf("total = %d, want 1", r.total())
	}
}

func TestRegistryDedupesWithinOneBatch(t *testing.T) {
	r := newBugRegistry()
	f := finding(models.PhaseDependencies, models.SeverityCritical, "missing_dependency", "missing plugin", true)

	present, _ := r.observe([]detector.Finding{f, f}, 1)
	if len(present) != 1 {
		t.Errorf("present = %d, want 1 after in-batch dedup", len(present))
	}
}

func TestRegistryReverifyMarksFixed(t *testing.T) {
	r := newBugRegistry()
	gone := finding(models.PhaseConfig, models.SeverityMajor, "env_duplicate_key", "PORT twice", true)
	stays := finding(models.PhaseConfig, models.SeverityMajor, "port_conflict", "two ports", false)
	other := finding(models.PhaseDependencies, models.SeverityCritical, "missing_dependency", "missing plugin", true)
	r.observe([]detector.Finding{gone, stays, other}, 1)

	// Re-scan of the config phase no longer shows the duplicate key.
	r.reverify([]models.Phase{models.PhaseConfig}, []detector.Finding{stays})

	if got := r.fixedCount(); got != 1 {
		t.Errorf("fixedCount = %d, want 1", got)
	}
	// The dependencies phase was not rescanned, so its bug is untouched.
	for _, rec := range r.records() {
		if rec.bug.Phase == models.PhaseDependencies && rec.fixed {
			t.Error("bug in unrescanned phase must not be marked fixed")
		}
	}
}

func TestRegistryReappearanceClearsFixed(t *testing.T) {
	r := newBugRegistry()
	f := finding(models.PhaseConfig, models.SeverityMajor, "env_duplicate_key", "PORT twice", true)
	r.observe([]detector.Finding{f}, 1)
	r.reverify([]models.Phase{models.PhaseConfig}, nil)
	if r.fixedCount() != 1 {
		t.Fatal("expected bug marked fixed after clean reverify")
	}

	r.observe([]detector.Finding{f}, 2)
	if r.fixedCount() != 0 {
		t.Error("a bug seen again must lose its fixed mark")
	}
}

func TestRegistryHasUnfixedCritical(t *testing.T) {
	r := newBugRegistry()
	if r.hasUnfixedCritical() {
		t.Error("empty registry has no critical bugs")
	}

	crit := finding(models.PhaseDependencies, models.SeverityCritical, "missing_dependency", "missing plugin", true)
	r.observe([]detector.Finding{crit}, 1)
	if !r.hasUnfixedCritical() {
		t.Error("open critical bug should be reported")
	}

	r.reverify([]models.Phase{models.PhaseDependencies}, nil)
	if r.hasUnfixedCritical() {
		t.Error("fixed critical bug should not be reported")
	}
}
