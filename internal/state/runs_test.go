package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/builderpro/buildcheck/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func testRun(id, projectPath string, startedAt time.Time) *models.OrchestrationResult {
	return &models.OrchestrationResult{
		RunID:       id,
		ProjectPath: projectPath,
		StartedAt:   startedAt,
		FinishedAt:  startedAt.Add(5 * time.Second),
		Iterations: []models.IterationResult{
			{
				Number: 1,
				BugsFound: []models.Bug{
					{ID: "b1", Phase: models.PhaseDependencies, Severity: models.SeverityCritical,
						Type: "missing_dependency", Message: "missing plugin", File: "package.json", Fixable: true},
				},
				FixesApplied: []models.Fix{
					{BugID: "b1", Action: "added plugin", Success: true},
				},
			},
		},
		Summary: models.Summary{
			TotalBugs: 1, Fixed: 1, SuccessRate: 1,
			StopReason: models.StopReasonClean,
		},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)
	run := testRun("run1", "/tmp/project", time.Now())

	if err := db.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := db.GetRun("run1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.RunID != "run1" || got.ProjectPath != "/tmp/project" {
		t.Errorf("got %s at %s, want run1 at /tmp/project", got.RunID, got.ProjectPath)
	}
	if len(got.Iterations) != 1 || len(got.Iterations[0].BugsFound) != 1 {
		t.Errorf("round-tripped run lost iterations: %+v", got.Iterations)
	}
	if got.Summary.StopReason != models.StopReasonClean {
		t.Errorf("stopReason = %s, want clean", got.Summary.StopReason)
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetRun("nope"); err == nil {
		t.Error("expected error for unknown run ID")
	}
}

func TestListRunsFiltersAndOrders(t *testing.T) {
	db := openTestDB(t)
	base := time.Now().Add(-time.Hour)
	for i, spec := range []struct{ id, path string }{
		{"run-a", "/tmp/alpha"},
		{"run-b", "/tmp/beta"},
		{"run-c", "/tmp/alpha"},
	} {
		run := testRun(spec.id, spec.path, base.Add(time.Duration(i)*time.Minute))
		if err := db.SaveRun(run); err != nil {
			t.Fatalf("SaveRun %s: %v", spec.id, err)
		}
	}

	records, err := db.ListRuns("/tmp/alpha", 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].ID != "run-c" || records[1].ID != "run-a" {
		t.Errorf("order = %s, %s; want newest first", records[0].ID, records[1].ID)
	}

	all, err := db.ListRuns("", 10)
	if err != nil {
		t.Fatalf("ListRuns all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all records = %d, want 3", len(all))
	}
}

func TestSaveRunDeduplicatesBugsAcrossIterations(t *testing.T) {
	db := openTestDB(t)
	run := testRun("run-dup", "/tmp/project", time.Now())
	// Same bug ID observed in a second iteration must not violate the
	// primary key.
	run.Iterations = append(run.Iterations, models.IterationResult{
		Number:    2,
		BugsFound: run.Iterations[0].BugsFound,
	})

	if err := db.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM bugs WHERE run_id = ?", "run-dup")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count bugs: %v", err)
	}
	if count != 1 {
		t.Errorf("bug rows = %d, want 1", count)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := openTestDB(t)
	old := testRun("run-old", "/tmp/project", time.Now().Add(-48*time.Hour))
	fresh := testRun("run-new", "/tmp/project", time.Now())
	if err := db.SaveRun(old); err != nil {
		t.Fatalf("SaveRun old: %v", err)
	}
	if err := db.SaveRun(fresh); err != nil {
		t.Fatalf("SaveRun new: %v", err)
	}

	deleted, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := db.GetRun("run-new"); err != nil {
		t.Errorf("recent run should survive purge: %v", err)
	}
}
