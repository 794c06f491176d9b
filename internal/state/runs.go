package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/builderpro/buildcheck/pkg/models"
)

// RunRecord is one row of run history, with the full result available as
// JSON for detailed inspection.
type RunRecord struct {
	ID           string
	ProjectPath  string
	Iterations   int
	TotalBugs    int
	Fixed        int
	Remaining    int
	StoppedEarly bool
	StopReason   models.StopReason
	StartedAt    string
	FinishedAt   string
}

// SaveRun persists a finished orchestration result, including its bugs,
// inside one transaction.
func (db *DB) SaveRun(result *models.OrchestrationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (id, project_path, iterations, total_bugs, fixed, remaining,
				stopped_early, stop_reason, started_at, finished_at, result_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			result.RunID,
			result.ProjectPath,
			len(result.Iterations),
			result.Summary.TotalBugs,
			result.Summary.Fixed,
			result.Summary.Remaining,
			boolToInt(result.Summary.StoppedEarly),
			string(result.Summary.StopReason),
			formatTime(result.StartedAt),
			formatTime(result.FinishedAt),
			string(payload),
		)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", result.RunID, err)
		}

		seen := make(map[string]bool)
		for _, iter := range result.Iterations {
			for _, bug := range iter.BugsFound {
				if seen[bug.ID] {
					continue
				}
				seen[bug.ID] = true
				_, err := tx.Exec(`
					INSERT INTO bugs (run_id, bug_id, phase, severity, type, message, file, line, fixable)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				`,
					result.RunID,
					bug.ID,
					string(bug.Phase),
					string(bug.Severity),
					bug.Type,
					bug.Message,
					bug.File,
					bug.Line,
					boolToInt(bug.Fixable),
				)
				if err != nil {
					return fmt.Errorf("insert bug %s: %w", bug.ID, err)
				}
			}
		}
		return nil
	})
}

// ListRuns returns the most recent runs for a project, newest first.
// An empty projectPath lists runs across all projects.
func (db *DB) ListRuns(projectPath string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, project_path, iterations, total_bugs, fixed, remaining,
			stopped_early, stop_reason, started_at, finished_at
		FROM runs
	`
	args := []any{}
	if projectPath != "" {
		query += " WHERE project_path = ?"
		args = append(args, projectPath)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var stopped int
		var reason string
		if err := rows.Scan(&rec.ID, &rec.ProjectPath, &rec.Iterations, &rec.TotalBugs,
			&rec.Fixed, &rec.Remaining, &stopped, &reason, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		rec.StoppedEarly = stopped != 0
		rec.StopReason = models.StopReason(reason)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRun loads the full result of one run by ID.
func (db *DB) GetRun(runID string) (*models.OrchestrationResult, error) {
	var payload string
	row := db.QueryRow("SELECT result_json FROM runs WHERE id = ?", runID)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	var result models.OrchestrationResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", runID, err)
	}
	return &result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
