package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/builderpro/buildcheck/internal/orchestrator"
	"github.com/builderpro/buildcheck/internal/state"
)

var (
	historyLimit int
	historyAll   bool
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [project-path]",
	Short: "List past validation runs",
	Long: `List the runs recorded in the project's history database
(.buildcheck/state.db), newest first.

Examples:
  buildcheck history
  buildcheck history ./my-app --limit 5
  buildcheck history --purge 720h     # drop runs older than 30 days`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the full report of one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := state.OpenProject(".")
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		result, err := db.GetRun(args[0])
		if err != nil {
			return err
		}
		fmt.Print(orchestrator.GenerateReport(result))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "List runs for every project in this database")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete runs older than this duration before listing")
	historyCmd.AddCommand(historyShowCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	projectPath := "."
	if len(args) > 0 {
		projectPath = args[0]
	}

	db, err := state.OpenProject(projectPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	if historyPurge > 0 {
		deleted, err := db.PurgeOldRuns(historyPurge)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d old run(s)\n", deleted)
	}

	filter := ""
	if !historyAll {
		// Runs are recorded under the absolute project path.
		abs, err := filepath.Abs(projectPath)
		if err != nil {
			return err
		}
		filter = abs
	}
	records, err := db.ListRuns(filter, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-10s %-20s %5s %5s %5s %-20s %s\n",
		"RUN", "STARTED", "BUGS", "FIXED", "LEFT", "REASON", "PROJECT")
	for _, rec := range records {
		fmt.Printf("%-10s %-20s %5d %5d %5d %-20s %s\n",
			rec.ID, rec.StartedAt, rec.TotalBugs, rec.Fixed, rec.Remaining, rec.StopReason, rec.ProjectPath)
	}
	return nil
}
