package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/builderpro/buildcheck/pkg/models"
)

// timeUnit is the rounding granularity for durations in reports.
const timeUnit = 10 * time.Millisecond

// GenerateReport renders a run as a readable text report. It always
// produces output, including for runs that stopped early or exhausted
// their budget, and states which condition ended the loop.
func GenerateReport(result *models.OrchestrationResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Build validation report for %s\n", result.ProjectPath)
	fmt.Fprintf(&b, "Run %s, %d iteration(s), took %s\n",
		result.RunID, len(result.Iterations), result.FinishedAt.Sub(result.StartedAt).Round(timeUnit))
	b.WriteString(strings.Repeat("=", 60) + "\n")

	for _, iter := range result.Iterations {
		fmt.Fprintf(&b, "\nIteration %d (%s)\n", iter.Number, iter.FinishedAt.Sub(iter.StartedAt).Round(timeUnit))
		if len(iter.BugsFound) == 0 {
			b.WriteString("  no bugs found\n")
			continue
		}
		for _, bug := range iter.BugsFound {
			loc := ""
			if bug.File != "" {
				loc = " [" + bug.File
				if bug.Line > 0 {
					loc += fmt.Sprintf(":%d", bug.Line)
				}
				loc += "]"
			}
			fmt.Fprintf(&b, "  %-8s %s (%s)%s\n    %s\n", bug.Severity, bug.ID, bug.Phase, loc, bug.Message)
			if bug.Suggestion != "" {
				fmt.Fprintf(&b, "    suggestion: %s\n", bug.Suggestion)
			}
		}
		for _, fix := range iter.FixesApplied {
			status := "ok"
			if !fix.Success {
				status = "FAILED: " + fix.Error
			}
			fmt.Fprintf(&b, "  fix %s: %s (%s)\n", fix.BugID, fix.Action, status)
		}
	}

	s := result.Summary
	b.WriteString("\n" + strings.Repeat("-", 60) + "\n")
	fmt.Fprintf(&b, "Total bugs: %d   Fixed: %d   Remaining: %d   Success rate: %.0f%%\n",
		s.TotalBugs, s.Fixed, s.Remaining, s.SuccessRate*100)
	b.WriteString(stopLine(s) + "\n")
	return b.String()
}

// stopLine explains the loop-exit condition in one sentence.
func stopLine(s models.Summary) string {
	switch s.StopReason {
	case models.StopReasonClean:
		return "Result: project is clean."
	case models.StopReasonCritical:
		return "Result: stopped early, a CRITICAL bug could not be fixed."
	case models.StopReasonExhausted:
		if s.Remaining > 0 {
			return fmt.Sprintf("Result: iteration budget exhausted with %d bug(s) remaining.", s.Remaining)
		}
		return "Result: iteration budget exhausted."
	default:
		return fmt.Sprintf("Result: run ended (%s).", s.StopReason)
	}
}
