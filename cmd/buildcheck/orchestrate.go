package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/builderpro/buildcheck/internal/config"
	"github.com/builderpro/buildcheck/internal/orchestrator"
	"github.com/builderpro/buildcheck/internal/state"
	"github.com/builderpro/buildcheck/pkg/models"
)

var (
	orchMaxIterations  int
	orchFix            bool
	orchStopOnCritical bool
	orchPhases         string
	orchURL            string
	orchNoHistory      bool
	orchQuiet          bool
)

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate [project-path]",
	Short: "Scan a project and fix what can be fixed",
	Long: `Run the full validation loop: scan the enabled detector phases,
normalize findings into bugs, apply deterministic fixes, and reverify,
until the project is clean or the iteration budget runs out.

The visual phase needs a running dev server; pass its address with --url
to enable it.

Examples:
  buildcheck orchestrate                        # current directory
  buildcheck orchestrate ./my-app --max-iterations 5
  buildcheck orchestrate ./my-app --url http://localhost:3000
  buildcheck orchestrate ./my-app --phases deps,config`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOrchestrate,
}

func init() {
	orchestrateCmd.Flags().IntVar(&orchMaxIterations, "max-iterations", 0, "Override the configured iteration budget")
	orchestrateCmd.Flags().BoolVar(&orchFix, "fix", true, "Apply fixes to fixable bugs")
	orchestrateCmd.Flags().BoolVar(&orchStopOnCritical, "stop-on-critical", true, "Stop early when a CRITICAL bug cannot be fixed")
	orchestrateCmd.Flags().StringVar(&orchPhases, "phases", "", "Comma-separated phases to run (deps,config,ports,visual)")
	orchestrateCmd.Flags().StringVar(&orchURL, "url", "", "Dev-server URL for the visual phase")
	orchestrateCmd.Flags().BoolVar(&orchNoHistory, "no-history", false, "Skip recording this run in the history database")
	orchestrateCmd.Flags().BoolVar(&orchQuiet, "quiet", false, "Suppress progress output, print only the report")
}

func runOrchestrate(cmd *cobra.Command, args []string) error {
	projectPath := "."
	if len(args) > 0 {
		projectPath = args[0]
	}
	return runValidation(projectPath, orchFix)
}

// runValidation wires one orchestration run end to end: config, event
// printing, history persistence, and the final report.
func runValidation(projectPath string, autoFix bool) error {
	cfg, err := config.Load(projectPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := []orchestrator.Option{
		orchestrator.WithConfig(cfg),
		orchestrator.WithAutoFix(autoFix),
		orchestrator.WithStopOnCritical(orchStopOnCritical),
	}
	if orchMaxIterations > 0 {
		opts = append(opts, orchestrator.WithMaxIterations(orchMaxIterations))
	}
	if orchURL != "" {
		opts = append(opts, orchestrator.WithURL(orchURL))
	}
	if orchPhases != "" {
		phases, err := parsePhases(orchPhases)
		if err != nil {
			return err
		}
		opts = append(opts, orchestrator.WithPhases(phases))
	}

	o, err := orchestrator.New(orchestrator.RequiredConfig{ProjectPath: projectPath}, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printEvents(o.Events())
	}()

	result, err := o.Run(ctx)
	o.CloseEvents()
	stop()
	wg.Wait()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(orchestrator.GenerateReport(result))
	fmt.Println(summaryBox(result))

	if !orchNoHistory {
		if err := saveHistory(result); err != nil {
			printStatus("⚠", fmt.Sprintf("could not record run history: %v", err), color.FgYellow)
		}
	}

	if result.Summary.Remaining > 0 {
		return fmt.Errorf("%d bug(s) remaining", result.Summary.Remaining)
	}
	return nil
}

// printEvents renders progress lines until the run-completed event arrives
// or the stream is closed, whichever comes first.
func printEvents(events <-chan orchestrator.Event) {
	for ev := range events {
		if orchQuiet {
			if ev.Type == orchestrator.EventRunCompleted {
				return
			}
			continue
		}
		switch ev.Type {
		case orchestrator.EventRunStarted:
			printStatus("▸", ev.Message, color.FgCyan)
		case orchestrator.EventPhaseStarted:
			fmt.Printf("  scanning %s...\n", ev.Phase)
		case orchestrator.EventBugFound:
			printStatus("✗", fmt.Sprintf("[%s] %s", ev.Bug.Severity, ev.Bug.Message), severityAttr(ev.Bug.Severity))
		case orchestrator.EventFixApplied:
			printStatus("✓", ev.Fix.Action, color.FgGreen)
		case orchestrator.EventFixFailed:
			printStatus("✗", fmt.Sprintf("fix failed: %v", ev.Error), color.FgRed)
		case orchestrator.EventIterationCompleted:
			fmt.Printf("  iteration %d done: %s\n", ev.Iteration, ev.Message)
		case orchestrator.EventRunCompleted:
			return
		}
	}
}

func severityAttr(sev models.Severity) color.Attribute {
	switch sev {
	case models.SeverityCritical:
		return color.FgRed
	case models.SeverityMajor:
		return color.FgYellow
	default:
		return color.FgWhite
	}
}

var (
	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
	summaryGood = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	summaryBad  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// summaryBox renders the run outcome as a bordered one-glance summary.
func summaryBox(result *models.OrchestrationResult) string {
	s := result.Summary
	verdict := summaryGood.Render("CLEAN")
	if s.Remaining > 0 {
		verdict = summaryBad.Render(fmt.Sprintf("%d REMAINING", s.Remaining))
	}
	line := fmt.Sprintf("%s  •  %d bugs, %d fixed  •  %d iteration(s)",
		verdict, s.TotalBugs, s.Fixed, len(result.Iterations))
	return summaryBoxStyle.Render(line)
}

// saveHistory records the run in the project-local history database.
func saveHistory(result *models.OrchestrationResult) error {
	db, err := state.OpenProject(result.ProjectPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}
	return db.SaveRun(result)
}

// parsePhases converts a comma-separated phase list, accepting the short
// names used in CLI flags.
func parsePhases(csv string) ([]models.Phase, error) {
	var phases []models.Phase
	for _, raw := range strings.Split(csv, ",") {
		name := strings.TrimSpace(strings.ToLower(raw))
		if name == "" {
			continue
		}
		switch name {
		case "deps", "dependencies":
			phases = append(phases, models.PhaseDependencies)
		case "config":
			phases = append(phases, models.PhaseConfig)
		case "ports":
			phases = append(phases, models.PhasePorts)
		case "visual":
			phases = append(phases, models.PhaseVisual)
		default:
			return nil, fmt.Errorf("unknown phase %q (expected deps, config, ports, or visual)", raw)
		}
	}
	if len(phases) == 0 {
		return nil, fmt.Errorf("no phases given")
	}
	return phases, nil
}
