package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/builderpro/buildcheck/internal/config"
	"github.com/builderpro/buildcheck/internal/visual"
	"github.com/builderpro/buildcheck/pkg/models"
)

var (
	smokeScreenshot string
	smokeVerify     bool
)

var smokeCmd = &cobra.Command{
	Use:   "smoke <url>",
	Short: "Run a browser smoke test against a served page",
	Long: `Navigate a headless browser to the URL, collect console errors,
uncaught exceptions, and failing network responses, take a full-page
screenshot, and classify the outcome.

With --verify, every asset observed during navigation is additionally
re-fetched outside the browser and its HTTP status checked.

Examples:
  buildcheck smoke http://localhost:3000
  buildcheck smoke http://localhost:3000 --screenshot page.png --verify`,
	Args: cobra.ExactArgs(1),
	RunE: runSmoke,
}

func init() {
	smokeCmd.Flags().StringVar(&smokeScreenshot, "screenshot", "", "Write the captured screenshot to this path")
	smokeCmd.Flags().BoolVar(&smokeVerify, "verify", false, "Re-fetch every observed asset and check its status")
}

func runSmoke(cmd *cobra.Command, args []string) error {
	url := args[0]
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	driver := visual.NewChromeDriver(cfg.Timeouts.Navigation)
	fmt.Printf("Navigating to %s...\n", url)
	start := time.Now()
	result, navErr := driver.Capture(context.Background(), url)
	fmt.Printf("Loaded in %s (HTTP %d)\n", time.Since(start).Round(10*time.Millisecond), result.ResponseStatus)

	if smokeScreenshot != "" && len(result.Screenshot) > 0 {
		if err := os.MkdirAll(filepath.Dir(smokeScreenshot), 0755); err == nil {
			if err := os.WriteFile(smokeScreenshot, result.Screenshot, 0644); err != nil {
				printStatus("⚠", fmt.Sprintf("could not write screenshot: %v", err), color.FgYellow)
			} else {
				printStatus("✓", "screenshot written to "+smokeScreenshot, color.FgGreen)
			}
		}
	}

	if navErr != nil {
		return fmt.Errorf("smoke test infrastructure failure: %w", navErr)
	}

	analysis := visual.Analyze(result, cfg.Visual)
	if analysis.Healthy {
		printStatus("✓", "page is healthy", color.FgGreen)
	}
	for _, issue := range analysis.Issues {
		printStatus("✗", fmt.Sprintf("[%s] %s", issue.Severity, issue.Message), severityAttr(issue.Severity))
		if issue.Suggestion != "" {
			fmt.Printf("    suggestion: %s\n", issue.Suggestion)
		}
	}

	if smokeVerify && len(result.Assets) > 0 {
		fmt.Printf("\nVerifying %d asset(s)...\n", len(result.Assets))
		urls := make([]string, 0, len(result.Assets))
		for _, a := range result.Assets {
			urls = append(urls, a.URL)
		}
		verifier := visual.NewAssetVerifier(cfg.Timeouts.AssetFetch, cfg.Orchestrator.Workers)
		report := verifier.Verify(context.Background(), urls)
		for _, check := range report.Checks {
			if check.OK() {
				printStatus("✓", fmt.Sprintf("%d %s (%s)", check.Status, check.URL, check.LoadTime.Round(time.Millisecond)), color.FgGreen)
			} else if check.Err != "" {
				printStatus("✗", fmt.Sprintf("%s: %s", check.URL, check.Err), color.FgRed)
			} else {
				printStatus("✗", fmt.Sprintf("%d %s", check.Status, check.URL), color.FgRed)
			}
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d asset(s) failed verification", report.Failed, report.Total)
		}
	}

	if hasSeverity(analysis, models.SeverityCritical) {
		return fmt.Errorf("smoke test found CRITICAL issues")
	}
	return nil
}

func hasSeverity(a *visual.Analysis, sev models.Severity) bool {
	for _, issue := range a.Issues {
		if issue.Severity == sev {
			return true
		}
	}
	return false
}
