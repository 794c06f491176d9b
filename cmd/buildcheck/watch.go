package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/builderpro/buildcheck/internal/config"
	"github.com/builderpro/buildcheck/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [project-path]",
	Short: "Rescan the project whenever its files change",
	Long: `Watch the project tree and rerun validation after each burst of
changes settles. Changes under node_modules, dist, build, and dotfile
directories are ignored.

Fixes are applied on each pass, so a watch session converges the same way
a single orchestrate run does, while picking up your edits in between.

Examples:
  buildcheck watch
  buildcheck watch ./my-app --debounce 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before rescanning (default from config)")
	watchCmd.Flags().StringVar(&orchPhases, "phases", "", "Comma-separated phases to run (deps,config,ports,visual)")
	watchCmd.Flags().StringVar(&orchURL, "url", "", "Dev-server URL for the visual phase")
	watchCmd.Flags().BoolVar(&orchNoHistory, "no-history", false, "Skip recording runs in the history database")
}

func runWatch(cmd *cobra.Command, args []string) error {
	projectPath := "."
	if len(args) > 0 {
		projectPath = args[0]
	}

	cfg, err := config.Load(projectPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	debounce := watchDebounce
	if debounce <= 0 {
		debounce = cfg.Watch.Debounce
	}

	watcher, err := watch.New(projectPath, debounce)
	if err != nil {
		return err
	}
	watcher.OnError = func(err error) {
		printStatus("⚠", err.Error(), color.FgYellow)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printStatus("▸", fmt.Sprintf("watching %s (debounce %s), Ctrl-C to stop", projectPath, debounce), color.FgCyan)

	// Validate once up front so a broken project is reported before the
	// first edit.
	if err := runValidation(projectPath, true); err != nil {
		printStatus("✗", err.Error(), color.FgRed)
	}

	err = watcher.Run(ctx, func(ctx context.Context) error {
		fmt.Println()
		printStatus("▸", "change detected, revalidating...", color.FgCyan)
		if err := runValidation(projectPath, true); err != nil {
			printStatus("✗", err.Error(), color.FgRed)
		}
		return nil
	})
	if err == context.Canceled {
		return nil
	}
	return err
}
