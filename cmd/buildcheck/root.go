package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "buildcheck",
	Short: "Build validation and auto-remediation for web project scaffolds",
	Long: `Buildcheck scans a freshly generated web project for defects:
missing dependencies, module-system mismatches, port conflicts, broken
rendering, and iteratively applies deterministic fixes until the project
is runnable or the fix budget is exhausted.

Detector phases:
  deps     CSS utility classes and config plugins with no package.json entry
  config   module-system mismatches, duplicate env keys, cross-file port conflicts
  ports    declared ports already busy on this host
  visual   browser smoke test: blank page, fatal console errors, failing assets

Typical usage:
  buildcheck orchestrate ./my-app              # scan and fix
  buildcheck scan ./my-app                     # scan only, no writes
  buildcheck orchestrate ./my-app --url http://localhost:3000
  buildcheck watch ./my-app                    # rescan on file changes`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(orchestrateCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(smokeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
