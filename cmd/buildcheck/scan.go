package main

import (
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [project-path]",
	Short: "Scan a project without writing any fixes",
	Long: `Run one pass of the enabled detector phases and report the bugs
found, without modifying the project. Equivalent to
'orchestrate --fix=false'.

Examples:
  buildcheck scan
  buildcheck scan ./my-app --phases config,ports
  buildcheck scan ./my-app --url http://localhost:3000`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectPath := "."
		if len(args) > 0 {
			projectPath = args[0]
		}
		return runValidation(projectPath, false)
	},
}

func init() {
	scanCmd.Flags().StringVar(&orchPhases, "phases", "", "Comma-separated phases to run (deps,config,ports,visual)")
	scanCmd.Flags().StringVar(&orchURL, "url", "", "Dev-server URL for the visual phase")
	scanCmd.Flags().BoolVar(&orchNoHistory, "no-history", false, "Skip recording this run in the history database")
	scanCmd.Flags().BoolVar(&orchQuiet, "quiet", false, "Suppress progress output, print only the report")
}
