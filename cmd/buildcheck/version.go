package main

import (
	"fmt"

	"github.com/builderpro/buildcheck/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("buildcheck version %s\n", version.Get())
	},
}
