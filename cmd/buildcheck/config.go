package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/builderpro/buildcheck/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show resolved configuration",
	Long: `Display the configuration in effect for the current directory.

Without arguments, displays all values. With one argument, displays the
value for that key.

Precedence (highest first): BUILDCHECK_* environment variables, project
config (.buildcheck.yaml in the project or a parent), user config
(~/.config/buildcheck/config.yaml), built-in defaults.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		if len(args) == 0 {
			displayAllConfig(cfg)
			return
		}
		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(value)
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("orchestrator.max_iterations: %d\n", cfg.Orchestrator.MaxIterations)
	fmt.Printf("orchestrator.auto_fix: %t\n", cfg.Orchestrator.AutoFix)
	fmt.Printf("orchestrator.stop_on_critical: %t\n", cfg.Orchestrator.StopOnCritical)
	fmt.Printf("orchestrator.workers: %d\n", cfg.Orchestrator.Workers)
	fmt.Printf("ports.range_start: %d\n", cfg.Ports.RangeStart)
	fmt.Printf("ports.range_end: %d\n", cfg.Ports.RangeEnd)
	for _, svc := range sortedKeys(cfg.Ports.Preferred) {
		fmt.Printf("ports.preferred.%s: %d\n", svc, cfg.Ports.Preferred[svc])
	}
	fmt.Printf("visual.blank_sample_threshold: %g\n", cfg.Visual.BlankSampleThreshold)
	fmt.Printf("visual.color_tolerance: %d\n", cfg.Visual.ColorTolerance)
	fmt.Printf("timeouts.port_scan: %s\n", cfg.Timeouts.PortScan)
	fmt.Printf("timeouts.navigation: %s\n", cfg.Timeouts.Navigation)
	fmt.Printf("timeouts.asset_fetch: %s\n", cfg.Timeouts.AssetFetch)
	fmt.Printf("watch.debounce: %s\n", cfg.Watch.Debounce)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	lower := strings.ToLower(key)
	switch lower {
	case "orchestrator.max_iterations":
		return strconv.Itoa(cfg.Orchestrator.MaxIterations), nil
	case "orchestrator.auto_fix":
		return strconv.FormatBool(cfg.Orchestrator.AutoFix), nil
	case "orchestrator.stop_on_critical":
		return strconv.FormatBool(cfg.Orchestrator.StopOnCritical), nil
	case "orchestrator.workers":
		return strconv.Itoa(cfg.Orchestrator.Workers), nil
	case "ports.range_start":
		return strconv.Itoa(cfg.Ports.RangeStart), nil
	case "ports.range_end":
		return strconv.Itoa(cfg.Ports.RangeEnd), nil
	case "visual.blank_sample_threshold":
		return strconv.FormatFloat(cfg.Visual.BlankSampleThreshold, 'g', -1, 64), nil
	case "visual.color_tolerance":
		return strconv.Itoa(cfg.Visual.ColorTolerance), nil
	case "timeouts.port_scan":
		return cfg.Timeouts.PortScan.String(), nil
	case "timeouts.navigation":
		return cfg.Timeouts.Navigation.String(), nil
	case "timeouts.asset_fetch":
		return cfg.Timeouts.AssetFetch.String(), nil
	case "watch.debounce":
		return cfg.Watch.Debounce.String(), nil
	}
	if svc, ok := strings.CutPrefix(lower, "ports.preferred."); ok {
		if port, exists := cfg.Ports.Preferred[svc]; exists {
			return strconv.Itoa(port), nil
		}
		return "", fmt.Errorf("no preferred port for service %q", svc)
	}
	return "", fmt.Errorf("unknown configuration key: %s", key)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
