package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/builderpro/buildcheck/internal/config"
	iexec "github.com/builderpro/buildcheck/internal/exec"
	"github.com/builderpro/buildcheck/internal/ports"
	"github.com/builderpro/buildcheck/internal/protect"
)

var (
	portsServices string
	portsApply    string
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Scan busy ports and allocate free ones per service",
	Long: `Enumerate the TCP ports currently listening on this host, then
allocate a conflict-free port for each requested service, trying the
configured preferred port first.

The allocation is a best-effort reservation against the scan snapshot;
another process can claim a port between the scan and your server start.

With --apply, the allocation is also written into the given project's
env files, config files, package.json scripts, and server entrypoints.

Examples:
  buildcheck ports
  buildcheck ports --services frontend,api
  buildcheck ports --services frontend,backend --apply ./my-app`,
	RunE: runPorts,
}

func init() {
	portsCmd.Flags().StringVar(&portsServices, "services", "frontend,backend,api", "Comma-separated services to allocate ports for")
	portsCmd.Flags().StringVar(&portsApply, "apply", "", "Project path to rewrite with the allocation")
}

func runPorts(cmd *cobra.Command, args []string) error {
	cfgPath := portsApply
	if cfgPath == "" {
		cfgPath = "."
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	scanner := ports.NewScanner(iexec.NewRunner(), cfg.Timeouts.PortScan)
	snapshot := scanner.Scan(context.Background())

	busy := snapshot.Ports()
	fmt.Printf("Busy ports (%s): %d listening\n", snapshot.Source, len(busy))
	if len(busy) > 0 {
		parts := make([]string, len(busy))
		for i, p := range busy {
			parts[i] = fmt.Sprint(p)
		}
		fmt.Printf("  %s\n", strings.Join(parts, " "))
	}

	var services []string
	for _, s := range strings.Split(portsServices, ",") {
		if s = strings.TrimSpace(s); s != "" {
			services = append(services, s)
		}
	}
	if len(services) == 0 {
		return fmt.Errorf("no services given")
	}

	allocation, err := ports.Allocate(snapshot, services, cfg.Ports)
	if err != nil {
		return err
	}

	fmt.Println("\nAllocation:")
	names := make([]string, 0, len(allocation))
	for name := range allocation {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-10s %d\n", name, allocation[name])
	}

	if portsApply == "" {
		return nil
	}

	guard, err := protect.NewGuard(portsApply)
	if err != nil {
		return fmt.Errorf("init write guard: %w", err)
	}
	result := ports.NewRewriter(guard).UpdateConfigsWithPorts(portsApply, allocation)
	for _, file := range result.Updated {
		printStatus("✓", "updated "+file, color.FgGreen)
	}
	for _, fail := range result.Failed {
		printStatus("✗", fmt.Sprintf("%s: %s", fail.File, fail.Error), color.FgRed)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d file(s) could not be updated", len(result.Failed))
	}
	return nil
}
