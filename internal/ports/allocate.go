package ports

import (
	"fmt"
	"sort"

	"github.com/builderpro/buildcheck/internal/config"
	"github.com/builderpro/buildcheck/pkg/models"
)

// Allocate assigns one free port to each requested service. For every
// service the preferred port is tried first; if it is busy in the snapshot
// or already taken by another service in this same call, the configured
// range is scanned linearly for the first free, not-yet-allocated port.
// Services are processed in sorted name order so allocation is
// deterministic.
func Allocate(snapshot Snapshot, services []string, cfg config.PortsConfig) (models.PortAllocation, error) {
	if len(services) == 0 {
		return models.PortAllocation{}, nil
	}
	if cfg.RangeStart <= 0 || cfg.RangeEnd < cfg.RangeStart {
		return nil, fmt.Errorf("invalid port range %d-%d", cfg.RangeStart, cfg.RangeEnd)
	}

	sorted := append([]string{}, services...)
	sort.Strings(sorted)

	allocation := models.PortAllocation{}
	taken := map[int]struct{}{}

	free := func(port int) bool {
		if snapshot.Busy(port) {
			return false
		}
		_, dup := taken[port]
		return !dup
	}

	for _, service := range sorted {
		if _, dup := allocation[service]; dup {
			return nil, fmt.Errorf("service %q requested twice", service)
		}

		if preferred, ok := cfg.Preferred[service]; ok && free(preferred) {
			allocation[service] = preferred
			taken[preferred] = struct{}{}
			continue
		}

		assigned := 0
		for port := cfg.RangeStart; port <= cfg.RangeEnd; port++ {
			if free(port) {
				assigned = port
				break
			}
		}
		if assigned == 0 {
			return nil, fmt.Errorf("port range %d-%d exhausted while allocating for %q",
				cfg.RangeStart, cfg.RangeEnd, service)
		}

		allocation[service] = assigned
		taken[assigned] = struct{}{}
	}

	return allocation, nil
}
