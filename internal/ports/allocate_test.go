package ports

import (
	"testing"

	"github.com/builderpro/buildcheck/internal/config"
)

func portsCfg() config.PortsConfig {
	return config.PortsConfig{
		RangeStart: 3000,
		RangeEnd:   3100,
		Preferred: map[string]int{
			"frontend": 3000,
			"backend":  3001,
			"api":      3002,
		},
	}
}

func TestAllocateDistinctFreePorts(t *testing.T) {
	snapshot := SnapshotFromPorts("test", 3000, 8080)

	allocation, err := Allocate(snapshot, []string{"frontend", "backend", "api"}, portsCfg())
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if len(allocation) != 3 {
		t.Fatalf("expected 3 allocations, got %d", len(allocation))
	}

	seen := map[int]string{}
	for service, port := range allocation {
		if snapshot.Busy(port) {
			t.Errorf("service %s got busy port %d", service, port)
		}
		if other, dup := seen[port]; dup {
			t.Errorf("port %d assigned to both %s and %s", port, other, service)
		}
		seen[port] = service
	}
}

func TestAllocatePrefersConfiguredPort(t *testing.T) {
	allocation, err := Allocate(SnapshotFromPorts("test"), []string{"backend"}, portsCfg())
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if allocation["backend"] != 3001 {
		t.Errorf("expected preferred port 3001, got %d", allocation["backend"])
	}
}

func TestAllocateSkipsBusyPreferredPort(t *testing.T) {
	snapshot := SnapshotFromPorts("test", 3001)

	allocation, err := Allocate(snapshot, []string{"backend"}, portsCfg())
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if allocation["backend"] == 3001 {
		t.Error("expected busy preferred port to be skipped")
	}
	if snapshot.Busy(allocation["backend"]) {
		t.Errorf("allocated busy port %d", allocation["backend"])
	}
}

func TestAllocateRangeExhausted(t *testing.T) {
	cfg := portsCfg()
	cfg.RangeStart = 3000
	cfg.RangeEnd = 3001

	// Every port in the tiny range is busy.
	snapshot := SnapshotFromPorts("test", 3000, 3001, 3002)

	if _, err := Allocate(snapshot, []string{"frontend"}, cfg); err == nil {
		t.Error("expected range-exhausted error")
	}
}

func TestAllocateIsDeterministic(t *testing.T) {
	snapshot := SnapshotFromPorts("test", 3000)

	first, err := Allocate(snapshot, []string{"api", "frontend", "backend"}, portsCfg())
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	second, err := Allocate(snapshot, []string{"backend", "api", "frontend"}, portsCfg())
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	for service, port := range first {
		if second[service] != port {
			t.Errorf("allocation for %s differs across orderings: %d vs %d", service, port, second[service])
		}
	}
}

func TestAllocateInvalidRange(t *testing.T) {
	cfg := portsCfg()
	cfg.RangeEnd = cfg.RangeStart - 1

	if _, err := Allocate(SnapshotFromPorts("test"), []string{"frontend"}, cfg); err == nil {
		t.Error("expected invalid range error")
	}
}
