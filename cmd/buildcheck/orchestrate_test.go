package main

import (
	"testing"

	"github.com/builderpro/buildcheck/pkg/models"
)

func TestParsePhases(t *testing.T) {
	phases, err := parsePhases("deps, config,PORTS")
	if err != nil {
		t.Fatalf("parsePhases: %v", err)
	}
	want := []models.Phase{models.PhaseDependencies, models.PhaseConfig, models.PhasePorts}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phases[%d] = %s, want %s", i, phases[i], want[i])
		}
	}
}

func TestParsePhasesRejectsUnknown(t *testing.T) {
	if _, err := parsePhases("deps,bogus"); err == nil {
		t.Error("expected error for unknown phase")
	}
	if _, err := parsePhases(" , "); err == nil {
		t.Error("expected error for empty phase list")
	}
}
