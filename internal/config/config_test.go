package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Orchestrator.MaxIterations != 3 {
		t.Errorf("expected max_iterations 3, got %d", cfg.Orchestrator.MaxIterations)
	}
	if !cfg.Orchestrator.AutoFix {
		t.Error("expected auto_fix default true")
	}
	if cfg.Ports.RangeStart != 3000 || cfg.Ports.RangeEnd != 9999 {
		t.Errorf("unexpected port range %d-%d", cfg.Ports.RangeStart, cfg.Ports.RangeEnd)
	}
	if cfg.Timeouts.Navigation != 30*time.Second {
		t.Errorf("expected 30s navigation timeout, got %v", cfg.Timeouts.Navigation)
	}
	if cfg.Visual.BlankSampleThreshold != 0.98 {
		t.Errorf("expected blank sample threshold 0.98, got %v", cfg.Visual.BlankSampleThreshold)
	}
	if cfg.Ports.Preferred["frontend"] != 3000 {
		t.Errorf("expected preferred frontend port 3000, got %d", cfg.Ports.Preferred["frontend"])
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
orchestrator:
  max_iterations: 5
  auto_fix: false
ports:
  range_start: 4000
timeouts:
  port_scan: 2s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Orchestrator.MaxIterations != 5 {
		t.Errorf("expected max_iterations 5, got %d", cfg.Orchestrator.MaxIterations)
	}
	if cfg.Orchestrator.AutoFix {
		t.Error("expected auto_fix false")
	}
	if cfg.Ports.RangeStart != 4000 {
		t.Errorf("expected range_start 4000, got %d", cfg.Ports.RangeStart)
	}
	// Untouched values keep defaults
	if cfg.Ports.RangeEnd != 9999 {
		t.Errorf("expected default range_end 9999, got %d", cfg.Ports.RangeEnd)
	}
	if cfg.Timeouts.PortScan != 2*time.Second {
		t.Errorf("expected 2s port scan timeout, got %v", cfg.Timeouts.PortScan)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestFindProjectConfigWalksParents(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	configPath := filepath.Join(root, ".buildcheck.yaml")
	if err := os.WriteFile(configPath, []byte("orchestrator:\n  max_iterations: 2\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	found := findProjectConfig(nested)
	if found != configPath {
		t.Errorf("expected %s, got %s", configPath, found)
	}
}
