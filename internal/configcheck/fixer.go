package configcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/builderpro/buildcheck/internal/detector"
	"github.com/builderpro/buildcheck/internal/protect"
	"github.com/builderpro/buildcheck/pkg/models"
)

// Detector adapts the Validator to the shared detector contract.
type Detector struct {
	validator *Validator
}

// NewDetector creates the config-phase detector.
func NewDetector(workers int) *Detector {
	return &Detector{validator: NewValidator(workers)}
}

// Phase identifies the detector.
func (d *Detector) Phase() models.Phase {
	return models.PhaseConfig
}

// Detect validates the project's configuration files.
func (d *Detector) Detect(ctx context.Context, projectPath string) ([]detector.Finding, error) {
	report, err := d.validator.ValidateProject(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	return report.Issues, nil
}

// Fixer applies deterministic remediations for config findings:
// renaming a mismatched config file to the extension that pins its actual
// syntax, and removing duplicate env definitions.
type Fixer struct {
	guard *protect.Guard
}

// NewFixer creates a Fixer whose writes are checked by the guard.
func NewFixer(guard *protect.Guard) *Fixer {
	return &Fixer{guard: guard}
}

// Fix dispatches on the finding type.
func (f *Fixer) Fix(ctx context.Context, projectPath string, finding detector.Finding) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch finding.Type {
	case TypeModuleMismatch, TypeExtensionSyntax:
		return f.fixByRename(projectPath, finding)
	case TypeEnvDuplicate:
		return f.fixEnvDuplicate(projectPath, finding)
	default:
		return "", fmt.Errorf("no fixer for config finding type %q", finding.Type)
	}
}

// fixByRename moves a config file to the extension that matches the module
// syntax it actually uses, so the extension override ends the conflict.
func (f *Fixer) fixByRename(projectPath string, finding detector.Finding) (string, error) {
	oldPath := filepath.Join(projectPath, finding.File)

	data, err := os.ReadFile(oldPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", finding.File, err)
	}

	syntax := syntaxOf(string(data))
	var newExt string
	switch syntax {
	case ModuleCJS:
		newExt = ".cjs"
	case ModuleESM:
		newExt = ".mjs"
	default:
		return "", fmt.Errorf("%s has %s syntax, no unambiguous extension to rename to", finding.File, syntax)
	}

	newRel := strings.TrimSuffix(finding.File, filepath.Ext(finding.File)) + newExt
	newPath := filepath.Join(projectPath, newRel)

	if f.guard != nil {
		if err := f.guard.CheckWrite(newPath); err != nil {
			return "", err
		}
		if err := f.guard.CheckWrite(oldPath); err != nil {
			return "", err
		}
	}

	if _, err := os.Stat(newPath); err == nil {
		return "", fmt.Errorf("cannot rename %s: %s already exists", finding.File, newRel)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return "", fmt.Errorf("rename %s: %w", finding.File, err)
	}

	return fmt.Sprintf("renamed %s to %s", finding.File, newRel), nil
}

// fixEnvDuplicate removes later definitions of a duplicated env key,
// keeping the first one.
func (f *Fixer) fixEnvDuplicate(projectPath string, finding detector.Finding) (string, error) {
	if finding.Subject == "" {
		return "", fmt.Errorf("finding carries no env key")
	}

	path := filepath.Join(projectPath, finding.File)
	if f.guard != nil {
		if err := f.guard.CheckWrite(path); err != nil {
			return "", err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", finding.File, err)
	}

	lines := strings.Split(string(data), "\n")
	kept := make([]string, 0, len(lines))
	seen := false
	removed := 0
	for _, line := range lines {
		trimmed := strings.TrimPrefix(strings.TrimSpace(line), "export ")
		if key, _, ok := strings.Cut(trimmed, "="); ok && strings.TrimSpace(key) == finding.Subject {
			if seen {
				removed++
				continue
			}
			seen = true
		}
		kept = append(kept, line)
	}

	if removed == 0 {
		return "", fmt.Errorf("no duplicate %s definitions found in %s", finding.Subject, finding.File)
	}

	if err := os.WriteFile(path, []byte(strings.Join(kept, "\n")), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", finding.File, err)
	}

	return fmt.Sprintf("removed %d duplicate %s definition(s) from %s", removed, finding.Subject, finding.File), nil
}

// Verify interface conformance at compile time.
var (
	_ detector.Detector = (*Detector)(nil)
	_ detector.Fixer    = (*Fixer)(nil)
)
