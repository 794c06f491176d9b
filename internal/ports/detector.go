package ports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/builderpro/buildcheck/internal/config"
	"github.com/builderpro/buildcheck/internal/configcheck"
	"github.com/builderpro/buildcheck/internal/detector"
	"github.com/builderpro/buildcheck/internal/protect"
	"github.com/builderpro/buildcheck/pkg/models"
)

// TypePortInUse marks a declared service port that is already listening
// on the host.
const TypePortInUse = "port_in_use"

// Detector flags declared service ports that collide with ports already
// busy on the host.
type Detector struct {
	scanner *Scanner
}

// NewDetector creates the ports-phase detector.
func NewDetector(scanner *Scanner) *Detector {
	return &Detector{scanner: scanner}
}

// Phase identifies the detector.
func (d *Detector) Phase() models.Phase {
	return models.PhasePorts
}

// Detect scans busy host ports and flags every declared port that is
// already taken. The snapshot is best-effort; the finding says so.
func (d *Detector) Detect(ctx context.Context, projectPath string) ([]detector.Finding, error) {
	decls, err := declaredPorts(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	if len(decls) == 0 {
		return nil, nil
	}

	snapshot := d.scanner.Scan(ctx)

	var findings []detector.Finding
	reported := map[string]struct{}{}
	for _, decl := range decls {
		if !snapshot.Busy(decl.Port) {
			continue
		}
		// One finding per file+port is enough, however many lines repeat it.
		dedupeKey := fmt.Sprintf("%s:%d", decl.File, decl.Port)
		if _, dup := reported[dedupeKey]; dup {
			continue
		}
		reported[dedupeKey] = struct{}{}

		findings = append(findings, detector.Finding{
			Phase:    models.PhasePorts,
			Severity: models.SeverityMajor,
			Type:     TypePortInUse,
			Subject:  decl.Service,
			Message: fmt.Sprintf("service %q declares port %d in %s, already listening on this host (per %s scan)",
				decl.Service, decl.Port, decl.File, snapshot.Source),
			File:       decl.File,
			Line:       decl.Line,
			Suggestion: "allocate a free port for the service and rewrite all referencing files",
			Fixable:    true,
		})
	}

	detector.Sort(findings)
	return findings, nil
}

// declaredPorts collects every port declaration across the project's
// env files, script configs, package.json scripts, and server sources.
func declaredPorts(ctx context.Context, projectPath string) ([]configcheck.PortDecl, error) {
	if projectPath == "" {
		return nil, fmt.Errorf("project path is required")
	}

	r := NewRewriter(nil) // glob helper only, no writes
	var decls []configcheck.PortDecl

	patterns := []string{"**/.env*", "**/*.config.{js,ts,cjs,mjs}"}
	for _, pattern := range patterns {
		for _, rel := range r.glob(projectPath, pattern) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := os.ReadFile(filepath.Join(projectPath, rel))
			if err != nil {
				continue
			}
			decls = append(decls, configcheck.ExtractPortDecls(rel, string(data))...)
		}
	}

	if data, err := os.ReadFile(filepath.Join(projectPath, "package.json")); err == nil {
		gjson.GetBytes(data, "scripts").ForEach(func(key, value gjson.Result) bool {
			for _, d := range configcheck.ExtractPortDecls("package.json", value.String()) {
				if s := configcheck.ServiceForEnvKey(key.String()); s != "default" {
					d.Service = s
				}
				decls = append(decls, d)
			}
			return true
		})
	}

	return decls, nil
}

// Fixer reallocates a busy service port and rewrites every reference.
type Fixer struct {
	scanner *Scanner
	guard   *protect.Guard
	cfg     config.PortsConfig
}

// NewFixer creates a Fixer.
func NewFixer(scanner *Scanner, guard *protect.Guard, cfg config.PortsConfig) *Fixer {
	return &Fixer{scanner: scanner, guard: guard, cfg: cfg}
}

// Fix takes a fresh snapshot, allocates a free port for the finding's
// service, and rewrites the project's references to it.
func (f *Fixer) Fix(ctx context.Context, projectPath string, finding detector.Finding) (string, error) {
	if finding.Subject == "" {
		return "", fmt.Errorf("finding carries no service name")
	}

	snapshot := f.scanner.Scan(ctx)
	allocation, err := Allocate(snapshot, []string{finding.Subject}, f.cfg)
	if err != nil {
		return "", err
	}

	result := NewRewriter(f.guard).UpdateConfigsWithPorts(projectPath, allocation)
	if len(result.Failed) > 0 && len(result.Updated) == 0 {
		return "", fmt.Errorf("all rewrites failed, first: %s: %s", result.Failed[0].File, result.Failed[0].Error)
	}

	return fmt.Sprintf("moved service %q to port %d (%d files updated, %d failed)",
		finding.Subject, allocation[finding.Subject], len(result.Updated), len(result.Failed)), nil
}

// Verify interface conformance at compile time.
var (
	_ detector.Detector = (*Detector)(nil)
	_ detector.Fixer    = (*Fixer)(nil)
)
