// Package configcheck finds module-system mismatches and cross-file
// port/plugin/env inconsistencies in a project's configuration files.
//
// All checks are read-only static text inspection; no file is executed.
package configcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/builderpro/buildcheck/internal/detector"
	"github.com/builderpro/buildcheck/pkg/models"
)

// Bug type identifiers produced by this phase.
const (
	TypeModuleMismatch   = "module_system_mismatch"
	TypeExtensionSyntax  = "extension_syntax_mismatch"
	TypeMissingTypeField = "missing_type_field"
	TypePortConflict     = "port_conflict"
	TypeEnvDuplicate     = "env_duplicate_key"
)

// IssueSummary counts issues per severity.
type IssueSummary struct {
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
}

// Report is the outcome of one ValidateProject call.
type Report struct {
	Issues  []detector.Finding `json:"issues"`
	Summary IssueSummary       `json:"summary"`
}

// Validator inspects config-like files against the project's module-system
// baseline and cross-file consistency rules.
type Validator struct {
	// workers bounds concurrent file reads. Concurrency is an
	// optimization only; findings are sorted before returning.
	workers int
}

// NewValidator creates a Validator with the given worker bound.
func NewValidator(workers int) *Validator {
	if workers < 1 {
		workers = 1
	}
	return &Validator{workers: workers}
}

// scannedFile is a config-like file with its content loaded.
type scannedFile struct {
	rel     string
	content string
}

// ValidateProject runs every configuration check and returns the combined
// report with per-severity counts.
func (v *Validator) ValidateProject(ctx context.Context, projectPath string) (*Report, error) {
	if projectPath == "" {
		return nil, fmt.Errorf("project path is required")
	}

	pkgData, _ := os.ReadFile(filepath.Join(projectPath, "package.json"))
	typeField := gjson.GetBytes(pkgData, "type")
	baseline := baselineFromPackageJSON(typeField.String())

	files, err := v.loadConfigFiles(ctx, projectPath)
	if err != nil {
		return nil, err
	}

	var issues []detector.Finding
	issues = append(issues, v.checkModuleSystems(files, baseline, typeField.Exists())...)
	issues = append(issues, v.checkPorts(files, pkgData)...)
	issues = append(issues, v.checkEnvFiles(files)...)

	detector.Sort(issues)

	report := &Report{Issues: issues}
	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityCritical:
			report.Summary.Critical++
		case models.SeverityMajor:
			report.Summary.Major++
		case models.SeverityMinor:
			report.Summary.Minor++
		}
	}

	return report, nil
}

// loadConfigFiles discovers and reads every config-like file under the
// project root with a bounded worker pool.
func (v *Validator) loadConfigFiles(ctx context.Context, projectPath string) ([]scannedFile, error) {
	patterns := []string{
		"**/*.config.{js,ts,cjs,mjs}",
		"**/.env*",
		"tsconfig.json",
	}

	seen := map[string]struct{}{}
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(projectPath, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			rel, err := filepath.Rel(projectPath, m)
			if err != nil || skipPath(rel) {
				continue
			}
			if _, dup := seen[rel]; dup {
				continue
			}
			seen[rel] = struct{}{}
			paths = append(paths, rel)
		}
	}

	// Each goroutine writes its own slot, so no lock is needed.
	files := make([]scannedFile, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)

	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(projectPath, rel))
			if err != nil {
				// Unreadable file: leave an empty slot, other checks proceed.
				return nil
			}
			files[i] = scannedFile{rel: filepath.ToSlash(rel), content: string(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := files[:0]
	for _, f := range files {
		if f.rel != "" {
			out = append(out, f)
		}
	}
	return out, nil
}

// checkModuleSystems applies the baseline/extension/content rules:
// CRITICAL when content contradicts the baseline and the extension does not
// override it; MAJOR when extension and content disagree directly; MINOR
// for a missing "type" field when the project shows mixed signals.
func (v *Validator) checkModuleSystems(files []scannedFile, baseline ModuleSystem, typeFieldPresent bool) []detector.Finding {
	var findings []detector.Finding
	sawCJS, sawESM := false, false

	for _, f := range files {
		if !isScriptConfig(f.rel) {
			continue
		}

		syntax := syntaxOf(f.content)
		switch syntax {
		case ModuleCJS:
			sawCJS = true
		case ModuleESM:
			sawESM = true
		case ModuleMixed:
			sawCJS, sawESM = true, true
		}
		if syntax == ModuleUnknown {
			continue
		}

		extSys, pinned := extensionSystem(f.rel)
		if pinned {
			// .cjs/.mjs override the baseline; only a direct
			// extension/content disagreement is reportable.
			if syntax != extSys && syntax != ModuleMixed {
				findings = append(findings, detector.Finding{
					Phase:      models.PhaseConfig,
					Severity:   models.SeverityMajor,
					Type:       TypeExtensionSyntax,
					Subject:    string(extSys),
					Message:    fmt.Sprintf("%s uses %s syntax but its extension pins %s", f.rel, syntax, extSys),
					File:       f.rel,
					Suggestion: fmt.Sprintf("rewrite %s in %s syntax or rename it", f.rel, extSys),
					Fixable:    true,
				})
			}
			continue
		}

		// TypeScript configs are transpiled; module-system rules do not
		// apply to them.
		if strings.HasSuffix(f.rel, ".ts") {
			continue
		}

		if syntax != baseline && syntax != ModuleMixed {
			findings = append(findings, detector.Finding{
				Phase:      models.PhaseConfig,
				Severity:   models.SeverityCritical,
				Type:       TypeModuleMismatch,
				Subject:    string(syntax),
				Message:    fmt.Sprintf("%s uses %s syntax but package.json type declares %s", f.rel, syntax, baseline),
				File:       f.rel,
				Suggestion: fmt.Sprintf("rename to %s or convert to %s syntax", overrideExtension(syntax, f.rel), baseline),
				Fixable:    true,
			})
		}
	}

	if !typeFieldPresent && sawCJS && sawESM {
		findings = append(findings, detector.Finding{
			Phase:      models.PhaseConfig,
			Severity:   models.SeverityMinor,
			Type:       TypeMissingTypeField,
			Message:    `package.json has no "type" field while config files mix require() and import syntax`,
			File:       "package.json",
			Suggestion: `declare "type": "module" or "type": "commonjs" explicitly`,
			Fixable:    false,
		})
	}

	return findings
}

// checkPorts extracts port literals from every file (plus package.json
// scripts) and flags services declared with two different ports.
func (v *Validator) checkPorts(files []scannedFile, pkgData []byte) []detector.Finding {
	var decls []PortDecl
	for _, f := range files {
		decls = append(decls, ExtractPortDecls(f.rel, f.content)...)
	}

	gjson.GetBytes(pkgData, "scripts").ForEach(func(key, value gjson.Result) bool {
		for _, d := range ExtractPortDecls("package.json", value.String()) {
			// A script named "dev:frontend" ties its ports to that service.
			if s := ServiceForEnvKey(key.String()); s != "default" {
				d.Service = s
			}
			decls = append(decls, d)
		}
		return true
	})

	var findings []detector.Finding
	for _, c := range findPortConflicts(decls) {
		findings = append(findings, detector.Finding{
			Phase:    models.PhaseConfig,
			Severity: models.SeverityMajor,
			Type:     TypePortConflict,
			Subject:  c.service,
			Message: fmt.Sprintf("service %q is declared on port %d in %s but port %d in %s",
				c.service, c.first.Port, c.first.File, c.second.Port, c.second.File),
			File:       c.second.File,
			Line:       c.second.Line,
			Suggestion: "run the port manager to allocate one port per service and rewrite all references",
			Fixable:    false,
		})
	}

	return findings
}

// checkEnvFiles flags env keys defined twice with different values.
func (v *Validator) checkEnvFiles(files []scannedFile) []detector.Finding {
	var findings []detector.Finding

	for _, f := range files {
		if !strings.HasPrefix(filepath.Base(f.rel), ".env") {
			continue
		}
		for _, dup := range duplicateEnvKeys(parseEnv(f.content)) {
			findings = append(findings, detector.Finding{
				Phase:      models.PhaseConfig,
				Severity:   models.SeverityMajor,
				Type:       TypeEnvDuplicate,
				Subject:    dup.key,
				Message:    fmt.Sprintf("%s defines %s twice with different values (line %d shadows an earlier definition)", f.rel, dup.key, dup.line),
				File:       f.rel,
				Line:       dup.line,
				Suggestion: "remove the duplicate definition",
				Fixable:    true,
			})
		}
	}

	return findings
}

// isScriptConfig reports whether a path is a *.config.{js,ts,cjs,mjs} file.
func isScriptConfig(rel string) bool {
	base := filepath.Base(rel)
	if !strings.Contains(base, ".config.") {
		return false
	}
	switch filepath.Ext(base) {
	case ".js", ".ts", ".cjs", ".mjs":
		return true
	default:
		return false
	}
}

// overrideExtension names the extension that would pin a file's observed
// syntax regardless of the baseline.
func overrideExtension(syntax ModuleSystem, rel string) string {
	ext := ".cjs"
	if syntax == ModuleESM {
		ext = ".mjs"
	}
	return strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel)) + ext
}

// skipPath filters directories no scan should descend into.
func skipPath(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		switch part {
		case "node_modules", ".git", "dist", "build", ".buildcheck":
			return true
		}
	}
	return false
}
