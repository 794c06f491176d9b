package deps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/builderpro/buildcheck/internal/detector"
	"github.com/builderpro/buildcheck/internal/protect"
)

// AddResult is the outcome of an AutoAddMissing call.
type AddResult struct {
	// Success is true when every entry was written.
	Success bool `json:"success"`
	// PackageJSONPath is the file that was modified.
	PackageJSONPath string `json:"package_json_path"`
	// Added lists the package names that were inserted.
	Added []string `json:"added"`
	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// Fixer inserts missing entries into package.json devDependencies.
type Fixer struct {
	guard *protect.Guard
}

// NewFixer creates a Fixer whose writes are checked by the guard.
func NewFixer(guard *protect.Guard) *Fixer {
	return &Fixer{guard: guard}
}

// AutoAddMissing reads package.json, inserts each missing package into
// devDependencies preserving existing key order, and writes it back
// pretty-printed. Packages already declared are left untouched.
func (f *Fixer) AutoAddMissing(ctx context.Context, projectPath string, missing []Missing) AddResult {
	pkgPath := filepath.Join(projectPath, "package.json")
	result := AddResult{PackageJSONPath: pkgPath}

	if f.guard != nil {
		if err := f.guard.CheckWrite(pkgPath); err != nil {
			result.Error = err.Error()
			return result
		}
	}

	data, err := os.ReadFile(pkgPath)
	if err != nil {
		result.Error = fmt.Sprintf("read package.json: %v", err)
		return result
	}

	doc := string(data)
	for _, m := range missing {
		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
			return result
		}

		path := "devDependencies." + escapeJSONPathKey(m.Name)
		doc, err = sjson.Set(doc, path, m.SuggestedVersion)
		if err != nil {
			result.Error = fmt.Sprintf("set %s: %v", m.Name, err)
			return result
		}
		result.Added = append(result.Added, m.Name)
	}

	out := pretty.PrettyOptions([]byte(doc), &pretty.Options{Indent: "  "})
	if err := os.WriteFile(pkgPath, out, 0644); err != nil {
		result.Error = fmt.Sprintf("write package.json: %v", err)
		return result
	}

	result.Success = true
	return result
}

// Fix remedies one missing_dependency finding.
func (f *Fixer) Fix(ctx context.Context, projectPath string, finding detector.Finding) (string, error) {
	if finding.Subject == "" {
		return "", fmt.Errorf("finding carries no package name")
	}

	version := defaultSuggestedVersion
	for _, up := range utilityPlugins {
		if up.pkg == finding.Subject {
			version = up.version
			break
		}
	}

	result := f.AutoAddMissing(ctx, projectPath, []Missing{{
		Name:             finding.Subject,
		SuggestedVersion: version,
	}})
	if !result.Success {
		return "", fmt.Errorf("add %s: %s", finding.Subject, result.Error)
	}

	return fmt.Sprintf("added %s %s to devDependencies", finding.Subject, version), nil
}

// escapeJSONPathKey escapes sjson path separators inside a package name
// (e.g. "lodash.merge" must address one key, not a nested object).
func escapeJSONPathKey(key string) string {
	key = strings.ReplaceAll(key, `\`, `\\`)
	key = strings.ReplaceAll(key, ".", `\.`)
	return key
}

// Verify interface conformance at compile time.
var _ detector.Fixer = (*Fixer)(nil)
