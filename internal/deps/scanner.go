// Package deps finds CSS-utility and plugin references that have no
// matching package.json entry, and can insert the missing entries.
package deps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/gjson"

	"github.com/builderpro/buildcheck/internal/detector"
	"github.com/builderpro/buildcheck/pkg/models"
)

// Usage records one piece of evidence that a plugin is used.
type Usage struct {
	// File is the CSS or config file containing the reference.
	File string `json:"file"`
	// Line is the 1-based line of the first occurrence in that file.
	Line int `json:"line"`
	// Token is the matched utility class or import target.
	Token string `json:"token"`
}

// Missing describes a plugin the project uses but does not declare.
type Missing struct {
	// Name is the npm package name.
	Name string `json:"name"`
	// Reason explains why the package is considered required.
	Reason string `json:"reason"`
	// SuggestedVersion is the semver range to install.
	SuggestedVersion string `json:"suggested_version"`
	// Evidence lists every file that references the plugin.
	Evidence []Usage `json:"evidence"`
}

// Satisfied describes a referenced plugin that package.json already declares.
type Satisfied struct {
	// Name is the npm package name.
	Name string `json:"name"`
	// Version is the declared semver range, whatever it is. Auditing
	// outdated ranges is out of scope: declared means satisfied.
	Version string `json:"version"`
}

// ScanResult is the outcome of one dependency scan.
type ScanResult struct {
	Missing   []Missing   `json:"missing"`
	Satisfied []Satisfied `json:"satisfied"`
}

// utilityPlugin maps a utility-class pattern to the plugin that provides it.
type utilityPlugin struct {
	pattern *regexp.Regexp
	pkg     string
	version string
	reason  string
}

// utilityPlugins is the known-class table. Heuristic by design: it detects
// the common cases, it does not prove absence.
var utilityPlugins = []utilityPlugin{
	{
		pattern: regexp.MustCompile(`(?:^|[\s.,:("'])prose(?:-[a-z0-9]+)*(?:$|[\s.,;{)"'])`),
		pkg:     "@tailwindcss/typography",
		version: "^0.5.10",
		reason:  "prose utility classes require the typography plugin",
	},
	{
		pattern: regexp.MustCompile(`(?:^|[\s.,:("'])form-(?:input|select|checkbox|radio|textarea|multiselect)(?:$|[\s.,;{)"'])`),
		pkg:     "@tailwindcss/forms",
		version: "^0.5.7",
		reason:  "form-* utility classes require the forms plugin",
	},
	{
		pattern: regexp.MustCompile(`(?:^|[\s.,:("'])aspect-(?:w|h)-\d+(?:$|[\s.,;{)"'])`),
		pkg:     "@tailwindcss/aspect-ratio",
		version: "^0.4.2",
		reason:  "aspect-w/aspect-h utilities require the aspect-ratio plugin",
	},
	{
		pattern: regexp.MustCompile(`(?:^|[\s.,:("'])line-clamp-\d+(?:$|[\s.,;{)"'])`),
		pkg:     "@tailwindcss/line-clamp",
		version: "^0.4.4",
		reason:  "line-clamp utilities require the line-clamp plugin",
	},
}

// defaultSuggestedVersion is used for plugins referenced by config files
// whose version is not otherwise known.
const defaultSuggestedVersion = "^0.5.0"

var (
	requireRe = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	importRe  = regexp.MustCompile(`import\s+(?:[\w{}*,\s]+\s+from\s+)?['"]([^'"]+)['"]`)
)

// Scanner finds undeclared plugin dependencies.
type Scanner struct{}

// NewScanner creates a dependency Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Scan globs the project's CSS files for utility classes that imply a
// plugin, parses tailwind-style config files for plugin references, and
// diffs the union against package.json dependencies and devDependencies.
func (s *Scanner) Scan(ctx context.Context, projectPath string) (*ScanResult, error) {
	if projectPath == "" {
		return nil, fmt.Errorf("project path is required")
	}

	// referenced accumulates evidence per package name. Multiple files
	// referencing the same plugin dedupe to one entry.
	referenced := map[string]*Missing{}

	if err := s.scanCSS(ctx, projectPath, referenced); err != nil {
		return nil, err
	}
	if err := s.scanTailwindConfigs(ctx, projectPath, referenced); err != nil {
		return nil, err
	}

	declared, versions, err := declaredDependencies(projectPath)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{}
	for name, entry := range referenced {
		if _, ok := declared[name]; ok {
			result.Satisfied = append(result.Satisfied, Satisfied{Name: name, Version: versions[name]})
			continue
		}
		sort.Slice(entry.Evidence, func(i, j int) bool {
			if entry.Evidence[i].File != entry.Evidence[j].File {
				return entry.Evidence[i].File < entry.Evidence[j].File
			}
			return entry.Evidence[i].Line < entry.Evidence[j].Line
		})
		result.Missing = append(result.Missing, *entry)
	}

	sort.Slice(result.Missing, func(i, j int) bool { return result.Missing[i].Name < result.Missing[j].Name })
	sort.Slice(result.Satisfied, func(i, j int) bool { return result.Satisfied[i].Name < result.Satisfied[j].Name })

	return result, nil
}

// scanCSS pattern-matches utility classes in every CSS file under the root.
func (s *Scanner) scanCSS(ctx context.Context, projectPath string, referenced map[string]*Missing) error {
	files, err := doublestar.FilepathGlob(filepath.Join(projectPath, "**", "*.css"))
	if err != nil {
		return fmt.Errorf("glob css files: %w", err)
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(projectPath, file)
		if skipPath(rel) {
			continue
		}

		data, err := os.ReadFile(file)
		if err != nil {
			// Unreadable file: skip, other files still count as evidence.
			continue
		}

		lines := strings.Split(string(data), "\n")
		for _, up := range utilityPlugins {
			for i, line := range lines {
				if !up.pattern.MatchString(line) {
					continue
				}
				addEvidence(referenced, up.pkg, up.version, up.reason, Usage{
					File:  filepath.ToSlash(rel),
					Line:  i + 1,
					Token: strings.TrimSpace(up.pattern.FindString(line)),
				})
				break // one usage per file per plugin is enough evidence
			}
		}
	}

	return nil
}

// scanTailwindConfigs extracts require()/import plugin references from
// tailwind.config.* files.
func (s *Scanner) scanTailwindConfigs(ctx context.Context, projectPath string, referenced map[string]*Missing) error {
	files, err := doublestar.FilepathGlob(filepath.Join(projectPath, "**", "tailwind.config.{js,cjs,mjs,ts}"))
	if err != nil {
		return fmt.Errorf("glob tailwind configs: %w", err)
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(projectPath, file)
		if skipPath(rel) {
			continue
		}

		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}

		lines := strings.Split(string(data), "\n")
		for i, line := range lines {
			for _, re := range []*regexp.Regexp{requireRe, importRe} {
				for _, m := range re.FindAllStringSubmatch(line, -1) {
					pkg := m[1]
					if !isPackageRef(pkg) {
						continue
					}
					version := defaultSuggestedVersion
					reason := "referenced by " + filepath.Base(file)
					for _, up := range utilityPlugins {
						if up.pkg == pkg {
							version = up.version
							break
						}
					}
					addEvidence(referenced, pkg, version, reason, Usage{
						File:  filepath.ToSlash(rel),
						Line:  i + 1,
						Token: pkg,
					})
				}
			}
		}
	}

	return nil
}

// addEvidence records a plugin reference, deduping by package name.
func addEvidence(referenced map[string]*Missing, pkg, version, reason string, usage Usage) {
	entry, ok := referenced[pkg]
	if !ok {
		entry = &Missing{Name: pkg, Reason: reason, SuggestedVersion: version}
		referenced[pkg] = entry
	}
	for _, ev := range entry.Evidence {
		if ev.File == usage.File && ev.Token == usage.Token {
			return
		}
	}
	entry.Evidence = append(entry.Evidence, usage)
}

// declaredDependencies returns the union of dependencies and
// devDependencies from package.json, with their declared ranges.
func declaredDependencies(projectPath string) (map[string]struct{}, map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(projectPath, "package.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, map[string]string{}, nil
		}
		return nil, nil, fmt.Errorf("read package.json: %w", err)
	}

	declared := map[string]struct{}{}
	versions := map[string]string{}
	for _, section := range []string{"dependencies", "devDependencies"} {
		gjson.GetBytes(data, section).ForEach(func(key, value gjson.Result) bool {
			declared[key.String()] = struct{}{}
			versions[key.String()] = value.String()
			return true
		})
	}

	return declared, versions, nil
}

// isPackageRef reports whether an import target names an npm package
// rather than a relative or absolute file path.
func isPackageRef(target string) bool {
	return target != "" && !strings.HasPrefix(target, ".") && !strings.HasPrefix(target, "/")
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

// Detector adapts the Scanner to the shared detector contract.
type Detector struct {
	scanner *Scanner
}

// NewDetector creates the dependency-phase detector.
func NewDetector() *Detector {
	return &Detector{scanner: NewScanner()}
}

// Phase identifies the detector.
func (d *Detector) Phase() models.Phase {
	return models.PhaseDependencies
}

// Detect scans for undeclared plugins and normalizes them into findings.
// A missing plugin blocks the build, so the finding is CRITICAL and fixable.
func (d *Detector) Detect(ctx context.Context, projectPath string) ([]detector.Finding, error) {
	result, err := d.scanner.Scan(ctx, projectPath)
	if err != nil {
		return nil, err
	}

	var findings []detector.Finding
	for _, m := range result.Missing {
		files := make([]string, 0, len(m.Evidence))
		for _, ev := range m.Evidence {
			files = append(files, ev.File)
		}
		findings = append(findings, detector.Finding{
			Phase:      models.PhaseDependencies,
			Severity:   models.SeverityCritical,
			Type:       "missing_dependency",
			Subject:    m.Name,
			Message:    fmt.Sprintf("%s is used (%s) but not declared in package.json", m.Name, strings.Join(files, ", ")),
			File:       "package.json",
			Suggestion: fmt.Sprintf("add %q: %q to devDependencies", m.Name, m.SuggestedVersion),
			Fixable:    true,
		})
	}

	detector.Sort(findings)
	return findings, nil
}

// Verify interface conformance at compile time.
var _ detector.Detector = (*Detector)(nil)
