package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/builderpro/buildcheck/pkg/models"
)

// writeProject creates a throwaway project scaffold from a map of
// relative path -> content.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func TestScanFindsMissingTypographyPlugin(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/styles.css": ".article { @apply prose prose-lg; }",
		"package.json":   `{"name":"demo","dependencies":{"react":"^18.0.0"}}`,
	})

	result, err := NewScanner().Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Missing) != 1 {
		t.Fatalf("expected exactly 1 missing dependency, got %d: %+v", len(result.Missing), result.Missing)
	}
	m := result.Missing[0]
	if m.Name != "@tailwindcss/typography" {
		t.Errorf("expected @tailwindcss/typography, got %s", m.Name)
	}
	if len(m.Evidence) == 0 {
		t.Error("expected usage evidence")
	}
	if m.Evidence[0].File != "src/styles.css" {
		t.Errorf("expected evidence from src/styles.css, got %s", m.Evidence[0].File)
	}
}

func TestScanDedupesAcrossFiles(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/a.css":    ".a { @apply prose; }",
		"src/b.css":    ".b { @apply prose-sm; }",
		"package.json": `{"name":"demo"}`,
	})

	result, err := NewScanner().Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Missing) != 1 {
		t.Fatalf("expected 1 deduped missing entry, got %d", len(result.Missing))
	}
	if len(result.Missing[0].Evidence) != 2 {
		t.Errorf("expected evidence from both files, got %+v", result.Missing[0].Evidence)
	}
}

func TestScanDeclaredPluginIsSatisfied(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/styles.css": ".article { @apply prose; }",
		// Present under an old-looking range: still satisfied, version
		// auditing is out of scope.
		"package.json": `{"name":"demo","devDependencies":{"@tailwindcss/typography":"^0.1.0"}}`,
	})

	result, err := NewScanner().Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Missing) != 0 {
		t.Errorf("expected no missing entries, got %+v", result.Missing)
	}
	if len(result.Satisfied) != 1 || result.Satisfied[0].Name != "@tailwindcss/typography" {
		t.Errorf("expected typography to be satisfied, got %+v", result.Satisfied)
	}
}

func TestScanTailwindConfigPluginReference(t *testing.T) {
	root := writeProject(t, map[string]string{
		"tailwind.config.js": `module.exports = { plugins: [require('@tailwindcss/forms')] }`,
		"package.json":       `{"name":"demo"}`,
	})

	result, err := NewScanner().Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Missing) != 1 || result.Missing[0].Name != "@tailwindcss/forms" {
		t.Fatalf("expected @tailwindcss/forms missing, got %+v", result.Missing)
	}
	if result.Missing[0].SuggestedVersion != "^0.5.7" {
		t.Errorf("expected known version for forms plugin, got %s", result.Missing[0].SuggestedVersion)
	}
}

func TestScanIgnoresNodeModules(t *testing.T) {
	root := writeProject(t, map[string]string{
		"node_modules/pkg/style.css": ".x { @apply prose; }",
		"package.json":               `{"name":"demo"}`,
	})

	result, err := NewScanner().Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Missing) != 0 {
		t.Errorf("expected node_modules to be skipped, got %+v", result.Missing)
	}
}

func TestDetectorNormalizesFindings(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/styles.css": ".article { @apply prose; }",
		"package.json":   `{"name":"demo"}`,
	})

	findings, err := NewDetector().Detect(context.Background(), root)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Phase != models.PhaseDependencies {
		t.Errorf("unexpected phase %s", f.Phase)
	}
	if f.Severity != models.SeverityCritical {
		t.Errorf("expected CRITICAL, got %s", f.Severity)
	}
	if f.Type != "missing_dependency" {
		t.Errorf("unexpected type %s", f.Type)
	}
	if f.Subject != "@tailwindcss/typography" {
		t.Errorf("unexpected subject %s", f.Subject)
	}
	if !f.Fixable {
		t.Error("expected finding to be fixable")
	}
}
