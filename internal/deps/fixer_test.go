package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/builderpro/buildcheck/internal/detector"
	"github.com/builderpro/buildcheck/internal/protect"
)

func newGuard(t *testing.T, root string) *protect.Guard {
	t.Helper()
	g, err := protect.NewGuard(root)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return g
}

func TestAutoAddMissingInsertsDevDependency(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": `{
  "name": "demo",
  "dependencies": {
    "react": "^18.0.0"
  }
}`,
	})

	fixer := NewFixer(newGuard(t, root))
	result := fixer.AutoAddMissing(context.Background(), root, []Missing{
		{Name: "@tailwindcss/typography", SuggestedVersion: "^0.5.10"},
	})

	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}

	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		t.Fatalf("read back package.json: %v", err)
	}

	got := gjson.GetBytes(data, `devDependencies.@tailwindcss/typography`)
	if !got.Exists() || got.String() != "^0.5.10" {
		t.Errorf("expected devDependencies entry, got %s", string(data))
	}
	// Existing keys survive.
	if gjson.GetBytes(data, "dependencies.react").String() != "^18.0.0" {
		t.Error("expected existing dependency to be preserved")
	}
}

func TestAutoAddMissingPreservesKeyOrder(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": `{
  "name": "demo",
  "devDependencies": {
    "vite": "^5.0.0",
    "autoprefixer": "^10.0.0"
  }
}`,
	})

	fixer := NewFixer(newGuard(t, root))
	result := fixer.AutoAddMissing(context.Background(), root, []Missing{
		{Name: "@tailwindcss/forms", SuggestedVersion: "^0.5.7"},
	})
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}

	data, _ := os.ReadFile(filepath.Join(root, "package.json"))
	text := string(data)

	viteIdx := strings.Index(text, `"vite"`)
	autoIdx := strings.Index(text, `"autoprefixer"`)
	if viteIdx == -1 || autoIdx == -1 || viteIdx > autoIdx {
		t.Errorf("expected existing key order to be preserved:\n%s", text)
	}
}

func TestAutoAddMissingWithoutPackageJSON(t *testing.T) {
	root := t.TempDir()
	fixer := NewFixer(newGuard(t, root))

	result := fixer.AutoAddMissing(context.Background(), root, []Missing{
		{Name: "@tailwindcss/typography", SuggestedVersion: "^0.5.10"},
	})
	if result.Success {
		t.Error("expected failure when package.json is absent")
	}
	if result.Error == "" {
		t.Error("expected an error message")
	}
}

func TestFixUsesFindingSubject(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": `{"name":"demo"}`,
	})

	fixer := NewFixer(newGuard(t, root))
	action, err := fixer.Fix(context.Background(), root, detector.Finding{
		Subject: "@tailwindcss/typography",
	})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if !strings.Contains(action, "@tailwindcss/typography") {
		t.Errorf("expected action to name the package, got %q", action)
	}

	data, _ := os.ReadFile(filepath.Join(root, "package.json"))
	if !gjson.GetBytes(data, `devDependencies.@tailwindcss/typography`).Exists() {
		t.Errorf("expected entry written, got %s", string(data))
	}
}

func TestFixRejectsEmptySubject(t *testing.T) {
	root := writeProject(t, map[string]string{"package.json": `{"name":"demo"}`})
	fixer := NewFixer(newGuard(t, root))

	if _, err := fixer.Fix(context.Background(), root, detector.Finding{}); err == nil {
		t.Error("expected error for finding without subject")
	}
}
