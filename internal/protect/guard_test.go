package protect

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckWriteAllowsProjectFiles(t *testing.T) {
	g, err := NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	allowed := []string{
		"package.json",
		".env",
		"vite.config.js",
		"src/server.js",
		filepath.Join(g.Root(), "src", "index.css"),
	}
	for _, path := range allowed {
		if err := g.CheckWrite(path); err != nil {
			t.Errorf("expected %s to be writable: %v", path, err)
		}
	}
}

func TestCheckWriteRejectsEscapes(t *testing.T) {
	g, err := NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	escapes := []string{
		"../other/package.json",
		"../../etc/passwd",
		"/etc/passwd",
		"src/../../outside.js",
	}
	for _, path := range escapes {
		if err := g.CheckWrite(path); err == nil {
			t.Errorf("expected %s to be rejected", path)
		}
	}
}

func TestCheckWriteRejectsProtectedAreas(t *testing.T) {
	g, err := NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	denied := []string{
		"node_modules/react/package.json",
		".git/config",
		"package-lock.json",
		"sub/dir/yarn.lock",
	}
	for _, path := range denied {
		if err := g.CheckWrite(path); err == nil {
			t.Errorf("expected %s to be rejected", path)
		}
	}
}

func TestGuardLoadsProjectConfig(t *testing.T) {
	root := t.TempDir()
	config := `
protected:
  patterns:
    - "generated/**"
  filenames:
    - "schema.json"
`
	if err := os.WriteFile(filepath.Join(root, ".buildcheck-protect.yaml"), []byte(config), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	g, err := NewGuard(root)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	if err := g.CheckWrite("generated/types.ts"); err == nil {
		t.Error("expected configured pattern to deny write")
	}
	if err := g.CheckWrite("src/schema.json"); err == nil {
		t.Error("expected configured filename to deny write")
	}
	if err := g.CheckWrite("src/app.ts"); err != nil {
		t.Errorf("expected unrelated file to be writable: %v", err)
	}
}

func TestMatchGlobPattern(t *testing.T) {
	cases := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"node_modules/react/index.js", "node_modules/**", true},
		{"src/node_modules/x.js", "node_modules/**", false},
		{"dist/app.js", "dist/**", true},
		{"src/app.js", "dist/**", false},
		{"a/b/c.css", "a/*/c.css", true},
		{"a/b/d/c.css", "a/*/c.css", false},
		{"vite.config.ts", "*.config.*", true},
	}

	for _, tc := range cases {
		got := matchGlobPattern(tc.path, tc.pattern)
		if got != tc.want {
			t.Errorf("matchGlobPattern(%q, %q) = %v, want %v", tc.path, tc.pattern, got, tc.want)
		}
	}
}
