package ports

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/builderpro/buildcheck/internal/configcheck"
	"github.com/builderpro/buildcheck/internal/protect"
)

// FileError records a failed update to one file.
type FileError struct {
	// File is the path relative to the project root.
	File string `json:"file"`
	// Error is the failure message.
	Error string `json:"error"`
}

// UpdateResult reports which files a rewrite touched. Each file update is
// independent: a failure is recorded and does not abort the others.
type UpdateResult struct {
	Updated []string    `json:"updated"`
	Failed  []FileError `json:"failed"`
}

// Rewriter updates every file that references a service port.
type Rewriter struct {
	guard *protect.Guard
}

// NewRewriter creates a Rewriter whose writes are checked by the guard.
func NewRewriter(guard *protect.Guard) *Rewriter {
	return &Rewriter{guard: guard}
}

var (
	portColonRe  = regexp.MustCompile(`(\bport\s*:\s*)(\d{2,5})`)
	portAssignRe = regexp.MustCompile(`(\bport\s*=\s*)(\d{2,5})`)
	portUpperRe  = regexp.MustCompile(`(\bPORT\s*:\s*)(\d{2,5})`)
	listenRe     = regexp.MustCompile(`(\.listen\(\s*)(\d{2,5})`)
	portFlagRe   = regexp.MustCompile(`(--port[= ])(\d{2,5})`)
	portEnvRe    = regexp.MustCompile(`(\bPORT=)(\d{2,5})`)
)

// serverEntryNames marks basenames that plausibly start a server.
var serverEntryNames = []string{"server", "app", "index", "main"}

// UpdateConfigsWithPorts rewrites every file that references an allocated
// service's port: .env* files, *.config.{js,ts} owned by the service,
// package.json scripts, and server-entry source files.
func (r *Rewriter) UpdateConfigsWithPorts(projectPath string, allocation map[string]int) UpdateResult {
	var result UpdateResult
	if len(allocation) == 0 {
		return result
	}

	r.updateEnvFiles(projectPath, allocation, &result)
	r.updateScriptConfigs(projectPath, allocation, &result)
	r.updatePackageScripts(projectPath, allocation, &result)
	r.updateServerSources(projectPath, allocation, &result)

	sort.Strings(result.Updated)
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].File < result.Failed[j].File })
	return result
}

// updateEnvFiles sets existing *_PORT keys to the allocated values and
// appends missing SERVICE_PORT entries to the root .env when one exists.
func (r *Rewriter) updateEnvFiles(projectPath string, allocation map[string]int, result *UpdateResult) {
	files := r.glob(projectPath, "**/.env*")

	seenKeys := map[string]bool{}
	for _, rel := range files {
		path := filepath.Join(projectPath, rel)
		data, err := os.ReadFile(path)
		if err != nil {
			result.Failed = append(result.Failed, FileError{File: rel, Error: err.Error()})
			continue
		}

		lines := strings.Split(string(data), "\n")
		changed := false
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			key, _, ok := strings.Cut(trimmed, "=")
			if !ok || !strings.HasSuffix(strings.TrimSpace(key), "PORT") {
				continue
			}
			key = strings.TrimSpace(key)
			service := configcheck.ServiceForEnvKey(key)
			port, wanted := allocation[service]
			if !wanted {
				continue
			}
			seenKeys[service] = true
			newLine := fmt.Sprintf("%s=%d", key, port)
			if lines[i] != newLine {
				lines[i] = newLine
				changed = true
			}
		}

		if changed {
			r.writeFile(path, rel, []byte(strings.Join(lines, "\n")), result)
		}
	}

	// Append entries for services with no existing key, root .env only.
	rootEnv := filepath.Join(projectPath, ".env")
	if data, err := os.ReadFile(rootEnv); err == nil {
		var missing []string
		for service, port := range allocation {
			if !seenKeys[service] && service != "default" {
				missing = append(missing, fmt.Sprintf("%s_PORT=%d", strings.ToUpper(service), port))
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			content := string(data)
			if content != "" && !strings.HasSuffix(content, "\n") {
				content += "\n"
			}
			content += strings.Join(missing, "\n") + "\n"
			r.writeFile(rootEnv, ".env", []byte(content), result)
		}
	}
}

// updateScriptConfigs overwrites port: literals, but only in config files
// the matching service plausibly owns (a vite config belongs to the
// frontend, not the api).
func (r *Rewriter) updateScriptConfigs(projectPath string, allocation map[string]int, result *UpdateResult) {
	for _, rel := range r.glob(projectPath, "**/*.config.{js,ts,cjs,mjs}") {
		service := configcheck.ServiceForFile(rel)
		port, wanted := allocation[service]
		if !wanted {
			continue
		}

		path := filepath.Join(projectPath, rel)
		data, err := os.ReadFile(path)
		if err != nil {
			result.Failed = append(result.Failed, FileError{File: rel, Error: err.Error()})
			continue
		}

		replaced := portColonRe.ReplaceAllString(string(data), "${1}"+strconv.Itoa(port))
		if replaced != string(data) {
			r.writeFile(path, rel, []byte(replaced), result)
		}
	}
}

// updatePackageScripts replaces --port N and PORT=N tokens in package.json
// scripts, matching each script to a service by its name.
func (r *Rewriter) updatePackageScripts(projectPath string, allocation map[string]int, result *UpdateResult) {
	path := filepath.Join(projectPath, "package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Failed = append(result.Failed, FileError{File: "package.json", Error: err.Error()})
		}
		return
	}

	doc := string(data)
	changed := false
	var setErr error

	gjson.Get(doc, "scripts").ForEach(func(key, value gjson.Result) bool {
		service := configcheck.ServiceForEnvKey(key.String())
		port, wanted := allocation[service]
		if !wanted {
			return true
		}

		script := value.String()
		updated := portFlagRe.ReplaceAllString(script, "${1}"+strconv.Itoa(port))
		updated = portEnvRe.ReplaceAllString(updated, "${1}"+strconv.Itoa(port))
		if updated == script {
			return true
		}

		doc, setErr = sjson.Set(doc, "scripts."+escapeJSONPathKey(key.String()), updated)
		if setErr != nil {
			return false
		}
		changed = true
		return true
	})

	if setErr != nil {
		result.Failed = append(result.Failed, FileError{File: "package.json", Error: setErr.Error()})
		return
	}
	if changed {
		r.writeFile(path, "package.json", []byte(doc), result)
	}
}

// updateServerSources rewrites listen(N), port = N and PORT: N literals in
// source files whose basename suggests a server entrypoint.
func (r *Rewriter) updateServerSources(projectPath string, allocation map[string]int, result *UpdateResult) {
	for _, rel := range r.glob(projectPath, "**/*.{js,ts,mjs,cjs}") {
		base := strings.ToLower(filepath.Base(rel))
		if strings.Contains(base, ".config.") {
			continue // handled by updateScriptConfigs
		}
		entry := false
		for _, name := range serverEntryNames {
			if strings.HasPrefix(base, name+".") {
				entry = true
				break
			}
		}
		if !entry {
			continue
		}

		service := configcheck.ServiceForFile(rel)
		port, wanted := allocation[service]
		if !wanted {
			// An entrypoint like index.js maps to "default".
			if port, wanted = allocation["default"]; !wanted {
				continue
			}
		}

		path := filepath.Join(projectPath, rel)
		data, err := os.ReadFile(path)
		if err != nil {
			result.Failed = append(result.Failed, FileError{File: rel, Error: err.Error()})
			continue
		}

		portStr := strconv.Itoa(port)
		replaced := listenRe.ReplaceAllString(string(data), "${1}"+portStr)
		replaced = portAssignRe.ReplaceAllString(replaced, "${1}"+portStr)
		replaced = portUpperRe.ReplaceAllString(replaced, "${1}"+portStr)
		if replaced != string(data) {
			r.writeFile(path, rel, []byte(replaced), result)
		}
	}
}

// writeFile performs one guarded, independent file write.
func (r *Rewriter) writeFile(path, rel string, data []byte, result *UpdateResult) {
	if r.guard != nil {
		if err := r.guard.CheckWrite(path); err != nil {
			result.Failed = append(result.Failed, FileError{File: rel, Error: err.Error()})
			return
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		result.Failed = append(result.Failed, FileError{File: rel, Error: err.Error()})
		return
	}
	result.Updated = append(result.Updated, rel)
}

// glob returns project-relative matches, skipping noise directories.
func (r *Rewriter) glob(projectPath, pattern string) []string {
	matches, err := doublestar.FilepathGlob(filepath.Join(projectPath, pattern))
	if err != nil {
		return nil
	}

	var out []string
	for _, m := range matches {
		rel, err := filepath.Rel(projectPath, m)
		if err != nil || skipPath(rel) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

// skipPath filters directories no rewrite should descend into.
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

// escapeJSONPathKey escapes sjson path separators inside a script name.
func escapeJSONPathKey(key string) string {
	key = strings.ReplaceAll(key, `\`, `\\`)
	key = strings.ReplaceAll(key, ".", `\.`)
	return key
}
