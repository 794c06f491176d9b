package configcheck

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// PortDecl is one port literal found in a project file, attributed to the
// logical service that owns it. The port manager reuses these declarations
// when rewriting configs.
type PortDecl struct {
	// Service is the logical service the declaration belongs to.
	Service string
	// Port is the declared port number.
	Port int
	// File is the declaring file relative to the project root.
	File string
	// Line is the 1-based declaration line.
	Line int
}

var portLiteralRes = []*regexp.Regexp{
	regexp.MustCompile(`\bport\s*:\s*(\d{2,5})`),
	regexp.MustCompile(`\b[A-Z_]*PORT\s*=\s*['"]?(\d{2,5})`),
	regexp.MustCompile(`--port[= ](\d{2,5})`),
	regexp.MustCompile(`\.listen\(\s*(\d{2,5})`),
}

// serviceKeywords maps filename/key fragments to the logical service that
// owns the port. Heuristic attribution: a vite config belongs to the
// frontend, a server entrypoint to the backend.
var serviceKeywords = []struct {
	fragment string
	service  string
}{
	{"vite", "frontend"},
	{"webpack", "frontend"},
	{"next", "frontend"},
	{"frontend", "frontend"},
	{"client", "frontend"},
	{"backend", "backend"},
	{"server", "backend"},
	{"api", "api"},
}

// ServiceForFile attributes a file to a logical service by its basename.
func ServiceForFile(path string) string {
	base := strings.ToLower(filepath.Base(path))
	for _, kw := range serviceKeywords {
		if strings.Contains(base, kw.fragment) {
			return kw.service
		}
	}
	return "default"
}

// ServiceForEnvKey attributes an env key like FRONTEND_PORT or VITE_PORT
// to a logical service.
func ServiceForEnvKey(key string) string {
	lower := strings.ToLower(key)
	for _, kw := range serviceKeywords {
		if strings.Contains(lower, kw.fragment) {
			return kw.service
		}
	}
	return "default"
}

// ExtractPortDecls finds every port literal in a file's content and
// attributes each to a service.
func ExtractPortDecls(relPath, content string) []PortDecl {
	var decls []PortDecl
	fileService := ServiceForFile(relPath)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		for _, re := range portLiteralRes {
			for _, m := range re.FindAllStringSubmatch(line, -1) {
				port, err := strconv.Atoi(m[1])
				if err != nil || port < 1 || port > 65535 {
					continue
				}

				service := fileService
				// Env-style declarations can carry their own service hint
				// in the key name, which beats the filename.
				if strings.Contains(m[0], "=") {
					key := strings.SplitN(m[0], "=", 2)[0]
					if s := ServiceForEnvKey(key); s != "default" {
						service = s
					}
				}

				decls = append(decls, PortDecl{
					Service: service,
					Port:    port,
					File:    relPath,
					Line:    i + 1,
				})
			}
		}
	}

	return decls
}

// portConflict is two files declaring different ports for one service.
type portConflict struct {
	service string
	first   PortDecl
	second  PortDecl
}

// findPortConflicts groups declarations by service and reports every
// declaration that disagrees with the service's first-seen port in a
// different file.
func findPortConflicts(decls []PortDecl) []portConflict {
	firstByService := map[string]PortDecl{}
	var conflicts []portConflict

	for _, d := range decls {
		first, seen := firstByService[d.Service]
		if !seen {
			firstByService[d.Service] = d
			continue
		}
		if d.Port != first.Port && d.File != first.File {
			conflicts = append(conflicts, portConflict{service: d.Service, first: first, second: d})
		}
	}

	return conflicts
}
