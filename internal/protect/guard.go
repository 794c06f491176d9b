// Package protect enforces write boundaries for fixers.
//
// Every fixer write goes through a Guard that rejects paths escaping the
// project root and paths inside protected areas (dependency trees, VCS
// metadata, lockfiles). Extra deny patterns can be loaded from a
// .buildcheck-protect.yaml file in the project root.
package protect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPatterns defines glob patterns fixers must never write into.
var DefaultPatterns = []string{
	"node_modules/**",
	".git/**",
	".hg/**",
	".svn/**",
	"dist/**",
	"build/**",
	".buildcheck/**",
}

// DefaultFilenames defines basenames fixers must never rewrite.
// Lockfiles are owned by the package manager, not by remediation.
var DefaultFilenames = []string{
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"bun.lockb",
}

// Guard checks whether a fixer may write to a path.
type Guard struct {
	root      string
	patterns  []string
	filenames []string
	mu        sync.RWMutex
}

// guardConfig represents the .buildcheck-protect.yaml file structure.
type guardConfig struct {
	Protected struct {
		Patterns  []string `yaml:"patterns"`
		Filenames []string `yaml:"filenames"`
	} `yaml:"protected"`
}

// NewGuard creates a guard for the given project root with default rules.
// If the project contains a .buildcheck-protect.yaml, its rules are added.
func NewGuard(projectRoot string) (*Guard, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	g := &Guard{
		root:      abs,
		patterns:  append([]string{}, DefaultPatterns...),
		filenames: append([]string{}, DefaultFilenames...),
	}

	configPath := filepath.Join(abs, ".buildcheck-protect.yaml")
	if _, err := os.Stat(configPath); err == nil {
		if err := g.loadConfig(configPath); err != nil {
			return nil, fmt.Errorf("load protect config: %w", err)
		}
	}

	return g, nil
}

// loadConfig merges deny rules from a yaml file.
func (g *Guard) loadConfig(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg guardConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.patterns = append(g.patterns, cfg.Protected.Patterns...)
	g.filenames = append(g.filenames, cfg.Protected.Filenames...)

	return nil
}

// AddPattern adds a glob pattern to the deny list.
func (g *Guard) AddPattern(pattern string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.patterns = append(g.patterns, pattern)
}

// CheckWrite returns an error if the path may not be written.
// The check is lexical: the path is resolved against the project root and
// rejected if it escapes it or lands in a protected area.
func (g *Guard) CheckWrite(path string) error {
	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(g.root, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(g.root, target)
	if err != nil {
		return fmt.Errorf("resolve %s against project root: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("write to %s escapes project root %s", path, g.root)
	}

	relSlash := filepath.ToSlash(rel)

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, pattern := range g.patterns {
		if matchGlobPattern(relSlash, pattern) {
			return fmt.Errorf("write to %s denied: matches protected pattern %s", rel, pattern)
		}
	}

	base := filepath.Base(target)
	for _, name := range g.filenames {
		if base == name {
			return fmt.Errorf("write to %s denied: %s is a protected file", rel, name)
		}
	}

	return nil
}

// Root returns the absolute project root the guard enforces.
func (g *Guard) Root() string {
	return g.root
}
