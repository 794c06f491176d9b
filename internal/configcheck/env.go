package configcheck

import (
	"bufio"
	"strings"
)

// envEntry is one KEY=VALUE line in an env-style file.
type envEntry struct {
	key   string
	value string
	line  int
}

// parseEnv scans env-file content line by line. A line scanner is used
// instead of a config library because duplicate keys are exactly the defect
// being detected, and loaders collapse them.
func parseEnv(content string) []envEntry {
	var entries []envEntry

	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		value = strings.Trim(value, `"'`)

		entries = append(entries, envEntry{key: key, value: value, line: lineNo})
	}

	return entries
}

// duplicateEnvKeys returns, for each key defined more than once with
// different values, the entries after the first definition.
func duplicateEnvKeys(entries []envEntry) []envEntry {
	first := map[string]envEntry{}
	var dups []envEntry

	for _, e := range entries {
		prev, seen := first[e.key]
		if !seen {
			first[e.key] = e
			continue
		}
		if prev.value != e.value {
			dups = append(dups, e)
		}
	}

	return dups
}
