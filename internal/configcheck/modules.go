package configcheck

import (
	"regexp"
	"strings"
)

// ModuleSystem is the module flavor a file (or project) expects.
type ModuleSystem string

const (
	// ModuleCJS is CommonJS (require/module.exports).
	ModuleCJS ModuleSystem = "commonjs"
	// ModuleESM is ECMAScript modules (import/export).
	ModuleESM ModuleSystem = "module"
	// ModuleMixed means a file shows both syntaxes.
	ModuleMixed ModuleSystem = "mixed"
	// ModuleUnknown means no module syntax was observed.
	ModuleUnknown ModuleSystem = "unknown"
)

var (
	requireSyntaxRe = regexp.MustCompile(`(?m)(?:^|[^.\w])require\s*\(|module\.exports|(?:^|[^.\w])exports\.\w`)
	esmSyntaxRe     = regexp.MustCompile(`(?m)^\s*import\s+[\w{*'"]|^\s*import\s*\(|^\s*export\s+(?:default|const|function|class|let|var|\{|\*)`)
)

// syntaxOf classifies a file's content by the module syntax it uses.
// Comments are not stripped first: this is a heuristic text check, and a
// require() in a comment is rare enough in generated scaffolds.
func syntaxOf(content string) ModuleSystem {
	hasCJS := requireSyntaxRe.MatchString(content)
	hasESM := esmSyntaxRe.MatchString(content)

	switch {
	case hasCJS && hasESM:
		return ModuleMixed
	case hasCJS:
		return ModuleCJS
	case hasESM:
		return ModuleESM
	default:
		return ModuleUnknown
	}
}

// extensionSystem returns the module system an extension pins, if any.
// .cjs and .mjs always override the package.json baseline.
func extensionSystem(path string) (ModuleSystem, bool) {
	switch {
	case strings.HasSuffix(path, ".cjs"):
		return ModuleCJS, true
	case strings.HasSuffix(path, ".mjs"):
		return ModuleESM, true
	default:
		return ModuleUnknown, false
	}
}

// baselineFromPackageJSON maps the package.json "type" field to a baseline.
// An absent or empty field means CommonJS.
func baselineFromPackageJSON(typeField string) ModuleSystem {
	if typeField == "module" {
		return ModuleESM
	}
	return ModuleCJS
}
