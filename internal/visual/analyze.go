package visual

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/builderpro/buildcheck/internal/config"
	"github.com/builderpro/buildcheck/pkg/models"
)

// Issue is one classified smoke-test problem.
type Issue struct {
	// Type identifies the defect class (blank_page, console_fatal, ...).
	Type string `json:"type"`
	// Severity is the assigned severity.
	Severity models.Severity `json:"severity"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// Suggestion is remediation advice, when any is known.
	Suggestion string `json:"suggestion,omitempty"`
}

// Analysis is the classified outcome of one smoke test.
type Analysis struct {
	// Healthy is true when nothing at any severity was found.
	Healthy bool `json:"healthy"`
	// BlankPage is true when the screenshot was near-uniform.
	BlankPage bool `json:"blank_page"`
	// ShouldStop is true only when a CRITICAL issue is present.
	ShouldStop bool `json:"should_stop"`
	// Issues holds every classified problem.
	Issues []Issue `json:"issues"`
}

// Issue type names.
const (
	TypeBlankPage      = "blank_page"
	TypeConsoleFatal   = "console_fatal"
	TypeConsoleError   = "console_error"
	TypeConsoleWarning = "console_warning"
	TypePageError      = "page_error"
	TypeAssetFailure   = "asset_failure"
	TypeDocumentError  = "document_error"
)

// fatalSignatures mark console output that means the page cannot work at
// all, not just that something logged an error. Matched case-insensitively.
var fatalSignatures = []struct {
	needle     string
	suggestion string
}{
	{"cannot find module", "install the missing dependency and restart the dev server"},
	{"module not found", "install the missing dependency and restart the dev server"},
	{"failed to resolve import", "install the missing dependency or fix the import path"},
	{"is not defined", "check that the script defining this symbol is loaded"},
	{"unexpected token '<'", "a script URL is returning HTML, usually a 404 fallback page"},
	{"chunkloaderror", "rebuild the project; a code-split chunk is missing"},
	{"hydration failed", "server and client markup disagree; check non-deterministic rendering"},
	{"maximum call stack size exceeded", "break the infinite recursion in render or effect code"},
}

// Analyze classifies a smoke result into severities. Only CRITICAL issues
// set ShouldStop; error-level console noise without a fatal signature is
// MAJOR, warnings alone are MINOR.
func Analyze(res *SmokeResult, cfg config.VisualConfig) *Analysis {
	a := &Analysis{}

	if res.ResponseStatus >= 500 {
		a.addIssue(Issue{
			Type:     TypeDocumentError,
			Severity: models.SeverityCritical,
			Message:  fmt.Sprintf("main document returned HTTP %d", res.ResponseStatus),
		})
	} else if res.ResponseStatus >= 400 {
		a.addIssue(Issue{
			Type:     TypeDocumentError,
			Severity: models.SeverityCritical,
			Message:  fmt.Sprintf("main document returned HTTP %d; is the dev server serving this route?", res.ResponseStatus),
		})
	}

	if len(res.Screenshot) > 0 {
		blank, err := isBlankScreenshot(res.Screenshot, cfg)
		if err == nil && blank {
			a.BlankPage = true
			a.addIssue(Issue{
				Type:       TypeBlankPage,
				Severity:   models.SeverityCritical,
				Message:    "page rendered blank: screenshot is a near-uniform color",
				Suggestion: "check the browser console for render-time errors; the app likely crashed before painting",
			})
		}
	}

	for _, msg := range res.ConsoleErrors {
		if sig, sug, ok := matchFatalSignature(msg.Text); ok {
			a.addIssue(Issue{
				Type:       TypeConsoleFatal,
				Severity:   models.SeverityCritical,
				Message:    fmt.Sprintf("fatal console error (%s): %s", sig, firstLine(msg.Text)),
				Suggestion: sug,
			})
			continue
		}
		switch msg.Level {
		case "error", "assert":
			a.addIssue(Issue{
				Type:     TypeConsoleError,
				Severity: models.SeverityMajor,
				Message:  "console error: " + firstLine(msg.Text),
			})
		case "warning":
			a.addIssue(Issue{
				Type:     TypeConsoleWarning,
				Severity: models.SeverityMinor,
				Message:  "console warning: " + firstLine(msg.Text),
			})
		}
	}

	for _, pe := range res.PageErrors {
		sev := models.SeverityMajor
		typ := TypePageError
		sug := ""
		if sig, s, ok := matchFatalSignature(pe); ok {
			sev = models.SeverityCritical
			typ = TypeConsoleFatal
			sug = s
			pe = fmt.Sprintf("(%s) %s", sig, pe)
		}
		a.addIssue(Issue{
			Type:       typ,
			Severity:   sev,
			Message:    "uncaught page error: " + firstLine(pe),
			Suggestion: sug,
		})
	}

	for _, fail := range res.AssetFailures {
		sev := models.SeverityMajor
		if fail.Status >= 500 {
			sev = models.SeverityCritical
		}
		a.addIssue(Issue{
			Type:       TypeAssetFailure,
			Severity:   sev,
			Message:    fmt.Sprintf("asset %s returned HTTP %d", fail.URL, fail.Status),
			Suggestion: "fix the asset path or the server route that should serve it",
		})
	}

	a.Healthy = len(a.Issues) == 0
	return a
}

func (a *Analysis) addIssue(is Issue) {
	a.Issues = append(a.Issues, is)
	if is.Severity == models.SeverityCritical {
		a.ShouldStop = true
	}
}

// matchFatalSignature reports whether text contains a known fatal console
// signature, returning the matched needle and its remediation hint.
func matchFatalSignature(text string) (string, string, bool) {
	lower := strings.ToLower(text)
	for _, sig := range fatalSignatures {
		if strings.Contains(lower, sig.needle) {
			return sig.needle, sig.suggestion, true
		}
	}
	return "", "", false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// isBlankScreenshot samples the screenshot on a 32x32 grid and reports
// whether at least cfg.BlankSampleThreshold of the samples sit within
// cfg.ColorTolerance per channel of the most common sampled color. A real
// page keeps text or chrome somewhere on the grid; a crashed one does not.
// The browser emits JPEG below quality 100 and PNG at 100, so both decoders
// are registered.
func isBlankScreenshot(data []byte, cfg config.VisualConfig) (bool, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("decode screenshot: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return true, nil
	}

	const grid = 32
	type rgb struct{ r, g, b uint8 }
	samples := make([]rgb, 0, grid*grid)
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx < grid; gx++ {
			x := bounds.Min.X + bounds.Dx()*gx/grid + bounds.Dx()/(2*grid)
			y := bounds.Min.Y + bounds.Dy()*gy/grid + bounds.Dy()/(2*grid)
			if x >= bounds.Max.X {
				x = bounds.Max.X - 1
			}
			if y >= bounds.Max.Y {
				y = bounds.Max.Y - 1
			}
			r, g, b, _ := img.At(x, y).RGBA()
			samples = append(samples, rgb{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
		}
	}

	// Quantize to find the dominant color, then count samples within
	// tolerance of it. Quantization buckets are coarser than the tolerance
	// so anti-aliased backgrounds still converge on one bucket.
	counts := make(map[rgb]int)
	for _, s := range samples {
		q := rgb{s.r &^ 0x0f, s.g &^ 0x0f, s.b &^ 0x0f}
		counts[q]++
	}
	var dominant rgb
	best := -1
	for q, n := range counts {
		if n > best {
			best = n
			dominant = q
		}
	}

	tol := cfg.ColorTolerance
	if tol <= 0 {
		tol = 8
	}
	threshold := cfg.BlankSampleThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.98
	}

	// dominant is a bucket floor, so members sit up to 15 above it per
	// channel; widen the tolerance by the bucket width.
	within := 0
	for _, s := range samples {
		if absDiff(s.r, dominant.r) <= tol+15 &&
			absDiff(s.g, dominant.g) <= tol+15 &&
			absDiff(s.b, dominant.b) <= tol+15 {
			within++
		}
	}
	frac := float64(within) / float64(len(samples))
	return frac >= threshold, nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
