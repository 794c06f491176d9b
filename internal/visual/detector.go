package visual

import (
	"context"
	"strings"

	"github.com/builderpro/buildcheck/internal/config"
	"github.com/builderpro/buildcheck/internal/detector"
	"github.com/builderpro/buildcheck/pkg/models"
)

// TypeInfrastructureFailure marks a smoke test that could not run at all
// (browser failed to start, navigation never completed). It is reported as
// a finding rather than an error so one broken environment does not abort
// the other phases.
const TypeInfrastructureFailure = "visual_infrastructure_failure"

// Detector runs the smoke-test pipeline against a served URL.
type Detector struct {
	driver   Driver
	verifier *AssetVerifier
	url      string
	cfg      config.VisualConfig
}

// NewDetector creates a visual detector for the given URL. A nil driver
// gets a headless Chrome driver with the configured navigation timeout.
func NewDetector(url string, cfg *config.Config, driver Driver) *Detector {
	if driver == nil {
		driver = NewChromeDriver(cfg.Timeouts.Navigation)
	}
	return &Detector{
		driver:   driver,
		verifier: NewAssetVerifier(cfg.Timeouts.AssetFetch, cfg.Orchestrator.Workers),
		url:      url,
		cfg:      cfg.Visual,
	}
}

// Phase returns the visual phase.
func (d *Detector) Phase() models.Phase {
	return models.PhaseVisual
}

// Detect navigates to the configured URL and converts the analysis into
// findings. Rendering defects have no deterministic file edit, so nothing
// here is fixable.
func (d *Detector) Detect(ctx context.Context, projectPath string) ([]detector.Finding, error) {
	res, err := d.driver.Capture(ctx, d.url)
	if err != nil {
		return []detector.Finding{{
			Phase:      models.PhaseVisual,
			Severity:   models.SeverityCritical,
			Type:       TypeInfrastructureFailure,
			Subject:    d.url,
			Message:    "visual test infrastructure failure: " + err.Error(),
			Suggestion: "check that the dev server is running and a browser is installed",
			Fixable:    false,
		}}, nil
	}

	analysis := Analyze(res, d.cfg)

	// Re-fetch failing assets outside the browser before reporting them; a
	// failure that does not reproduce was transient.
	confirmed := make(map[string]bool, len(res.AssetFailures))
	if len(res.AssetFailures) > 0 {
		urls := make([]string, 0, len(res.AssetFailures))
		for _, f := range res.AssetFailures {
			urls = append(urls, f.URL)
		}
		report := d.verifier.Verify(ctx, urls)
		for _, c := range report.Checks {
			confirmed[c.URL] = !c.OK()
		}
	}

	var findings []detector.Finding
	for _, is := range analysis.Issues {
		if is.Type == TypeAssetFailure {
			if reproduced, checked := confirmedFor(confirmed, is.Message); checked && !reproduced {
				continue
			}
		}
		findings = append(findings, detector.Finding{
			Phase:      models.PhaseVisual,
			Severity:   is.Severity,
			Type:       is.Type,
			Subject:    d.url,
			Message:    is.Message,
			Suggestion: is.Suggestion,
			Fixable:    false,
		})
	}
	detector.Sort(findings)
	return findings, nil
}

// confirmedFor looks up the re-fetch verdict for the asset named inside an
// asset-failure message.
func confirmedFor(confirmed map[string]bool, message string) (reproduced, checked bool) {
	for url, failed := range confirmed {
		if url != "" && strings.Contains(message, url) {
			return failed, true
		}
	}
	return false, false
}
