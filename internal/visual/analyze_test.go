package visual

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/builderpro/buildcheck/internal/config"
	"github.com/builderpro/buildcheck/pkg/models"
)

func testVisualConfig() config.VisualConfig {
	return config.VisualConfig{
		BlankSampleThreshold: 0.98,
		ColorTolerance:       8,
	}
}

// uniformPNG renders a solid-color image.
func uniformPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// uniformJPEG renders a solid-color image in the format the browser driver
// actually emits (FullScreenshot below quality 100 produces JPEG).
func uniformJPEG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// contentPNG renders a white page with a large dark block, like a header
// plus body text would produce.
func contentPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if y < h/3 {
				img.SetRGBA(x, y, color.RGBA{30, 30, 30, 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestIsBlankScreenshot(t *testing.T) {
	cfg := testVisualConfig()

	blank, err := isBlankScreenshot(uniformPNG(t, 640, 480, color.RGBA{255, 255, 255, 255}), cfg)
	if err != nil {
		t.Fatalf("isBlankScreenshot: %v", err)
	}
	if !blank {
		t.Error("uniform white screenshot should be blank")
	}

	blank, err = isBlankScreenshot(contentPNG(t, 640, 480), cfg)
	if err != nil {
		t.Fatalf("isBlankScreenshot: %v", err)
	}
	if blank {
		t.Error("screenshot with a dark header block should not be blank")
	}
}

func TestIsBlankScreenshotToleratesAntiAliasing(t *testing.T) {
	// Near-white noise within the tolerance still counts as blank.
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			v := uint8(250 + (x+y)%5)
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	blank, err := isBlankScreenshot(buf.Bytes(), testVisualConfig())
	if err != nil {
		t.Fatalf("isBlankScreenshot: %v", err)
	}
	if !blank {
		t.Error("near-uniform screenshot within tolerance should be blank")
	}
}

func TestAnalyzeBlankPageIsCriticalAndStops(t *testing.T) {
	res := &SmokeResult{
		URL:            "http://localhost:3000",
		ResponseStatus: 200,
		Screenshot:     uniformPNG(t, 640, 480, color.RGBA{255, 255, 255, 255}),
	}
	a := Analyze(res, testVisualConfig())
	if !a.BlankPage {
		t.Fatal("expected blank page")
	}
	if !a.ShouldStop {
		t.Error("blank page should stop the run")
	}
	if a.Healthy {
		t.Error("blank page is not healthy")
	}
	assertIssue(t, a, TypeBlankPage, models.SeverityCritical)
}

func TestAnalyzeBlankPageFromJPEGScreenshot(t *testing.T) {
	res := &SmokeResult{
		URL:            "http://localhost:3000",
		ResponseStatus: 200,
		Screenshot:     uniformJPEG(t, 640, 480, color.RGBA{255, 255, 255, 255}),
	}
	a := Analyze(res, testVisualConfig())
	if !a.BlankPage {
		t.Fatal("uniform JPEG screenshot should be classified as blank")
	}
	if !a.ShouldStop {
		t.Error("blank page should stop the run")
	}
	assertIssue(t, a, TypeBlankPage, models.SeverityCritical)
}

func TestAnalyzeFatalConsoleSignature(t *testing.T) {
	res := &SmokeResult{
		URL:            "http://localhost:3000",
		ResponseStatus: 200,
		Screenshot:     contentPNG(t, 640, 480),
		ConsoleErrors: []ConsoleMessage{
			{Level: "error", Text: "Uncaught Error: Cannot find module 'react-dom'"},
		},
	}
	a := Analyze(res, testVisualConfig())
	if !a.ShouldStop {
		t.Error("fatal console signature should stop the run")
	}
	is := assertIssue(t, a, TypeConsoleFatal, models.SeverityCritical)
	if is.Suggestion == "" {
		t.Error("fatal signature should carry a suggestion")
	}
}

func TestAnalyzePlainConsoleErrorIsMajor(t *testing.T) {
	res := &SmokeResult{
		URL:            "http://localhost:3000",
		ResponseStatus: 200,
		Screenshot:     contentPNG(t, 640, 480),
		ConsoleErrors: []ConsoleMessage{
			{Level: "error", Text: "Failed to load avatar image"},
		},
	}
	a := Analyze(res, testVisualConfig())
	if a.ShouldStop {
		t.Error("plain console error should not stop the run")
	}
	assertIssue(t, a, TypeConsoleError, models.SeverityMajor)
}

func TestAnalyzeWarningsAloneAreMinor(t *testing.T) {
	res := &SmokeResult{
		URL:            "http://localhost:3000",
		ResponseStatus: 200,
		Screenshot:     contentPNG(t, 640, 480),
		ConsoleErrors: []ConsoleMessage{
			{Level: "warning", Text: "componentWillMount has been renamed"},
		},
	}
	a := Analyze(res, testVisualConfig())
	if a.ShouldStop {
		t.Error("warnings should not stop the run")
	}
	if a.Healthy {
		t.Error("warnings still count as issues")
	}
	assertIssue(t, a, TypeConsoleWarning, models.SeverityMinor)
}

func TestAnalyzeAssetSeverityByStatus(t *testing.T) {
	res := &SmokeResult{
		URL:            "http://localhost:3000",
		ResponseStatus: 200,
		Screenshot:     contentPNG(t, 640, 480),
		AssetFailures: []AssetResponse{
			{URL: "http://localhost:3000/app.js", Status: 500},
			{URL: "http://localhost:3000/logo.png", Status: 404},
		},
	}
	a := Analyze(res, testVisualConfig())
	if !a.ShouldStop {
		t.Error("5xx asset should stop the run")
	}

	var critical, major int
	for _, is := range a.Issues {
		if is.Type != TypeAssetFailure {
			continue
		}
		switch is.Severity {
		case models.SeverityCritical:
			critical++
		case models.SeverityMajor:
			major++
		}
	}
	if critical != 1 || major != 1 {
		t.Errorf("critical=%d major=%d, want 1 and 1", critical, major)
	}
}

func TestAnalyzeHealthyPage(t *testing.T) {
	res := &SmokeResult{
		URL:            "http://localhost:3000",
		ResponseStatus: 200,
		Screenshot:     contentPNG(t, 640, 480),
	}
	a := Analyze(res, testVisualConfig())
	if !a.Healthy {
		t.Errorf("expected healthy, got issues: %+v", a.Issues)
	}
	if a.ShouldStop {
		t.Error("healthy page should not stop the run")
	}
}

func TestAnalyzeDocumentError(t *testing.T) {
	res := &SmokeResult{
		URL:            "http://localhost:3000",
		ResponseStatus: 502,
		Screenshot:     contentPNG(t, 640, 480),
	}
	a := Analyze(res, testVisualConfig())
	if !a.ShouldStop {
		t.Error("5xx document should stop the run")
	}
	assertIssue(t, a, TypeDocumentError, models.SeverityCritical)
}

func assertIssue(t *testing.T, a *Analysis, typ string, sev models.Severity) Issue {
	t.Helper()
	for _, is := range a.Issues {
		if is.Type == typ && is.Severity == sev {
			return is
		}
	}
	t.Fatalf("no %s issue at severity %s in %+v", typ, sev, a.Issues)
	return Issue{}
}
