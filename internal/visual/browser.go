// Package visual runs browser smoke tests against a served project and
// classifies blank-page and asset failures.
package visual

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ConsoleMessage is one console entry captured during navigation.
type ConsoleMessage struct {
	// Level is the console API level ("log", "warning", "error", ...).
	Level string `json:"level"`
	// Text is the joined message text.
	Text string `json:"text"`
}

// AssetResponse is one network response observed during navigation.
type AssetResponse struct {
	// URL is the requested resource.
	URL string `json:"url"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// MimeType is the response MIME type.
	MimeType string `json:"mime_type"`
}

// SmokeResult is everything one navigation produced.
type SmokeResult struct {
	// URL is the page that was loaded.
	URL string `json:"url"`
	// Screenshot is a full-page PNG, captured even when the page failed.
	Screenshot []byte `json:"-"`
	// ConsoleErrors holds console messages at warning level or above.
	ConsoleErrors []ConsoleMessage `json:"console_errors"`
	// PageErrors holds uncaught page exceptions.
	PageErrors []string `json:"page_errors"`
	// AssetFailures lists network responses with non-2xx status.
	AssetFailures []AssetResponse `json:"asset_failures"`
	// Assets lists every network response observed, for re-verification.
	Assets []AssetResponse `json:"assets"`
	// ResponseStatus is the status of the main document response.
	ResponseStatus int `json:"response_status"`
	// LoadTime is how long navigation took.
	LoadTime time.Duration `json:"load_time"`
}

// Driver is the headless-browser capability the pipeline needs: navigate,
// capture screenshot, console, page errors, and network responses. Any
// automation driver satisfying it is substitutable.
type Driver interface {
	Capture(ctx context.Context, url string) (*SmokeResult, error)
}

// ChromeDriver drives a headless Chrome via the DevTools protocol.
// Each Capture owns exactly one browser instance, released on every exit
// path.
type ChromeDriver struct {
	// NavigationTimeout bounds the whole navigation.
	NavigationTimeout time.Duration
	// SettleDelay is how long to wait after load for async errors to land.
	SettleDelay time.Duration
}

// NewChromeDriver creates a ChromeDriver with the given navigation timeout.
func NewChromeDriver(navigationTimeout time.Duration) *ChromeDriver {
	if navigationTimeout <= 0 {
		navigationTimeout = 30 * time.Second
	}
	return &ChromeDriver{
		NavigationTimeout: navigationTimeout,
		SettleDelay:       2 * time.Second,
	}
}

// Capture navigates to the URL, collecting console messages, uncaught
// exceptions, and all network responses, and takes a full-page screenshot
// regardless of outcome, as evidence even on failure.
func (d *ChromeDriver) Capture(ctx context.Context, url string) (*SmokeResult, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, d.NavigationTimeout)
	defer cancelRun()

	result := &SmokeResult{URL: url}
	var mu sync.Mutex

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		mu.Lock()
		defer mu.Unlock()

		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			level := string(e.Type)
			if level != "error" && level != "warning" && level != "assert" {
				return
			}
			result.ConsoleErrors = append(result.ConsoleErrors, ConsoleMessage{
				Level: level,
				Text:  consoleText(e.Args),
			})

		case *runtime.EventExceptionThrown:
			text := e.ExceptionDetails.Text
			if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
				text = e.ExceptionDetails.Exception.Description
			}
			result.PageErrors = append(result.PageErrors, text)

		case *network.EventResponseReceived:
			resp := AssetResponse{
				URL:      e.Response.URL,
				Status:   int(e.Response.Status),
				MimeType: e.Response.MimeType,
			}
			result.Assets = append(result.Assets, resp)
			if e.Type == network.ResourceTypeDocument && result.ResponseStatus == 0 {
				result.ResponseStatus = resp.Status
			}
			if resp.Status < 200 || resp.Status >= 300 {
				result.AssetFailures = append(result.AssetFailures, resp)
			}
		}
	})

	start := time.Now()
	navErr := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.Sleep(d.SettleDelay),
	)
	result.LoadTime = time.Since(start)

	// Screenshot on every exit path: a failed page's pixels are evidence
	// too. Use a short independent deadline so a hung page cannot block it.
	shotCtx, cancelShot := context.WithTimeout(browserCtx, 5*time.Second)
	defer cancelShot()
	var shot []byte
	if shotErr := chromedp.Run(shotCtx, chromedp.FullScreenshot(&shot, 80)); shotErr == nil {
		result.Screenshot = shot
	}

	if navErr != nil {
		return result, fmt.Errorf("navigate %s: %w", url, navErr)
	}
	return result, nil
}

// consoleText flattens console call arguments into one line.
func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case arg == nil:
			continue
		case arg.Value != nil:
			parts = append(parts, strings.Trim(string(arg.Value), `"`))
		case arg.Description != "":
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}

// Verify interface conformance at compile time.
var _ Driver = (*ChromeDriver)(nil)
