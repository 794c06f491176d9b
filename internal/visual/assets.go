package visual

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// AssetCheck is the outcome of re-fetching one asset.
type AssetCheck struct {
	// URL is the asset that was fetched.
	URL string `json:"url"`
	// Status is the HTTP status, 0 when the fetch itself failed.
	Status int `json:"status"`
	// LoadTime is how long the fetch took.
	LoadTime time.Duration `json:"load_time"`
	// Err describes a transport-level failure, empty on success.
	Err string `json:"err,omitempty"`
}

// OK reports whether the asset fetched with a 2xx status.
func (c AssetCheck) OK() bool {
	return c.Err == "" && c.Status >= 200 && c.Status < 300
}

// AssetReport summarizes one verification pass.
type AssetReport struct {
	Checks []AssetCheck `json:"checks"`
	Total  int          `json:"total"`
	Failed int          `json:"failed"`
}

// AssetVerifier re-fetches asset URLs independently of the browser. The
// redundancy is deliberate: a response the browser served from cache can
// still be broken on the server.
type AssetVerifier struct {
	client  *http.Client
	timeout time.Duration
	workers int
}

// NewAssetVerifier creates a verifier with a per-fetch timeout and a bound
// on concurrent fetches.
func NewAssetVerifier(timeout time.Duration, workers int) *AssetVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if workers <= 0 {
		workers = 8
	}
	return &AssetVerifier{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		workers: workers,
	}
}

// Verify fetches every URL concurrently and returns checks sorted by URL.
// Individual fetch failures are recorded, not returned as errors.
func (v *AssetVerifier) Verify(ctx context.Context, urls []string) *AssetReport {
	seen := make(map[string]struct{}, len(urls))
	unique := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}

	checks := make([]AssetCheck, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, u := range unique {
		g.Go(func() error {
			checks[i] = v.fetch(gctx, u)
			return nil
		})
	}
	// Workers never return errors, so Wait only observes ctx cancellation.
	_ = g.Wait()

	sort.Slice(checks, func(i, j int) bool { return checks[i].URL < checks[j].URL })

	report := &AssetReport{Checks: checks, Total: len(checks)}
	for _, c := range checks {
		if !c.OK() {
			report.Failed++
		}
	}
	return report
}

func (v *AssetVerifier) fetch(ctx context.Context, url string) AssetCheck {
	check := AssetCheck{URL: url}

	fctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fctx, http.MethodGet, url, nil)
	if err != nil {
		check.Err = fmt.Sprintf("build request: %v", err)
		return check
	}

	start := time.Now()
	resp, err := v.client.Do(req)
	check.LoadTime = time.Since(start)
	if err != nil {
		check.Err = err.Error()
		return check
	}
	defer resp.Body.Close()

	check.Status = resp.StatusCode
	return check
}
