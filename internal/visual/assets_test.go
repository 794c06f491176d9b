package visual

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"
)

func testAssetServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("console.log('ok')"))
	})
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body{}"))
	})
	mux.HandleFunc("/broken.js", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyReportsPerAssetStatus(t *testing.T) {
	srv := testAssetServer(t)
	v := NewAssetVerifier(5*time.Second, 4)

	report := v.Verify(context.Background(), []string{
		srv.URL + "/app.js",
		srv.URL + "/style.css",
		srv.URL + "/broken.js",
		srv.URL + "/missing.png",
	})

	if report.Total != 4 {
		t.Fatalf("total = %d, want 4", report.Total)
	}
	if report.Failed != 2 {
		t.Errorf("failed = %d, want 2", report.Failed)
	}

	byURL := make(map[string]AssetCheck, len(report.Checks))
	for _, c := range report.Checks {
		byURL[c.URL] = c
	}
	if c := byURL[srv.URL+"/app.js"]; !c.OK() || c.Status != 200 {
		t.Errorf("app.js check = %+v, want 200 OK", c)
	}
	if c := byURL[srv.URL+"/broken.js"]; c.OK() || c.Status != 500 {
		t.Errorf("broken.js check = %+v, want 500", c)
	}
	if c := byURL[srv.URL+"/missing.png"]; c.OK() || c.Status != 404 {
		t.Errorf("missing.png check = %+v, want 404", c)
	}
}

func TestVerifyDeduplicatesAndSorts(t *testing.T) {
	srv := testAssetServer(t)
	v := NewAssetVerifier(5*time.Second, 4)

	report := v.Verify(context.Background(), []string{
		srv.URL + "/style.css",
		srv.URL + "/app.js",
		srv.URL + "/app.js",
	})

	if report.Total != 2 {
		t.Fatalf("total = %d, want 2 after dedup", report.Total)
	}
	if !sort.SliceIsSorted(report.Checks, func(i, j int) bool {
		return report.Checks[i].URL < report.Checks[j].URL
	}) {
		t.Error("checks not sorted by URL")
	}
}

func TestVerifyRecordsTransportFailure(t *testing.T) {
	v := NewAssetVerifier(500*time.Millisecond, 2)

	report := v.Verify(context.Background(), []string{"http://127.0.0.1:1/nothing.js"})

	if report.Failed != 1 {
		t.Fatalf("failed = %d, want 1", report.Failed)
	}
	if report.Checks[0].Err == "" {
		t.Error("expected a transport error message")
	}
	if report.Checks[0].Status != 0 {
		t.Errorf("status = %d, want 0 on transport failure", report.Checks[0].Status)
	}
}
