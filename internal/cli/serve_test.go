package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pps/pkg/config"
	"github.com/matzehuels/pps/pkg/errors"
	"github.com/matzehuels/pps/pkg/httputil"
	"github.com/matzehuels/pps/pkg/inventory"
	"github.com/matzehuels/pps/pkg/pipeline"
)

func newTestServer(t *testing.T, u *upstream, breakerThreshold int) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.SearchURL = u.search.URL + "/search/"
	cfg.StatsURL = u.stats.URL
	cfg.RateLimit = 0
	cfg.BreakerThreshold = breakerThreshold
	cfg.BreakerCooldown = config.Duration(time.Minute)
	cfg.Retry = config.Retry{Initial: config.Duration(time.Millisecond), Multiplier: 2, MaxElapsed: config.Duration(50 * time.Millisecond), MaxAttempts: 2}

	logger := log.New(io.Discard)
	svc, err := newServices(t.Context(), cfg, inventory.None{}, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	srv := &server{runner: svc.runner, breakers: svc.breakers, logger: logger, timeout: 5 * time.Second, pages: 1}
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestServeSearch(t *testing.T) {
	u := newUpstream(t, map[string]int{"gitlab3": 7, "python-gitlab": 900, "gitlab-ci-lint": 40})
	ts := newTestServer(t, u, 8)

	tests := []struct {
		query    string
		want     []string
		enriched bool
	}{
		{"q=gitlab", []string{"gitlab3", "python-gitlab", "gitlab-ci-lint"}, false},
		{"q=gitlab&sort=name", []string{"gitlab-ci-lint", "gitlab3", "python-gitlab"}, false},
		{"q=gitlab&sort=date", []string{"python-gitlab", "gitlab-ci-lint", "gitlab3"}, false},
		{"q=gitlab&sort=downloads", []string{"python-gitlab", "gitlab-ci-lint", "gitlab3"}, true},
		{"q=gitlab&downloads=true", []string{"gitlab3", "python-gitlab", "gitlab-ci-lint"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var res pipeline.Result
			if code := getJSON(t, ts.URL+"/search?"+tt.query, &res); code != http.StatusOK {
				t.Fatalf("status = %d, want 200", code)
			}
			if got := resultNames(res.Packages); !slices.Equal(got, tt.want) {
				t.Errorf("packages = %v, want %v", got, tt.want)
			}
			if res.Enriched != tt.enriched {
				t.Errorf("Enriched = %v, want %v", res.Enriched, tt.enriched)
			}
		})
	}
}

func TestServeSearchBadRequest(t *testing.T) {
	u := newUpstream(t, nil)
	ts := newTestServer(t, u, 8)

	tests := []struct {
		query string
		code  errors.Code
	}{
		{"", errors.ErrCodeInvalidInput},
		{"q=gitlab&sort=stars", errors.ErrCodeInvalidSortKey},
		{"q=gitlab&pages=abc", errors.ErrCodeInvalidInput},
		{"q=gitlab&pages=0", errors.ErrCodeInvalidInput},
		{fmt.Sprintf("q=gitlab&pages=%d", maxServePages+1), errors.ErrCodeInvalidInput},
		{"q=gitlab&downloads=maybe", errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var body errorResponse
			if status := getJSON(t, ts.URL+"/search?"+tt.query, &body); status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
			if body.Error == "" {
				t.Error("error message is empty")
			}
		})
	}
	if got := u.searchHits.Load(); got != 0 {
		t.Errorf("invalid requests reached upstream %d times", got)
	}
}

func TestServeUpstreamFailureTripsBreaker(t *testing.T) {
	u := newUpstream(t, nil)
	u.failSearch.Store(true)
	ts := newTestServer(t, u, 1)

	var body errorResponse
	if status := getJSON(t, ts.URL+"/search?q=gitlab", &body); status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", status)
	}
	if body.Code != errors.ErrCodeTransport {
		t.Errorf("code = %q, want %q", body.Code, errors.ErrCodeTransport)
	}

	var health healthResponse
	if status := getJSON(t, ts.URL+"/healthz", &health); status != http.StatusOK {
		t.Fatalf("healthz status = %d", status)
	}
	if health.Status != "degraded" {
		t.Errorf("health = %+v, want degraded", health)
	}
	host := strings.TrimPrefix(u.search.URL, "http://")
	if health.Breakers[host] != "open" {
		t.Errorf("breaker for %s = %q, want open", host, health.Breakers[host])
	}
}

func TestServeHealthz(t *testing.T) {
	u := newUpstream(t, nil)
	ts := newTestServer(t, u, 8)

	var health healthResponse
	getJSON(t, ts.URL+"/healthz", &health)
	if health.Status != "ok" || len(health.Breakers) != 0 {
		t.Errorf("fresh health = %+v, want ok with no breakers", health)
	}

	var res pipeline.Result
	getJSON(t, ts.URL+"/search?q=gitlab", &res)
	getJSON(t, ts.URL+"/healthz", &health)
	if health.Status != "ok" || len(health.Breakers) != 1 {
		t.Errorf("health after search = %+v, want ok with one closed breaker", health)
	}
}

func TestServeNotFound(t *testing.T) {
	u := newUpstream(t, nil)
	ts := newTestServer(t, u, 8)

	var body errorResponse
	if status := getJSON(t, ts.URL+"/nope", &body); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}

	resp, err := http.Post(ts.URL+"/search?q=x", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidInput, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeInvalidSortKey, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeTransport, "x"), http.StatusBadGateway},
		{errors.New(errors.ErrCodeExtraction, "x"), http.StatusBadGateway},
		{errors.New(errors.ErrCodeEnrichment, "x"), http.StatusBadGateway},
		{errors.Wrap(errors.ErrCodeTransport, httputil.ErrCircuitOpen, "x"), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{stderrors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- listenAndServe(ctx, "127.0.0.1:0", http.NotFoundHandler(), log.New(io.Discard))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("listenAndServe() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listenAndServe did not return after cancel")
	}
}
