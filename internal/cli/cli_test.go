package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/errors"
	"github.com/matzehuels/pps/pkg/observability"
	"github.com/matzehuels/pps/pkg/pipeline"
)

const fixturePage = "../../pkg/integrations/pypi/testdata/search_gitlab.html"

// upstream fakes the PyPI search page and the pypistats API.
type upstream struct {
	search     *httptest.Server
	stats      *httptest.Server
	searchHits atomic.Int32
	statsHits  atomic.Int32
	failSearch atomic.Bool
	failStats  atomic.Bool
}

func newUpstream(t *testing.T, month map[string]int) *upstream {
	t.Helper()
	page, err := os.ReadFile(fixturePage)
	if err != nil {
		t.Fatal(err)
	}

	u := &upstream{}
	u.search = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.searchHits.Add(1)
		if u.failSearch.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(page)
	}))
	u.stats = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.statsHits.Add(1)
		if u.failStats.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		// /api/packages/<name>/recent
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 4 {
			http.NotFound(w, r)
			return
		}
		n := month[parts[2]]
		fmt.Fprintf(w, `{"data":{"last_day":%d,"last_week":%d,"last_month":%d},"package":%q,"type":"recent_downloads"}`, n/30, n/4, n, parts[2])
	}))
	t.Cleanup(u.search.Close)
	t.Cleanup(u.stats.Close)
	return u
}

// writeConfig writes a config file pointing at u with fast retries.
func writeConfig(t *testing.T, u *upstream, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	content := fmt.Sprintf(`search_url = %q
stats_url = %q
rate_limit = 0
breaker_threshold = 0
%s
[retry]
initial = "1ms"
max_interval = "2ms"
max_elapsed = "100ms"
max_attempts = 2
`, u.search.URL+"/search/", u.stats.URL, extra)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Cleanup(observability.Reset)

	var out bytes.Buffer
	c := New(io.Discard, log.InfoLevel)
	c.Out = &out

	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func decodeResult(t *testing.T, out string) pipeline.Result {
	t.Helper()
	var res pipeline.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	return res
}

func resultNames(pkgs []core.Package) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.Name
	}
	return out
}

func TestSearchJSON(t *testing.T) {
	u := newUpstream(t, nil)
	cfg := writeConfig(t, u, "")

	out, err := runCLI(t, "search", "gitlab", "--config", cfg, "--no-installed", "-o", "json")
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	res := decodeResult(t, out)

	want := []string{"gitlab3", "python-gitlab", "gitlab-ci-lint"}
	if got := resultNames(res.Packages); !slices.Equal(got, want) {
		t.Errorf("packages = %v, want %v", got, want)
	}
	if res.Enriched || u.statsHits.Load() != 0 {
		t.Errorf("enrichment ran without being requested (hits=%d)", u.statsHits.Load())
	}
}

func TestSearchPagesAndSortByDownloads(t *testing.T) {
	u := newUpstream(t, map[string]int{"gitlab3": 10, "python-gitlab": 5000, "gitlab-ci-lint": 300})
	cfg := writeConfig(t, u, "")

	out, err := runCLI(t, "search", "gitlab", "--config", cfg, "--no-installed",
		"--pages", "2", "--sort-by", "Downloads", "-o", "json")
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	res := decodeResult(t, out)

	if u.searchHits.Load() != 2 {
		t.Errorf("search requests = %d, want 2", u.searchHits.Load())
	}
	want := []string{"python-gitlab", "python-gitlab", "gitlab-ci-lint", "gitlab-ci-lint", "gitlab3", "gitlab3"}
	if got := resultNames(res.Packages); !slices.Equal(got, want) {
		t.Errorf("packages = %v, want %v", got, want)
	}
	if !res.Enriched || res.Packages[0].Downloads == nil || res.Packages[0].Downloads.LastMonth != 5000 {
		t.Errorf("first package downloads = %+v, want 5000 per month", res.Packages[0].Downloads)
	}
}

func TestSearchTableWithInstalled(t *testing.T) {
	u := newUpstream(t, nil)
	cfg := writeConfig(t, u, "")

	inv := filepath.Join(t.TempDir(), "pip-list.txt")
	listing := "Package    Version\n---------- -------\npython-gitlab 3.15.0\nrequests 2.31.0\n"
	if err := os.WriteFile(inv, []byte(listing), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "search", "gitlab", "--config", cfg, "--installed-from", inv, "--header")
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header and 3 rows:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "Name") {
		t.Errorf("first line %q is not the header", lines[0])
	}
	if !strings.Contains(lines[2], "python-gitlab") || !strings.Contains(lines[2], "3.15.0") {
		t.Errorf("python-gitlab row %q should show the installed version", lines[2])
	}
	if strings.Contains(out, "requests") {
		t.Error("local-only packages must not be listed")
	}
	if strings.Contains(out, "Downloads") {
		t.Error("Downloads column shown without enrichment")
	}
}

func TestSearchEnrichmentFailure(t *testing.T) {
	u := newUpstream(t, nil)
	u.failStats.Store(true)
	cfg := writeConfig(t, u, "")

	_, err := runCLI(t, "search", "gitlab", "--config", cfg, "--no-installed", "--downloads", "-o", "json")
	if !errors.Is(err, errors.ErrCodeEnrichment) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeEnrichment)
	}

	out, err := runCLI(t, "search", "gitlab", "--config", cfg, "--no-installed", "--downloads", "--lenient", "-o", "json")
	if err != nil {
		t.Fatalf("lenient search error: %v", err)
	}
	res := decodeResult(t, out)
	if len(res.Packages) != 3 || !res.Enriched {
		t.Fatalf("result = %+v, want 3 enriched-stage packages", res)
	}
	for _, p := range res.Packages {
		if p.Downloads != nil {
			t.Errorf("%s has downloads after failed lookups", p.Name)
		}
	}
}

func TestSearchErrors(t *testing.T) {
	u := newUpstream(t, nil)
	cfg := writeConfig(t, u, "")

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"bad sort key", []string{"--sort-by", "stars"}, errors.ErrCodeInvalidSortKey},
		{"bad pages", []string{"--pages", "0"}, errors.ErrCodeInvalidConfig},
		{"bad output", []string{"-o", "yaml"}, errors.ErrCodeInvalidInput},
		{"missing inventory", []string{"--installed-from", filepath.Join(t.TempDir(), "nope.txt")}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"search", "gitlab", "--config", cfg}, tt.args...)
			_, err := runCLI(t, args...)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestSearchTransportError(t *testing.T) {
	u := newUpstream(t, nil)
	u.failSearch.Store(true)
	cfg := writeConfig(t, u, "")

	_, err := runCLI(t, "search", "gitlab", "--config", cfg, "--no-installed")
	if !errors.Is(err, errors.ErrCodeTransport) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeTransport)
	}
	if got := u.searchHits.Load(); got != 1 {
		t.Errorf("search requests = %d, want 1 (pages are not retried)", got)
	}
}

func TestConfigFileDefaults(t *testing.T) {
	u := newUpstream(t, nil)
	cfg := writeConfig(t, u, `sort_by = "name"`)

	out, err := runCLI(t, "search", "gitlab", "--config", cfg, "--no-installed", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"gitlab-ci-lint", "gitlab3", "python-gitlab"}
	if got := resultNames(decodeResult(t, out).Packages); !slices.Equal(got, want) {
		t.Errorf("packages = %v, want %v (sorted by config)", got, want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "version: dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestCompletionCommand(t *testing.T) {
	out, err := runCLI(t, "completion", "bash")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "pps") {
		t.Error("bash completion does not mention pps")
	}
}
