package pypi

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/errors"
	"github.com/matzehuels/pps/pkg/integrations"
	"github.com/matzehuels/pps/pkg/observability"
)

// DefaultStatsURL is the pypistats.org API root.
const DefaultStatsURL = "https://pypistats.org"

// DefaultConcurrency bounds concurrent statistics requests in [Stats.EnrichAll].
const DefaultConcurrency = 32

// FailurePolicy decides what [Stats.EnrichAll] does when one package's
// statistics cannot be fetched.
type FailurePolicy int

const (
	// FailFast aborts the batch and returns the first failure.
	FailFast FailurePolicy = iota
	// Degrade leaves the failing package without downloads and carries on.
	Degrade
)

// ParseFailurePolicy parses "fail-fast" or "degrade".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "degrade", "lenient":
		return Degrade, nil
	}
	return FailFast, errors.New(errors.ErrCodeInvalidConfig, "unknown enrichment failure policy %q", s)
}

func (p FailurePolicy) String() string {
	if p == Degrade {
		return "degrade"
	}
	return "fail-fast"
}

// recentResponse is the envelope of /api/packages/<name>/recent.
type recentResponse struct {
	Data *struct {
		LastDay   *int `json:"last_day"`
		LastWeek  *int `json:"last_week"`
		LastMonth *int `json:"last_month"`
	} `json:"data"`
	Package string `json:"package"`
	Type    string `json:"type"`
}

func (r recentResponse) downloads() (core.Downloads, error) {
	if r.Data == nil {
		return core.Downloads{}, fmt.Errorf("%w: missing data", integrations.ErrDecode)
	}
	d := r.Data
	if d.LastDay == nil || d.LastWeek == nil || d.LastMonth == nil {
		return core.Downloads{}, fmt.Errorf("%w: incomplete download counts", integrations.ErrDecode)
	}
	if *d.LastDay < 0 || *d.LastWeek < 0 || *d.LastMonth < 0 {
		return core.Downloads{}, fmt.Errorf("%w: negative download counts", integrations.ErrDecode)
	}
	return core.Downloads{LastDay: *d.LastDay, LastWeek: *d.LastWeek, LastMonth: *d.LastMonth}, nil
}

// Stats fetches download statistics from pypistats.org.
//
// Each lookup goes through the client's retry policy: transport failures
// (network errors, timeouts, any non-2xx status, an open circuit) are
// retried with exponential backoff, a malformed payload is not. Successful
// lookups are memoised by the client's cache, so a package listed twice is
// fetched once.
type Stats struct {
	client      *integrations.Client
	baseURL     string
	concurrency int
	policy      FailurePolicy
}

// NewStats creates a statistics client. An empty baseURL uses
// [DefaultStatsURL]; concurrency <= 0 uses [DefaultConcurrency].
func NewStats(client *integrations.Client, baseURL string, concurrency int, policy FailurePolicy) *Stats {
	if client == nil {
		client = integrations.NewClient()
	}
	if baseURL == "" {
		baseURL = DefaultStatsURL
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Stats{
		client:      client,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		concurrency: concurrency,
		policy:      policy,
	}
}

// Policy returns the batch failure policy.
func (s *Stats) Policy() FailurePolicy { return s.policy }

// Downloads returns recent download counts for one package.
func (s *Stats) Downloads(ctx context.Context, name string) (core.Downloads, error) {
	if err := errors.ValidatePackageName(name); err != nil {
		return core.Downloads{}, err
	}
	name = integrations.NormalizePkgName(name)
	endpoint := fmt.Sprintf("%s/api/packages/%s/recent", s.baseURL, url.PathEscape(name))

	var d core.Downloads
	err := s.client.Cached(ctx, "stats:"+name, &d, func() error {
		var resp recentResponse
		if err := s.client.Get(ctx, endpoint, &resp); err != nil {
			return err
		}
		parsed, err := resp.downloads()
		if err != nil {
			return err
		}
		d = parsed
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.Downloads{}, ctxErr
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return core.Downloads{}, err
		}
		return core.Downloads{}, errors.Wrap(errors.ErrCodeEnrichment, err, "download stats for %q", name)
	}
	return d, nil
}

// EnrichAll attaches download statistics to every package concurrently and
// returns once every lookup has finished. The input slice is not modified;
// each lookup writes only its own index of the result.
//
// Under [FailFast] the first failure cancels the remaining lookups and is
// returned. Under [Degrade] failing packages keep Downloads == nil, each
// failure is reported through [observability.PipelineHooks.OnEnrichSkipped]
// and no error is returned unless ctx is cancelled.
func (s *Stats) EnrichAll(ctx context.Context, pkgs []core.Package) ([]core.Package, error) {
	out := make([]core.Package, len(pkgs))
	copy(out, pkgs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, pkg := range pkgs {
		if pkg.Downloads != nil {
			continue
		}
		g.Go(func() error {
			d, err := s.Downloads(gctx, pkg.Name)
			if err != nil {
				if s.policy == Degrade && ctx.Err() == nil && !stderrors.Is(err, context.DeadlineExceeded) {
					observability.Pipeline().OnEnrichSkipped(ctx, pkg.Name, err)
					return nil
				}
				return err
			}
			out[i] = pkg.WithDownloads(d)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
