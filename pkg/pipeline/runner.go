package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/inventory"
	"github.com/matzehuels/pps/pkg/observability"
)

// Searcher returns the packages on the first pages result pages for query.
type Searcher interface {
	Search(ctx context.Context, query string, pages int) ([]core.Package, error)
}

// Enricher attaches download statistics to packages.
type Enricher interface {
	EnrichAll(ctx context.Context, pkgs []core.Package) ([]core.Package, error)
}

// Runner executes the search pipeline.
//
// The Runner holds no per-run state, so one Runner may serve concurrent
// runs with different options.
type Runner struct {
	Searcher  Searcher
	Enricher  Enricher
	Inventory inventory.Lister
	Logger    *log.Logger
}

// NewRunner creates a runner. A nil lister means nothing is installed
// locally; a nil logger uses log.Default().
func NewRunner(s Searcher, e Enricher, l inventory.Lister, logger *log.Logger) *Runner {
	if l == nil {
		l = inventory.None{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Searcher: s, Enricher: e, Inventory: l, Logger: logger}
}

// Execute runs search, enrichment, merge and ordering.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	result := &Result{}

	// Stage 1: search, with the local inventory listed alongside
	pkgs, local, err := r.search(ctx, opts, &result.Stats)
	if err != nil {
		return nil, err
	}

	// Stage 2: enrich
	if opts.NeedsEnrichment() && r.Enricher != nil {
		pkgs, err = r.enrich(ctx, pkgs, &result.Stats)
		if err != nil {
			return nil, err
		}
		result.Enriched = true
	}

	// Stages 3 and 4: merge and order
	pkgs = core.Merge(pkgs, local)
	pkgs = core.Order(pkgs, opts.SortKey)
	for _, p := range pkgs {
		if p.IsInstalled() {
			result.Stats.Installed++
		}
	}

	result.Packages = pkgs
	result.Stats.TotalTime = time.Since(start)

	r.Logger.Debug("ordered results",
		"sort", opts.SortKey,
		"installed", result.Stats.Installed,
		"duration", result.Stats.TotalTime)

	return result, nil
}

func (r *Runner) search(ctx context.Context, opts Options, stats *Stats) ([]core.Package, []core.LocalPackage, error) {
	hooks := observability.Pipeline()
	hooks.OnSearchStart(ctx, opts.Query, opts.Pages)
	searchStart := time.Now()

	var (
		pkgs  []core.Package
		local []core.LocalPackage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pkgs, err = r.Searcher.Search(gctx, opts.Query, opts.Pages)
		return err
	})
	g.Go(func() error {
		var err error
		local, err = r.Inventory.List(gctx)
		return err
	})
	err := g.Wait()

	stats.SearchTime = time.Since(searchStart)
	stats.Found = len(pkgs)
	hooks.OnSearchComplete(ctx, opts.Query, len(pkgs), stats.SearchTime, err)
	if err != nil {
		return nil, nil, err
	}

	r.Logger.Info("searched PyPI",
		"query", opts.Query,
		"pages", opts.Pages,
		"packages", len(pkgs),
		"installed", len(local),
		"duration", stats.SearchTime.Round(time.Millisecond))

	return pkgs, local, nil
}

func (r *Runner) enrich(ctx context.Context, pkgs []core.Package, stats *Stats) ([]core.Package, error) {
	hooks := observability.Pipeline()
	hooks.OnEnrichStart(ctx, len(pkgs))
	enrichStart := time.Now()

	out, err := r.Enricher.EnrichAll(ctx, pkgs)

	stats.EnrichTime = time.Since(enrichStart)
	for _, p := range out {
		if p.Downloads != nil {
			stats.Enriched++
		}
	}
	hooks.OnEnrichComplete(ctx, stats.Enriched, stats.EnrichTime, err)
	if err != nil {
		return nil, err
	}

	r.Logger.Info("fetched download stats",
		"packages", stats.Enriched,
		"missing", len(out)-stats.Enriched,
		"duration", stats.EnrichTime.Round(time.Millisecond))

	return out, nil
}
