// Package pipeline runs a package search end to end.
//
// A run has four stages:
//
//  1. Search: fetch and extract result pages from PyPI
//  2. Enrich: attach download statistics (only when requested, or when
//     ordering by downloads)
//  3. Merge: mark packages that are installed locally
//  4. Order: apply the requested sort key
//
// The local inventory is listed while the search is in flight. Between
// stages the Runner owns the package slice; no stage keeps a reference to it
// after returning.
//
// # Usage
//
//	runner := pipeline.NewRunner(searcher, stats, inventory.PipLister{}, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Query:   "gitlab",
//	    Pages:   3,
//	    SortKey: core.SortDownloads,
//	})
package pipeline

import (
	"time"

	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/errors"
)

// DefaultPages is the number of result pages fetched when Options.Pages is 0.
const DefaultPages = 1

// Options configures one pipeline run.
type Options struct {
	Query   string       `json:"query"`
	Pages   int          `json:"pages,omitempty"`
	SortKey core.SortKey `json:"sort,omitempty"`

	// Downloads requests enrichment even when not sorting by downloads.
	Downloads bool `json:"downloads,omitempty"`

	// Timeout bounds the whole run. Zero means no deadline beyond the
	// caller's context.
	Timeout time.Duration `json:"-"`
}

// ValidateAndSetDefaults checks opts and fills in zero values.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Pages == 0 {
		o.Pages = DefaultPages
	}
	if o.SortKey == "" {
		o.SortKey = core.SortRelevance
	}
	if err := errors.ValidateQuery(o.Query); err != nil {
		return err
	}
	if err := errors.ValidatePages(o.Pages); err != nil {
		return err
	}
	key, err := core.ParseSortKey(string(o.SortKey))
	if err != nil {
		return err
	}
	o.SortKey = key
	if o.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout cannot be negative")
	}
	return nil
}

// NeedsEnrichment reports whether the run fetches download statistics.
func (o Options) NeedsEnrichment() bool {
	return o.Downloads || o.SortKey.NeedsDownloads()
}

// Result is the outcome of a run.
type Result struct {
	Packages []core.Package `json:"packages"`

	// Enriched is true when the enrichment stage ran. Individual packages
	// may still lack statistics if enrichment degraded.
	Enriched bool `json:"enriched"`

	Stats Stats `json:"stats"`
}

// Stats records counts and per-stage timings.
type Stats struct {
	Found      int           `json:"found"`
	Enriched   int           `json:"enriched"`
	Installed  int           `json:"installed"`
	SearchTime time.Duration `json:"search_ns"`
	EnrichTime time.Duration `json:"enrich_ns,omitempty"`
	TotalTime  time.Duration `json:"total_ns"`
}
