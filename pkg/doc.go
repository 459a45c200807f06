// Package pkg provides the libraries behind pps, a PyPI search tool.
//
// # Overview
//
// pps searches PyPI, marks results that are installed locally and can rank
// them by release date, name or recent downloads. The pkg directory is
// organized into these areas:
//
//  1. [core] - Package records, merge with the local inventory, ordering
//  2. [integrations] - HTTP client shared by the upstream APIs
//  3. [integrations/pypi] - Search page extraction and download statistics
//  4. [inventory] - Locally installed packages (pip list)
//  5. [pipeline] - Orchestration (search → enrich → merge → order)
//  6. [config], [cache], [httputil], [observability], [errors] - Supporting
//     infrastructure
//
// # Architecture
//
// The data flow of one search:
//
//	PyPI search pages (HTML, fetched concurrently, kept in page order)
//	         ↓
//	    [integrations/pypi] Searcher (extract package snippets)
//	         ↓
//	    [integrations/pypi] Stats (optional, pypistats.org with retry)
//	         ↓
//	    [core] Merge with [inventory] listing, then Order
//	         ↓
//	    table / JSON / interactive list
//
// # Quick Start
//
//	client := integrations.NewClient()
//	runner := pipeline.NewRunner(
//	    pypi.NewSearcher(client, "", nil),
//	    pypi.NewStats(client, "", 0, pypi.FailFast),
//	    inventory.PipLister{},
//	    nil,
//	)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Query:   "gitlab",
//	    SortKey: core.SortDownloads,
//	})
package pkg
