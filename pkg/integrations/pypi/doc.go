// Package pypi searches pypi.org and fetches download statistics from
// pypistats.org.
//
// # Overview
//
// PyPI has no JSON search API, so [Searcher] requests the HTML result pages
// at https://pypi.org/search/ and [ExtractPage] picks each result snippet
// apart with precompiled CSS selectors ([Locators]). [Stats] queries
// https://pypistats.org/api/packages/<name>/recent for recent download
// counts.
//
// # Usage
//
//	client := integrations.NewClient()
//	searcher := pypi.NewSearcher(client, "", nil)
//
//	pkgs, err := searcher.Search(ctx, "gitlab", 3)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats := pypi.NewStats(client, "", 0, pypi.FailFast)
//	pkgs, err = stats.EnrichAll(ctx, pkgs)
//
// # Extraction
//
// Each result is an anchor like:
//
//	<a class="package-snippet" href="/project/gitlab3/">
//	  <span class="package-snippet__name">gitlab3</span>
//	  <span class="package-snippet__version">0.5.8</span>
//	  <span class="package-snippet__released"><time datetime="2017-03-18T19:38:52+0000">…</time></span>
//	  <p class="package-snippet__description">GitLab API v3 Python Wrapper.</p>
//	</a>
//
// Name, version and description fall back to "" when absent. A missing or
// unparseable release timestamp fails extraction, and with it the search.
//
// # Retries
//
// Search pages are fetched once. Statistics lookups are retried under the
// client's [httputil.RetryPolicy].
//
// [httputil.RetryPolicy]: github.com/matzehuels/pps/pkg/httputil.RetryPolicy
package pypi
