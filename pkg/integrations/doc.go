// Package integrations provides the HTTP clients for the upstream services
// pps talks to.
//
// # Overview
//
// The [pypi] subpackage holds the two concrete clients:
//
//   - the search page fetcher and HTML extractor for pypi.org
//   - the download statistics client for pypistats.org
//
// # Shared Infrastructure
//
// [Client] bundles what both need: default headers, an optional
// [golang.org/x/time/rate] limiter, per-host circuit breakers, an in-memory
// response cache and the retry loop behind [Client.Cached].
//
//	client := integrations.NewClient(
//	    integrations.WithRateLimit(20, 5),
//	    integrations.WithBreakers(httputil.NewBreakers(5, time.Second)),
//	)
//	body, err := client.GetBytes(ctx, url)
//
// Every non-2xx response and every network failure comes back as a
// retryable error wrapping [ErrNetwork] (or [ErrNotFound] for 404), so
// callers decide whether to retry by choosing [Client.GetBytes] or
// [Client.Cached].
//
// [pypi]: github.com/matzehuels/pps/pkg/integrations/pypi
package integrations
