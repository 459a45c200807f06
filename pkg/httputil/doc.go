// Package httputil provides HTTP plumbing shared by the registry clients.
//
// # Retry
//
// [Retry] runs an operation under a [RetryPolicy], an exponential backoff
// schedule with jitter. Only errors marked with [Retryable] are retried:
//
//	err := httputil.Retry(ctx, httputil.DefaultRetryPolicy(), func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	}, nil)
//
// Everything else (404s, decode failures, cancellation) stops the loop
// immediately. A policy with MaxElapsed == 0 and MaxAttempts == 0 retries
// until the context is cancelled.
//
// # Circuit breakers
//
// [Breakers] holds one breaker per upstream host. After a run of transient
// failures the breaker opens and further calls fail fast with a retryable
// [ErrCircuitOpen] until the cool-down passes.
//
// # Transport
//
// [NewHTTPClient] builds an [net/http.Client] with bounded timeouts and,
// optionally, a caching DNS resolver from [NewResolver]. Fetching dozens of
// result pages and statistics in parallel would otherwise resolve the same
// two hosts once per connection.
package httputil
