// Package cli implements the pps command-line interface.
//
// The CLI searches PyPI, optionally attaches download statistics from
// pypistats.org, marks packages that are installed locally and prints the
// result as a table, JSON or an interactive list. It can also serve the same
// pipeline over HTTP. Commands are built with cobra and log through
// charmbracelet/log.
//
// # Commands
//
//   - search: search PyPI and print the results
//   - serve: expose search over HTTP
//   - completion: generate shell completion scripts
//
// # Logging
//
// Logs go to stderr so that table and JSON output on stdout stay clean.
// --verbose (-v) enables debug logging, which includes per-request and
// retry events. Loggers are passed through context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Found 20 packages (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// =============================================================================
// Observability Hooks
// =============================================================================

// logHooks writes pipeline, cache and HTTP events to a logger. Events for a
// context carrying its own logger go to that logger instead, so run ids are
// kept.
type logHooks struct {
	logger *log.Logger
}

func (h *logHooks) from(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return h.logger
}

func (h *logHooks) OnSearchStart(ctx context.Context, query string, pages int) {
	h.from(ctx).Debug("search started", "query", query, "pages", pages)
}

func (h *logHooks) OnSearchComplete(ctx context.Context, query string, count int, d time.Duration, err error) {
	if err != nil {
		h.from(ctx).Debug("search failed", "query", query, "err", err)
	}
}

func (h *logHooks) OnEnrichStart(ctx context.Context, count int) {
	h.from(ctx).Debug("fetching download stats", "packages", count)
}

func (h *logHooks) OnEnrichComplete(ctx context.Context, enriched int, d time.Duration, err error) {
	if err != nil {
		h.from(ctx).Debug("download stats failed", "enriched", enriched, "err", err)
	}
}

func (h *logHooks) OnEnrichSkipped(ctx context.Context, pkg string, err error) {
	h.from(ctx).Warn("no download stats", "package", pkg, "err", err)
}

func (h *logHooks) OnRetry(ctx context.Context, key string, err error, wait time.Duration) {
	h.from(ctx).Debug("retrying", "key", key, "wait", wait.Round(time.Millisecond), "err", err)
}

func (h *logHooks) OnCacheHit(ctx context.Context, keyType string) {
	h.from(ctx).Debug("cache hit", "type", keyType)
}

func (h *logHooks) OnCacheMiss(context.Context, string) {}

func (h *logHooks) OnCacheSet(context.Context, string, int) {}

func (h *logHooks) OnRequest(ctx context.Context, method, host, path string) {
	h.from(ctx).Debug("request", "method", method, "host", host, "path", path)
}

func (h *logHooks) OnResponse(ctx context.Context, method, host, path string, status int, d time.Duration) {
	h.from(ctx).Debug("response", "host", host, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnError(ctx context.Context, method, host, path string, err error) {
	h.from(ctx).Debug("request failed", "host", host, "path", path, "err", err)
}
