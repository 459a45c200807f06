package pypi

import (
	"bytes"
	"context"
	"net/url"
	"strconv"

	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/errors"
	"github.com/matzehuels/pps/pkg/integrations"
)

// DefaultSearchURL is pypi.org's HTML search endpoint.
const DefaultSearchURL = "https://pypi.org/search/"

// QueueSize bounds how many fetched-but-unconsumed pages may be pending.
const QueueSize = 32

// Searcher fetches and extracts PyPI search result pages.
// It is safe for concurrent use.
type Searcher struct {
	client   *integrations.Client
	baseURL  string
	locators *Locators
}

// NewSearcher creates a Searcher. An empty baseURL uses [DefaultSearchURL];
// nil locators use [DefaultLocators].
func NewSearcher(client *integrations.Client, baseURL string, loc *Locators) *Searcher {
	if client == nil {
		client = integrations.NewClient()
	}
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}
	if loc == nil {
		loc = DefaultLocators()
	}
	return &Searcher{client: client, baseURL: baseURL, locators: loc}
}

type pageResult struct {
	pkgs []core.Package
	err  error
}

// Search returns the packages on result pages 1..pages for query, in page
// order and then document order.
//
// Pages are requested concurrently. A single producer starts one request per
// page and hands the pending result to the consumer through a queue of
// [QueueSize]; when the queue is full the producer waits. The consumer reads
// pending results in the order they were queued, so a late first page holds
// back later ones rather than reordering them.
//
// The first transport or extraction error fails the whole search; remaining
// requests are cancelled and no partial results are returned. Search pages
// are not retried.
func (s *Searcher) Search(ctx context.Context, query string, pages int) ([]core.Package, error) {
	if err := errors.ValidateQuery(query); err != nil {
		return nil, err
	}
	if err := errors.ValidatePages(pages); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan (<-chan pageResult), QueueSize)
	go s.produce(ctx, query, pages, queue)

	var pkgs []core.Package
	for pending := range queue {
		var res pageResult
		select {
		case res = <-pending:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if res.err != nil {
			return nil, res.err
		}
		pkgs = append(pkgs, res.pkgs...)
	}

	// The producer also stops early on cancellation; don't mistake that
	// for a complete result.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pkgs, nil
}

func (s *Searcher) produce(ctx context.Context, query string, pages int, queue chan<- (<-chan pageResult)) {
	defer close(queue)
	for page := 1; page <= pages; page++ {
		pending := make(chan pageResult, 1)
		go func() {
			pkgs, err := s.FetchPage(ctx, query, page)
			pending <- pageResult{pkgs: pkgs, err: err}
		}()

		select {
		case queue <- pending:
		case <-ctx.Done():
			return
		}
	}
}

// FetchPage fetches and extracts a single result page.
func (s *Searcher) FetchPage(ctx context.Context, query string, page int) ([]core.Package, error) {
	pageURL, err := s.pageURL(query, page)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "search URL %q", s.baseURL)
	}

	body, err := s.client.GetBytes(ctx, pageURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(errors.ErrCodeTransport, err, "fetch search page %d", page)
	}

	pkgs, err := ExtractPage(bytes.NewReader(body), s.locators)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExtraction, err, "search page %d", page)
	}
	return pkgs, nil
}

func (s *Searcher) pageURL(query string, page int) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
