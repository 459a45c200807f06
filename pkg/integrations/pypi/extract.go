package pypi

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/matzehuels/pps/pkg/core"
	"github.com/matzehuels/pps/pkg/errors"
)

// Locators are the compiled CSS selectors used to pick package fields out of
// a search result page. They are immutable and safe for concurrent use.
type Locators struct {
	Entry       cascadia.Selector // one result snippet
	Name        cascadia.Selector
	Version     cascadia.Selector
	Description cascadia.Selector
	Released    cascadia.Selector
	Time        cascadia.Selector // nested inside Released
}

// NewLocators compiles the selectors for pypi.org's search markup.
func NewLocators() *Locators {
	return &Locators{
		Entry:       cascadia.MustCompile("a.package-snippet"),
		Name:        cascadia.MustCompile("span.package-snippet__name"),
		Version:     cascadia.MustCompile("span.package-snippet__version"),
		Description: cascadia.MustCompile("p.package-snippet__description"),
		Released:    cascadia.MustCompile("span.package-snippet__released"),
		Time:        cascadia.MustCompile("time"),
	}
}

// DefaultLocators returns the shared selector set, compiled on first use.
var DefaultLocators = sync.OnceValue(NewLocators)

// timestampLayouts are tried in order. The last two accept a numeric offset
// without a colon ("+0000"), which RFC 3339 does not.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999Z0700",
}

// ParseTimestamp parses a result's datetime attribute and returns it in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// ExtractPackage builds a Package from one result snippet.
//
// Name, version and description are best effort: a missing node yields "".
// The release timestamp is mandatory; if the released span, its time element,
// the datetime attribute or a parseable value is missing, an
// EXTRACTION_ERROR is returned.
func ExtractPackage(snippet *goquery.Selection, loc *Locators) (core.Package, error) {
	if loc == nil {
		loc = DefaultLocators()
	}

	pkg := core.Package{
		Name:        text(snippet, loc.Name),
		Version:     text(snippet, loc.Version),
		Description: text(snippet, loc.Description),
	}

	released := snippet.FindMatcher(loc.Released).First()
	if released.Length() == 0 {
		return pkg, errors.New(errors.ErrCodeExtraction, "package %q: no release date", pkg.Name)
	}
	stamp, ok := released.FindMatcher(loc.Time).First().Attr("datetime")
	if !ok {
		return pkg, errors.New(errors.ErrCodeExtraction, "package %q: release date has no datetime attribute", pkg.Name)
	}
	t, err := ParseTimestamp(stamp)
	if err != nil {
		return pkg, errors.Wrap(errors.ErrCodeExtraction, err, "package %q: invalid release date %q", pkg.Name, stamp)
	}
	pkg.Release = t
	return pkg, nil
}

// ExtractPage parses a search result page and extracts every snippet in
// document order. The first snippet that fails extraction fails the page.
func ExtractPage(r io.Reader, loc *Locators) ([]core.Package, error) {
	if loc == nil {
		loc = DefaultLocators()
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExtraction, err, "parse search page")
	}

	snippets := doc.FindMatcher(loc.Entry)
	pkgs := make([]core.Package, 0, snippets.Length())
	var extractErr error
	snippets.EachWithBreak(func(i int, s *goquery.Selection) bool {
		pkg, err := ExtractPackage(s, loc)
		if err != nil {
			extractErr = errors.Wrap(errors.ErrCodeExtraction, err, "result %d", i+1)
			return false
		}
		pkgs = append(pkgs, pkg)
		return true
	})
	if extractErr != nil {
		return nil, extractErr
	}
	return pkgs, nil
}

func text(s *goquery.Selection, sel cascadia.Selector) string {
	return strings.TrimSpace(s.FindMatcher(sel).First().Text())
}
