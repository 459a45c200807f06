package core

import (
	"slices"
	"strings"

	"github.com/matzehuels/pps/pkg/errors"
)

// SortKey selects one of the total orders [Order] can apply.
type SortKey string

const (
	// SortRelevance keeps the order the search endpoint returned.
	SortRelevance SortKey = "pypi"
	// SortDate orders by release, most recent first.
	SortDate SortKey = "date"
	// SortName orders by name, ascending.
	SortName SortKey = "name"
	// SortDownloads orders by monthly downloads, highest first. Packages
	// without statistics go last.
	SortDownloads SortKey = "downloads"
)

// SortKeys lists every valid key in the order they are presented to users.
var SortKeys = []SortKey{SortRelevance, SortDate, SortName, SortDownloads}

// String implements fmt.Stringer.
func (k SortKey) String() string { return string(k) }

// ParseSortKey parses a user-supplied sort key, case-insensitively.
// An empty string and "relevance" both select [SortRelevance].
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pypi", "relevance":
		return SortRelevance, nil
	case "date":
		return SortDate, nil
	case "name":
		return SortName, nil
	case "downloads":
		return SortDownloads, nil
	}
	return "", errors.New(errors.ErrCodeInvalidSortKey, "unknown sort key %q", s)
}

// NeedsDownloads reports whether ordering by k is only meaningful once
// download statistics have been attached.
func (k SortKey) NeedsDownloads() bool { return k == SortDownloads }

// Order returns pkgs sorted by key. The input slice is never modified.
//
// Every ordering is stable, so ties keep their incoming relative order and
// applying the same key twice yields the same sequence. Ordering by
// [SortDownloads] does not require statistics: when every package has
// Downloads == nil the result equals the input order.
func Order(pkgs []Package, key SortKey) []Package {
	out := slices.Clone(pkgs)

	switch key {
	case SortDate:
		slices.SortStableFunc(out, func(a, b Package) int {
			return b.Release.Compare(a.Release)
		})
	case SortName:
		slices.SortStableFunc(out, func(a, b Package) int {
			return strings.Compare(a.Name, b.Name)
		})
	case SortDownloads:
		slices.SortStableFunc(out, func(a, b Package) int {
			return CompareDownloads(b.Downloads, a.Downloads)
		})
	}
	return out
}
