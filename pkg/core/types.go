package core

import (
	"cmp"
	"time"
)

// ReleaseDateFormat is the layout renderers use for [Package.Release].
const ReleaseDateFormat = "2006-01-02"

// Package is one search hit on PyPI, optionally augmented with local install
// information and download statistics.
//
// Name, Version, Release and Description are fixed once a search result has
// been extracted. Installed and Downloads start out nil and are filled in by
// later pipeline stages through [Package.WithInstalled] and
// [Package.WithDownloads], which return a new value instead of mutating the
// receiver. A Package is therefore safe to share between goroutines.
type Package struct {
	Name        string     `json:"name"`                // Published name, never empty for a valid hit
	Version     string     `json:"version"`             // Published version, compared as an opaque string
	Release     time.Time  `json:"release"`             // Release timestamp in UTC
	Description string     `json:"description"`         // Short summary, may be empty
	Installed   *string    `json:"installed,omitempty"` // Locally installed version, nil if not installed
	Downloads   *Downloads `json:"downloads,omitempty"` // Download statistics, nil unless enrichment succeeded
}

// WithInstalled returns a copy of p with Installed set to version.
// Installed is write-once: if p already carries an installed version, p is
// returned unchanged.
func (p Package) WithInstalled(version string) Package {
	if p.Installed != nil {
		return p
	}
	p.Installed = &version
	return p
}

// WithDownloads returns a copy of p with Downloads set to d.
// Downloads is write-once: if p already carries statistics, p is returned
// unchanged.
func (p Package) WithDownloads(d Downloads) Package {
	if p.Downloads != nil {
		return p
	}
	p.Downloads = &d
	return p
}

// IsInstalled reports whether a local install was matched for p.
func (p Package) IsInstalled() bool { return p.Installed != nil }

// FormatRelease renders the release date as YYYY-MM-DD.
func (p Package) FormatRelease() string { return FormatRelease(p.Release) }

// FormatRelease renders t in UTC as YYYY-MM-DD.
func FormatRelease(t time.Time) string { return t.UTC().Format(ReleaseDateFormat) }

// Downloads is a popularity snapshot for one package.
type Downloads struct {
	LastDay   int `json:"last_day"`
	LastWeek  int `json:"last_week"`
	LastMonth int `json:"last_month"`
}

// Compare orders download snapshots by LastMonth only. Two snapshots with the
// same monthly count compare equal even if the other counts differ.
func (d Downloads) Compare(other Downloads) int {
	return cmp.Compare(d.LastMonth, other.LastMonth)
}

// CompareDownloads extends [Downloads.Compare] to optional values: nil is
// smaller than every present snapshot and equal to another nil.
func CompareDownloads(a, b *Downloads) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

// LocalPackage is one entry of the locally installed package inventory.
type LocalPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
