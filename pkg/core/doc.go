// Package core holds the package records produced by a search and the pure
// operations applied to them after retrieval.
//
// # Records
//
//   - [Package]: one search hit with optional install and download data
//   - [Downloads]: recent download counts, ordered by the monthly count
//   - [LocalPackage]: one locally installed (name, version) pair
//
// Optional fields are pointers and are populated by returning new values
// ([Package.WithInstalled], [Package.WithDownloads]), so concurrent pipeline
// stages never write to a shared record.
//
// # Merge and order
//
// [Merge] attaches local install information by exact name match. [Order]
// applies one of the [SortKey] orderings:
//
//	pkgs = core.Merge(pkgs, local)
//	pkgs = core.Order(pkgs, core.SortDownloads)
//
// All orderings are stable and idempotent.
package core
