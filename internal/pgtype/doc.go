// Package pgtype registers custom decoders for server types.
//
// A Registry maps type OIDs to Decoders. Bootstrap resolves type names to
// OIDs through a catalog query and fills a Registry; Setup memoizes that
// work so it runs once per pool. The default decoder set converts interval
// columns to ISO-8601 durations.
package pgtype
