// Package model defines the core data structures shared by the crawl pipeline.
//
// This package contains the following main types:
//   - Classification and SearchTerm: the crawl plan
//   - Candidate: one (primary, fallback) URL pair from a search result page
//   - ContentDigest: the dedup key computed over fetched image bytes
//   - StoredImage: an image that has been written to a bucket and registered
//   - TermResult and RunSummary: outcome bookkeeping for reports
//
// Models live in their own package so that the index, dedup, search, crawler
// and report packages can share them without import cycles.
package model
