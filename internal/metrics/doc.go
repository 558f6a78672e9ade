// Package metrics exposes crawl progress as Prometheus metrics.
//
// A Metrics value owns a private registry holding the imagecrawl_ counters
// candidates_total and pages_total, terms_total, and the
// page_duration_seconds histogram, along with the Go and process
// collectors. Serve publishes the registry on /metrics until its context
// is cancelled.
package metrics
