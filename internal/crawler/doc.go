// Package crawler drives a crawl plan through search, dedup and storage.
//
// The Orchestrator visits each (classification, term) pair of the plan in
// order. Each term walks a small state machine:
//
//	Start -> Paginating -> Paginating | Done | Aborted
//
// On every step the current page is queried, its raw response persisted to
// the query log, and all of its candidates processed before the cursor
// advances. A failed search request aborts only its term; the orchestrator
// then moves on to the next one. Candidate failures are counted and never
// stop a term.
//
// With concurrency above one, the candidates of a page are processed by a
// bounded group of goroutines. Pages and terms remain strictly sequential.
package crawler
