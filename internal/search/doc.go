// Package search pages through image results of a Custom Search endpoint.
//
// A Paginator issues one request per page for a search term, identified by
// a 1-based start index, and turns the response into candidates plus a
// cursor for the next page. The raw response bytes are returned unchanged
// so the caller can persist them.
//
// Paging stops when the response has no next-page cursor, when the cursor
// would reach the page ceiling, or when it does not advance. The ceiling
// bounds every term's pagination even if the API keeps offering pages.
package search
