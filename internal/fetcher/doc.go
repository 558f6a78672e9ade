// Package fetcher retrieves image bytes over HTTP.
//
// A Fetcher performs exactly one GET per URL with a fixed timeout and a
// bounded body size. It never retries; the only second attempt is the
// thumbnail fallback in FetchWithFallback. URLs returned by the search API
// may lack a scheme (for example "//host/img.jpg"); NormalizeURL assumes
// plain http for those.
//
// All requests may optionally be routed through a SOCKS5 proxy.
package fetcher
