package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and LoadCredentials() and
// are all fatal: they are reported to the operator before any network
// activity begins.
var (
	// ErrMissingCredentials is returned when the search engine id or the API
	// key is not available from the environment or the .env file.
	ErrMissingCredentials = errors.New("missing search API credentials: set GOOGLE_API_CX and GOOGLE_API_KEY")

	// ErrNoSearchTerms is returned when the crawl plan contains no terms.
	ErrNoSearchTerms = errors.New("no search terms configured: add classifications to the config file or use --term")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the fan-out cap is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidPageCeiling is returned when the result ceiling is not positive.
	ErrInvalidPageCeiling = errors.New("invalid page ceiling: must be positive")

	// ErrInvalidRateLimit is returned when the search rate limit is negative.
	// Use 0 for no limit.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the image size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrMissingDirectory is returned when one of the storage directories is empty.
	ErrMissingDirectory = errors.New("missing directory: images, queries and index directories are required")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrDuplicateTerm is returned when the same term appears twice for one
	// classification.
	ErrDuplicateTerm = errors.New("duplicate search term")
)
