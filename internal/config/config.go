package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/imagecrawl/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "imagecrawl"

	// DefaultSearchEndpoint is the Custom Search JSON API endpoint.
	DefaultSearchEndpoint = "https://www.googleapis.com/customsearch/v1"

	// DefaultTimeout is the per-request timeout for image downloads and
	// search queries. Image hosts are often slow, so this is generous.
	DefaultTimeout = 60 * time.Second

	// DefaultConcurrency of 1 means candidates on a page are processed
	// sequentially. Higher values fan out Deduplicator work per page.
	DefaultConcurrency = 1

	// DefaultPageCeiling is the provider-imposed result ceiling per term.
	// The Custom Search API refuses to page beyond 100 results.
	DefaultPageCeiling = 100

	// DefaultMaxBodySize limits a single downloaded image to 20MB.
	DefaultMaxBodySize = 20 * 1024 * 1024

	// DefaultUserAgent identifies imagecrawl in HTTP requests.
	DefaultUserAgent = "imagecrawl/1.0 (+https://github.com/nao1215/imagecrawl)"

	// DefaultDigest is the content digest algorithm for new indexes.
	DefaultDigest = model.DigestSHA256

	// DefaultLogMaxSizeMB is the size at which the log file is rotated.
	DefaultLogMaxSizeMB = 50

	// DefaultLogMaxBackups is the number of rotated log files kept.
	DefaultLogMaxBackups = 5
)

// Config holds all configuration options for a crawl run.
// It is built once at startup from CLI flags and the config file and passed
// by pointer into each component; there is no process-wide mutable state.
type Config struct {
	// Credentials are the search engine id and API key.
	Credentials Credentials

	// SearchEndpoint is the search API URL. Overridable for tests and mirrors.
	SearchEndpoint string

	// ImagesDir is the root of the classification buckets.
	// Images land at ImagesDir/<classification>/<identifier>.
	ImagesDir string

	// QueriesDir receives one file per fetched search page.
	QueriesDir string

	// IndexDir holds the hash index database file.
	IndexDir string

	// Timeout is the timeout for each HTTP request.
	Timeout time.Duration

	// Concurrency caps fan-out of candidate processing within one page.
	Concurrency int

	// PageCeiling is the result offset at which a term is considered done.
	PageCeiling int

	// RateLimit is the maximum number of search API requests per second.
	// 0 disables limiting.
	RateLimit float64

	// MaxBodySize is the maximum image size in bytes. 0 uses the default.
	MaxBodySize int64

	// UserAgent is sent with every request.
	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") for image downloads.
	ProxyAddress string

	// Digest selects the content digest algorithm.
	Digest model.DigestAlgorithm

	// InspectExif enables EXIF extraction for newly stored images.
	InspectExif bool

	// Plan is the ordered list of search terms to traverse.
	Plan []model.SearchTerm

	// ConfigFilePath is the path of the YAML file the plan was loaded from.
	ConfigFilePath string

	// EnvFile is an optional .env file holding credentials.
	EnvFile string

	// Verbose enables debug logging.
	Verbose bool

	// LogFile, when set, receives JSON logs with rotation.
	LogFile string

	// MetricsAddr, when set, serves prometheus metrics during the run.
	MetricsAddr string

	// JSONReport selects the JSON run summary.
	JSONReport bool

	// MarkdownReport selects the Markdown run summary.
	MarkdownReport bool

	// ReportFile writes the run summary to a file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	dataDir := XDGDataDir()
	return &Config{
		SearchEndpoint: DefaultSearchEndpoint,
		ImagesDir:      filepath.Join(dataDir, "images"),
		QueriesDir:     filepath.Join(dataDir, "queries"),
		IndexDir:       filepath.Join(dataDir, "index"),
		Timeout:        DefaultTimeout,
		Concurrency:    DefaultConcurrency,
		PageCeiling:    DefaultPageCeiling,
		MaxBodySize:    DefaultMaxBodySize,
		UserAgent:      DefaultUserAgent,
		Digest:         DefaultDigest,
		InspectExif:    true,
	}
}

// XDGDataDir returns the XDG data directory for imagecrawl.
// On Linux: ~/.local/share/imagecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for imagecrawl.
// On Linux: ~/.config/imagecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found. Credentials are checked first so a
// missing key is always the error the operator sees.
func (c *Config) Validate() error {
	if err := c.Credentials.Validate(); err != nil {
		return err
	}

	if len(c.Plan) == 0 {
		return ErrNoSearchTerms
	}
	if err := ValidatePlan(c.Plan); err != nil {
		return err
	}

	if c.ImagesDir == "" || c.QueriesDir == "" || c.IndexDir == "" {
		return ErrMissingDirectory
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.PageCeiling <= 0 {
		return ErrInvalidPageCeiling
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if err := c.Digest.Validate(); err != nil {
		return err
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// ValidatePlan checks every classification label and rejects repeated
// (classification, term) pairs.
func ValidatePlan(plan []model.SearchTerm) error {
	seen := make(map[model.SearchTerm]bool, len(plan))
	for _, t := range plan {
		if err := t.Classification.Validate(); err != nil {
			return err
		}
		if t.Term == "" {
			return fmt.Errorf("%w: empty term for classification %q", ErrNoSearchTerms, t.Classification)
		}
		if seen[t] {
			return fmt.Errorf("%w: %s", ErrDuplicateTerm, t)
		}
		seen[t] = true
	}
	return nil
}
