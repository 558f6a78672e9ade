package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/imagecrawl/internal/config"
	"github.com/nao1215/imagecrawl/internal/model"
)

const (
	// DefaultEndpoint is the Custom Search JSON API.
	DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

	// DefaultPageCeiling stops paging before this start index.
	DefaultPageCeiling = 100

	// FirstStart is the start index of a term's first page.
	FirstStart = 1

	defaultTimeout = 30 * time.Second

	// maxResponseSize bounds a single search response.
	maxResponseSize = 4 * 1024 * 1024
)

// Page is one page of search results.
type Page struct {
	// Start is the start index this page was requested with.
	Start int
	// Candidates holds the usable items in response order.
	Candidates []model.Candidate
	// NextStart is the start index of the following page when HasNext.
	NextStart int
	HasNext   bool
	// Raw is the response body, byte for byte.
	Raw []byte
}

// Paginator queries the search API one page at a time.
type Paginator struct {
	creds    config.Credentials
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	ceiling  int
	logger   *slog.Logger
}

// Option configures a Paginator.
type Option func(*Paginator)

// WithEndpoint overrides the search endpoint.
func WithEndpoint(endpoint string) Option {
	return func(p *Paginator) {
		if endpoint != "" {
			p.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Paginator) {
		if client != nil {
			p.client = client
		}
	}
}

// WithRateLimit paces requests to rps per second with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Paginator) {
		if rps <= 0 {
			p.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPageCeiling sets the start index ceiling.
func WithPageCeiling(ceiling int) Option {
	return func(p *Paginator) {
		if ceiling > 0 {
			p.ceiling = ceiling
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Paginator) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPaginator creates a Paginator that authenticates with creds.
func NewPaginator(creds config.Credentials, opts ...Option) *Paginator {
	p := &Paginator{
		creds:    creds,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: defaultTimeout},
		ceiling:  DefaultPageCeiling,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ceiling returns the start index ceiling.
func (p *Paginator) Ceiling() int {
	return p.ceiling
}

// Query fetches the page of term starting at start. Any failure is a
// *PaginationError.
func (p *Paginator) Query(ctx context.Context, term string, class model.Classification, start int) (*Page, error) {
	if start < FirstStart {
		start = FirstStart
	}
	fail := func(status int, body string, err error) (*Page, error) {
		return nil, &PaginationError{Term: term, Start: start, StatusCode: status, Body: body, Err: err}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fail(0, "", err)
		}
	}

	reqURL, err := p.requestURL(term, start)
	if err != nil {
		return fail(0, "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fail(0, "", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// The transport error embeds the request URL; keep only the cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fail(0, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fail(resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := string(raw)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return fail(resp.StatusCode, body, fmt.Errorf("unexpected status %s", resp.Status))
	}

	candidates, next, err := decodeResponse(raw)
	if err != nil {
		return fail(0, "", fmt.Errorf("failed to decode response: %w", err))
	}

	page := &Page{
		Start:      start,
		Candidates: candidates,
		Raw:        raw,
	}
	switch {
	case next == 0:
		// Last page.
	case next <= start:
		p.logger.Warn("search cursor did not advance",
			"classification", class.String(),
			"term", term,
			"start", start,
			"next", next,
		)
	case next >= p.ceiling:
		// Ceiling reached.
	default:
		page.NextStart = next
		page.HasNext = true
	}

	p.logger.Debug("search page fetched",
		"classification", class.String(),
		"term", term,
		"start", start,
		"candidates", len(candidates),
		"has_next", page.HasNext,
	)
	return page, nil
}

// requestURL builds the request URL for term at start.
func (p *Paginator) requestURL(term string, start int) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("cx", p.creds.EngineID)
	q.Set("key", p.creds.APIKey)
	q.Set("searchType", "image")
	q.Set("q", term)
	q.Set("start", strconv.Itoa(start))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
