package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/imagecrawl/internal/model"
)

const (
	// DefaultTimeout bounds a single request including the body read.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxBodySize is the largest image body accepted (20MB).
	DefaultMaxBodySize int64 = 20 * 1024 * 1024

	// DefaultUserAgent identifies the crawler.
	DefaultUserAgent = "imagecrawl/1.0"

	// maxRedirects stops redirect loops.
	maxRedirects = 10
)

// Fetcher retrieves raw bytes for image URLs.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodySize  int64
	timeout      time.Duration
	proxyAddress string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum accepted body size in bytes.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithProxy routes requests through the SOCKS5 proxy at addr ("host:port").
func WithProxy(addr string) Option {
	return func(f *Fetcher) {
		f.proxyAddress = addr
	}
}

// WithHTTPClient uses client instead of building one. Timeout and proxy
// options are ignored when a client is supplied.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// New creates a Fetcher.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		client, err := newHTTPClient(f.timeout, f.proxyAddress)
		if err != nil {
			return nil, err
		}
		f.client = client
	}
	return f, nil
}

// newHTTPClient builds the default client, optionally dialing through SOCKS5.
func newHTTPClient(timeout time.Duration, proxyAddress string) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}

	if proxyAddress != "" {
		if !isValidProxyAddress(proxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, proxyAddress)
		}
		dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// isValidProxyAddress checks for "host:port" with a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// Fetch performs a single GET of rawURL and returns the body.
// Any transport failure, non-2xx status or oversized body is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // best effort
		return nil, &FetchError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	// Read one byte past the limit to detect oversized bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, &FetchError{URL: target, Err: fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.maxBodySize)}
	}
	return body, nil
}

// FetchWithFallback fetches the primary URL and, on failure, the fallback
// URL once. It returns the body and the URL that produced it. When both
// fail the returned error joins both failures. An empty fallback means no
// second attempt.
func (f *Fetcher) FetchWithFallback(ctx context.Context, c model.Candidate) ([]byte, string, error) {
	body, primaryErr := f.Fetch(ctx, c.PrimaryURL)
	if primaryErr == nil {
		return body, c.PrimaryURL, nil
	}
	if c.FallbackURL == "" || ctx.Err() != nil {
		return nil, "", primaryErr
	}

	body, fallbackErr := f.Fetch(ctx, c.FallbackURL)
	if fallbackErr == nil {
		return body, c.FallbackURL, nil
	}
	return nil, "", errors.Join(primaryErr, fallbackErr)
}

// Timeout returns the per-request timeout of the default client.
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}
