package fetcher

import (
	"net/url"
	"strings"
)

// NormalizeURL returns rawURL with a scheme. Scheme-relative URLs
// ("//host/path") and bare host paths ("host/path") get "http".
func NormalizeURL(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", ErrEmptyURL
	}
	if strings.HasPrefix(s, "//") {
		s = "http:" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		// "host/path" and "host:port/path" have no authority yet.
		u, err = url.Parse("http://" + s)
		if err != nil {
			return "", err
		}
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	if u.Host == "" {
		return "", &url.Error{Op: "parse", URL: rawURL, Err: ErrEmptyURL}
	}
	return u.String(), nil
}
