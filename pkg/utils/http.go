// Package utils provides common utility functions.
package utils

import (
	"net/http"
	"net/url"
	"strings"
)

// UserAgent identifies the mapper to file servers.
const UserAgent = "hgncmap/1.0"

// HTTPHelper provides HTTP utility functions.
type HTTPHelper struct{}

// NewHTTPHelper creates a new HTTP helper.
func NewHTTPHelper() *HTTPHelper {
	return &HTTPHelper{}
}

// IsValidURL checks that a URL is absolute and uses a scheme the fetcher speaks.
func (h *HTTPHelper) IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}

	switch u.Scheme {
	case "http", "https", "ftp":
		return true
	}

	return false
}

// JoinURL joins a base URL and a slash-separated remote path.
func (h *HTTPHelper) JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// BuildHeaders creates HTTP headers with defaults.
func (h *HTTPHelper) BuildHeaders(customHeaders map[string]string) http.Header {
	headers := http.Header{}

	headers.Add("User-Agent", UserAgent)
	headers.Add("Accept", "application/json, text/tab-separated-values, text/plain")

	for key, value := range customHeaders {
		headers.Set(key, value)
	}

	return headers
}
