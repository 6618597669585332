package utils

import (
	"net/http"
	"strings"
)

const (
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"

	// UnknownClient is the key shared by every request that carries no usable client header.
	UnknownClient = "unknown"
)

// Extractor represents the way we will extract a key from an HTTP request, this could be
// a value from a header, request path, method used, user authentication information, any information that
// is available at the HTTP request that wouldn't cause side effects if it was collected (this object shouldn't
// read the body of the request).
type Extractor interface {
	Extract(r *http.Request) (string, error)
}

type httpHeaderExtractor struct {
	headers  []string
	fallback string
}

// NewHTTPHeadersExtractor creates an extractor that reads the first of headers, tried in order,
// that is present on the request. Header values may be comma-separated lists (X-Forwarded-For: client, proxy1, ...)
// and only the first entry is used. When no header yields a value the fallback is returned.
func NewHTTPHeadersExtractor(fallback string, headers ...string) Extractor {
	if strings.TrimSpace(fallback) == "" {
		fallback = UnknownClient
	}
	return &httpHeaderExtractor{headers: headers, fallback: fallback}
}

// NewClientIPExtractor is the extractor used for per-client limits: X-Forwarded-For, then X-Real-IP,
// then the "unknown" bucket.
func NewClientIPExtractor() Extractor {
	return NewHTTPHeadersExtractor(UnknownClient, HeaderForwardedFor, HeaderRealIP)
}

// Extract never fails; requests without a usable header share the fallback key.
func (h *httpHeaderExtractor) Extract(r *http.Request) (string, error) {
	return ClientKey(r.Header, h.fallback, h.headers...), nil
}

// ClientKey is the header lookup behind NewHTTPHeadersExtractor. The first header present with a
// non-empty value is used even when its first entry is blank, in which case the fallback is returned.
func ClientKey(header http.Header, fallback string, names ...string) string {
	for _, name := range names {
		raw := header.Get(name)
		if raw == "" {
			continue
		}
		if value := firstEntry(raw); value != "" {
			return value
		}
		return fallback
	}
	return fallback
}

func firstEntry(value string) string {
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}
