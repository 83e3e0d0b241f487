package provider

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Article is one news item as returned by a provider, before persistence.
type Article struct {
	Title       string
	Summary     string
	Source      string
	Provider    string
	URL         string
	PublishedAt time.Time
}

// Adapter fetches news for a set of keywords from one upstream API. Each
// adapter requests its provider's maximum page size; failures are the
// caller's to degrade on, adapters just return the error.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, keywords []string) ([]Article, error)
}

// SplitKeywords turns a comma-separated query into keywords. "a OR b" input
// is accepted too since callers paste provider-syntax queries directly.
func SplitKeywords(query string) []string {
	query = strings.ReplaceAll(query, " OR ", ",")
	parts := strings.Split(query, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keywords = append(keywords, p)
		}
	}
	return keywords
}

// CanonicalURL normalizes a URL for duplicate detection: lowercase scheme
// and host, no fragment, no utm_* tracking params, no trailing slash.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	// Encode sorts keys, so equivalent param orders canonicalize identically.
	u.RawQuery = q.Encode()
	u.Path = strings.TrimRight(u.Path, "/")

	return u.String(), nil
}
