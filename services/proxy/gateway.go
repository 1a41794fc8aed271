// Package proxy routes page requests through a scraping gateway.
package proxy

import (
	"net/url"
	"strings"
)

// DefaultScraperAPIEndpoint is the ScraperAPI request endpoint
const DefaultScraperAPIEndpoint = "http://api.scraperapi.com/"

// Gateway rewrites a target URL into the URL that is actually requested
type Gateway interface {
	Rewrite(target string) string
	Name() string
}

// Direct requests targets as they are
type Direct struct{}

// Rewrite returns target unchanged
func (Direct) Rewrite(target string) string { return target }

// Name returns the gateway name
func (Direct) Name() string { return "direct" }

// ScraperAPI sends every request through the ScraperAPI proxy, which rotates exit IPs and
// solves captchas on its side.
type ScraperAPI struct {
	endpoint string
	apiKey   string
	country  string
}

// NewScraperAPI creates a ScraperAPI gateway. An empty endpoint uses DefaultScraperAPIEndpoint.
func NewScraperAPI(apiKey, endpoint string) *ScraperAPI {
	if endpoint == "" {
		endpoint = DefaultScraperAPIEndpoint
	}
	return &ScraperAPI{endpoint: endpoint, apiKey: apiKey}
}

// WithCountry pins the exit country (e.g. "fr")
func (s *ScraperAPI) WithCountry(code string) *ScraperAPI {
	s.country = strings.ToLower(code)
	return s
}

// Rewrite wraps target into a gateway request URL
func (s *ScraperAPI) Rewrite(target string) string {
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("url", target)
	if s.country != "" {
		q.Set("country_code", s.country)
	}
	sep := "?"
	if strings.Contains(s.endpoint, "?") {
		sep = "&"
	}
	return s.endpoint + sep + q.Encode()
}

// Name returns the gateway name
func (s *ScraperAPI) Name() string { return "scraperapi" }

// FromKey returns a ScraperAPI gateway when apiKey is set and Direct otherwise.
// A non-empty country pins the gateway exit country.
func FromKey(apiKey, country string) Gateway {
	if strings.TrimSpace(apiKey) == "" {
		return Direct{}
	}
	gw := NewScraperAPI(strings.TrimSpace(apiKey), "")
	if country = strings.TrimSpace(country); country != "" {
		gw.WithCountry(country)
	}
	return gw
}
