package crawler

import (
	"net/url"
	"strconv"
	"strings"
)

// RuleKind names a qualification predicate
type RuleKind string

const (
	// RuleMinDiscount qualifies a listing whose discount is at least Threshold percent
	RuleMinDiscount RuleKind = "min_discount"
	// RuleMaxPrice qualifies a listing whose current price is at most Threshold
	RuleMaxPrice RuleKind = "max_price"
	// RuleFlashSale qualifies a listing carrying the flash-sale badge
	RuleFlashSale RuleKind = "flash_sale"
	// RuleMultiCoupon qualifies a listing carrying the multiple-coupons marker
	RuleMultiCoupon RuleKind = "multi_coupon"
)

// pagePlaceholder is replaced by the page number in a profile URL
const pagePlaceholder = "{page}"

// Rule is one qualification predicate. Rules of a profile are combined with OR.
type Rule struct {
	Kind      RuleKind `yaml:"kind" validate:"required,oneof=min_discount max_price flash_sale multi_coupon"`
	Threshold float64  `yaml:"threshold" validate:"gte=0"`
}

// Selectors contains CSS selectors for the fields of a listing, relative to its container
type Selectors struct {
	Container   string `yaml:"container" validate:"required"`
	Title       string `yaml:"title" validate:"required"`
	Price       string `yaml:"price" validate:"required"`
	OldPrice    string `yaml:"old_price"`
	Discount    string `yaml:"discount"`
	Link        string `yaml:"link" validate:"required"`
	Image       string `yaml:"image"`
	FlashBadge  string `yaml:"flash_badge"`
	MultiCoupon string `yaml:"multi_coupon"`
	// TitleRemove elements are dropped from the title before its text is read
	TitleRemove string `yaml:"title_remove"`
}

// SiteProfile describes how to scan one (site, category) target. It is immutable once loaded.
type SiteProfile struct {
	Name    string `yaml:"name" validate:"required"`
	Site    string `yaml:"site" validate:"required"`
	URL     string `yaml:"url" validate:"required"`
	Pages   int    `yaml:"pages" validate:"gte=0,lte=50"`
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// Domains are the hosts whose product pages this profile can read for watch requests
	Domains   []string  `yaml:"domains"`
	Selectors Selectors `yaml:"selectors"`
	// WatchPrice selectors are tried in order on a product page; the first parsable match wins
	WatchPrice []string `yaml:"watch_price"`
	WatchTitle string   `yaml:"watch_title"`
	Rules      []Rule   `yaml:"rules" validate:"required,min=1,dive"`
	// Category is the fixed destination. Empty means titles are classified.
	Category string `yaml:"category"`
	// KeepUnclassified sends titles the classifier cannot place to the uncategorized destination
	KeepUnclassified bool `yaml:"keep_unclassified"`
}

// PageURLs expands the {page} placeholder into one URL per page, starting at 1
func (p SiteProfile) PageURLs() []string {
	if !strings.Contains(p.URL, pagePlaceholder) {
		return []string{p.URL}
	}
	pages := p.Pages
	if pages < 1 {
		pages = 1
	}
	urls := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		urls = append(urls, strings.ReplaceAll(p.URL, pagePlaceholder, strconv.Itoa(i)))
	}
	return urls
}

// Origin returns scheme://host of BaseURL
func (p SiteProfile) Origin() string {
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(p.BaseURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// Matches reports whether host belongs to the profile's domains, subdomains included.
// Without explicit domains the BaseURL host is used.
func (p SiteProfile) Matches(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	domains := p.Domains
	if len(domains) == 0 {
		if u, err := url.Parse(p.BaseURL); err == nil {
			domains = []string{u.Hostname()}
		}
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "www."))
		if d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
			return true
		}
	}
	return false
}

// HasRule reports whether the profile uses a rule of the given kind
func (p SiteProfile) HasRule(kind RuleKind) bool {
	for _, r := range p.Rules {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

// Profiles is an ordered profile table
type Profiles []SiteProfile

// ByName returns the profile with the given name
func (ps Profiles) ByName(name string) (SiteProfile, bool) {
	for _, p := range ps {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return SiteProfile{}, false
}

// ProfileFor returns the first profile whose domains match the host of rawURL and that can
// read a price from a product page
func (ps Profiles) ProfileFor(rawURL string) (SiteProfile, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return SiteProfile{}, false
	}
	for _, p := range ps {
		if len(p.WatchPrice) > 0 && p.Matches(u.Hostname()) {
			return p, true
		}
	}
	return SiteProfile{}, false
}
