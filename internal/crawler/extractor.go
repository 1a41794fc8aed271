package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/dealwatch/internal/models"
	"sjsage522/dealwatch/internal/price"
	crawlerrors "sjsage522/dealwatch/pkg/errors"
)

// Extract runs the profile's container selector over content and returns one candidate per
// container that has a title, a current price and a link. Missing optional fields are left
// empty; incomplete containers are skipped without affecting their siblings.
func Extract(content []byte, profile SiteProfile) ([]models.ListingCandidate, error) {
	doc, err := createDocument(content, profile.Site)
	if err != nil {
		return nil, err
	}

	origin := profile.Origin()
	var candidates []models.ListingCandidate
	doc.Find(profile.Selectors.Container).Each(func(_ int, s *goquery.Selection) {
		if c, ok := extractCandidate(s, profile.Selectors, origin); ok {
			candidates = append(candidates, c)
		}
	})
	return candidates, nil
}

func extractCandidate(s *goquery.Selection, sel Selectors, origin string) (models.ListingCandidate, bool) {
	title := extractTitle(s, sel)
	if title == "" {
		return models.ListingCandidate{}, false
	}

	current := fieldText(s, sel.Price)
	if current == "" {
		return models.ListingCandidate{}, false
	}

	href, _ := s.Find(sel.Link).First().Attr("href")
	link := ResolveURL(origin, href)
	if !isAbsoluteHTTP(link) {
		return models.ListingCandidate{}, false
	}

	return models.ListingCandidate{
		Title:             title,
		CurrentPriceRaw:   current,
		ReferencePriceRaw: fieldText(s, sel.OldPrice),
		DiscountBadgeRaw:  fieldText(s, sel.Discount),
		URL:               link,
		ImageURL:          extractImage(s, sel.Image, origin),
		Flags: models.SiteFlags{
			FlashSale:       present(s, sel.FlashBadge),
			MultipleCoupons: present(s, sel.MultiCoupon),
		},
	}, true
}

// extractTitle prefers a non-empty title attribute, as some sites truncate the visible text
func extractTitle(s *goquery.Selection, sel Selectors) string {
	titleSel := s.Find(sel.Title).First()
	if titleSel.Length() == 0 {
		return ""
	}
	if sel.TitleRemove != "" {
		titleSel = titleSel.Clone()
		titleSel.Find(sel.TitleRemove).Remove()
	}
	if attr, ok := titleSel.Attr("title"); ok && strings.TrimSpace(attr) != "" {
		return collapse(attr)
	}
	return collapse(titleSel.Text())
}

func extractImage(s *goquery.Selection, selector, origin string) string {
	if selector == "" {
		return ""
	}
	img := s.Find(selector).First()
	for _, attr := range []string{"src", "data-src", "data-lazy"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			return ResolveURL(origin, v)
		}
	}
	return ""
}

// fieldText returns the trimmed text of the first match, or "" when selector is empty or absent
func fieldText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return collapse(s.Find(selector).First().Text())
}

func present(s *goquery.Selection, selector string) bool {
	return selector != "" && s.Find(selector).Length() > 0
}

// ResolveURL makes href absolute. Root-relative hrefs are prefixed with origin,
// scheme-relative ones take the origin scheme, and absolute hrefs pass through unchanged.
func ResolveURL(origin, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		scheme := "https"
		if u, err := url.Parse(origin); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		return scheme + ":" + href
	}
	if strings.HasPrefix(href, "/") {
		return strings.TrimRight(origin, "/") + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}
	base, err := url.Parse(strings.TrimRight(origin, "/") + "/")
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// ExtractPrice returns the first text among the profile's watch price selectors that parses
// as an amount
func ExtractPrice(content []byte, profile SiteProfile) (string, bool) {
	doc, err := createDocument(content, profile.Site)
	if err != nil {
		return "", false
	}
	selectors := profile.WatchPrice
	if len(selectors) == 0 {
		selectors = []string{profile.Selectors.Price}
	}
	for _, selector := range selectors {
		if selector == "" {
			continue
		}
		match := doc.Find(selector).First()
		text := collapse(match.Text())
		if text == "" {
			// meta[itemprop=price] and similar carry the value in an attribute
			text, _ = match.Attr("content")
		}
		if _, ok := price.ParseAmount(text); ok {
			return strings.TrimSpace(text), true
		}
	}
	return "", false
}

// ExtractTitle returns the product title of a single product page, or ""
func ExtractTitle(content []byte, profile SiteProfile) string {
	doc, err := createDocument(content, profile.Site)
	if err != nil {
		return ""
	}
	if profile.WatchTitle != "" {
		if t := collapse(doc.Find(profile.WatchTitle).First().Text()); t != "" {
			return t
		}
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(t) != "" {
		return collapse(t)
	}
	return collapse(doc.Find("title").First().Text())
}

func createDocument(content []byte, provider string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, crawlerrors.NewParsing(provider, "failed to parse HTML", err)
	}
	return doc, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isAbsoluteHTTP(link string) bool {
	u, err := url.Parse(link)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
