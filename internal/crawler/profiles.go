package crawler

import (
	"net/url"

	"sjsage522/dealwatch/internal/classifier"
)

// Amazon.fr search result markup
var amazonSearchSelectors = Selectors{
	Container:   ".s-main-slot .s-result-item",
	Title:       "h2 a span, h2 span",
	Price:       ".a-price:not(.a-text-price) .a-offscreen",
	OldPrice:    ".a-price.a-text-price .a-offscreen, .a-price.a-text-price span",
	Discount:    ".s-coupon-highlight-color, .a-badge-text",
	Link:        "h2 a, a.a-link-normal.s-no-outline",
	Image:       "img.s-image",
	FlashBadge:  ".a-badge-label[data-a-badge-type='deal'], span[data-a-badge-color='sx-lightning-deal-red']",
	MultiCoupon: ".s-coupon-unclipped",
}

var amazonWatchPrice = []string{
	"#corePrice_feature_div .a-price .a-offscreen",
	"#corePriceDisplay_desktop_feature_div .a-price .a-offscreen",
	"#priceblock_dealprice",
	"#priceblock_ourprice",
	".a-price .a-offscreen",
}

// amazonCategories are the search keywords scanned with a fixed destination
var amazonCategories = []struct {
	keyword  string
	category string
}{
	{"entretien", classifier.Entretien},
	{"electromenager", classifier.Electromenager},
	{"informatique", classifier.Informatique},
	{"high-tech", classifier.Electronique},
	{"cuisine", classifier.Cuisine},
	{"beaute", classifier.Beaute},
	{"sport", classifier.Sport},
	{"jouets", classifier.Jouets},
	{"bricolage", classifier.Bricolage},
}

// DefaultProfiles returns the built-in profile table
func DefaultProfiles() Profiles {
	var profiles Profiles

	for _, c := range amazonCategories {
		profiles = append(profiles, SiteProfile{
			Name:       "amazon-" + c.category,
			Site:       "amazon.fr",
			URL:        "https://www.amazon.fr/s?k=" + url.QueryEscape(c.keyword) + "&page={page}",
			Pages:      10,
			BaseURL:    "https://www.amazon.fr",
			Domains:    []string{"amazon.fr"},
			Selectors:  amazonSearchSelectors,
			WatchPrice: amazonWatchPrice,
			WatchTitle: "#productTitle",
			Rules:      []Rule{{Kind: RuleMinDiscount, Threshold: 50}},
			Category:   c.category,
		})
	}

	profiles = append(profiles,
		SiteProfile{
			// Deal listings mix every category, titles are classified
			Name:       "amazon-promotions",
			Site:       "amazon.fr",
			URL:        "https://www.amazon.fr/s?k=promotion&page={page}",
			Pages:      5,
			BaseURL:    "https://www.amazon.fr",
			Domains:    []string{"amazon.fr"},
			Selectors:  amazonSearchSelectors,
			WatchPrice: amazonWatchPrice,
			WatchTitle: "#productTitle",
			Rules: []Rule{
				{Kind: RuleMinDiscount, Threshold: 70},
				{Kind: RuleFlashSale},
			},
		},
		SiteProfile{
			Name:    "cdiscount-bonnes-affaires",
			Site:    "cdiscount.com",
			URL:     "https://www.cdiscount.com/bonnes-affaires/l-{page}.html",
			Pages:   3,
			BaseURL: "https://www.cdiscount.com",
			Domains: []string{"cdiscount.com"},
			Selectors: Selectors{
				Container:   "ul#lpBloc > li, div.prdtBloc",
				Title:       ".prdtTit, h2.prdtTit",
				Price:       ".prdtPrice, .price",
				OldPrice:    ".prdtPrSt, .prdtPInfoT",
				Discount:    ".ecoBlk, .prdtBdgDisc",
				Link:        "a",
				Image:       "img.prdtBImg, img",
				FlashBadge:  ".prdtBdgVF, .c-flash-sale",
				MultiCoupon: ".prdtBdgMkp",
			},
			WatchPrice: []string{
				"meta[itemprop=price]",
				".fpPrice",
				"span.price",
			},
			WatchTitle: "h1",
			Rules: []Rule{
				{Kind: RuleMinDiscount, Threshold: 60},
				{Kind: RuleFlashSale},
			},
		},
		SiteProfile{
			Name:    "fnac-ventes-flash",
			Site:    "fnac.com",
			URL:     "https://www.fnac.com/Ventes-Flash/shi459137/w-4?PageIndex={page}",
			Pages:   3,
			BaseURL: "https://www.fnac.com",
			Domains: []string{"fnac.com"},
			Selectors: Selectors{
				Container:   "article.Article-itemGroup, div.Article-item",
				Title:       ".Article-title, .Article-desc a",
				Price:       ".userPrice, .f-priceBox-price--reco",
				OldPrice:    ".oldPrice, .f-priceBox-price--old",
				Discount:    ".f-priceBox-discount, .percentChange",
				Link:        ".Article-title, .Article-desc a",
				Image:       "img.Article-itemVisualImg, img",
				FlashBadge:  ".flashSale, .f-flashSale",
				MultiCoupon: ".f-mp-offers",
			},
			WatchPrice: []string{
				".f-faPriceBox__price.userPrice",
				".f-priceBox-price--reco",
				"meta[itemprop=price]",
			},
			WatchTitle: "h1.f-productHeader-Title",
			Rules: []Rule{
				{Kind: RuleMinDiscount, Threshold: 60},
				{Kind: RuleFlashSale},
			},
		},
		SiteProfile{
			Name:    "boulanger-bons-plans",
			Site:    "boulanger.com",
			URL:     "https://www.boulanger.com/c/bons-plans?page={page}",
			Pages:   2,
			BaseURL: "https://www.boulanger.com",
			Domains: []string{"boulanger.com"},
			Selectors: Selectors{
				Container: "li.product-list__item, div.product-item",
				Title:     "h2.product-item__label, .designations h2",
				Price:     ".price__amount, p.fix-price",
				OldPrice:  ".price__crossed, .price__barre",
				Discount:  ".sticker-discount, .discount",
				Link:      "a.product-item__link, a",
				Image:     "img",
			},
			WatchPrice: []string{
				"meta[itemprop=price]",
				".price__amount",
			},
			WatchTitle: "h1",
			Rules: []Rule{
				{Kind: RuleMinDiscount, Threshold: 50},
				{Kind: RuleMaxPrice, Threshold: 10},
			},
			KeepUnclassified: true,
		},
	)

	return profiles
}
