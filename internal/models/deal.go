package models

import "time"

// SiteFlags are listing markers that qualify a candidate on their own
type SiteFlags struct {
	FlashSale       bool `json:"flash_sale,omitempty"`
	MultipleCoupons bool `json:"multiple_coupons,omitempty"`
}

// ListingCandidate is an extracted, not yet qualified listing. Price fields keep the page
// text; parsing happens during evaluation.
type ListingCandidate struct {
	Title             string
	CurrentPriceRaw   string
	ReferencePriceRaw string
	DiscountBadgeRaw  string
	URL               string
	ImageURL          string
	Flags             SiteFlags
}

// Deal is a qualified listing ready for notification. URL is its identity.
type Deal struct {
	Title           string    `json:"title" validate:"required"`
	CurrentPrice    float64   `json:"current_price" validate:"gte=0"`
	ReferencePrice  float64   `json:"reference_price,omitempty"`
	DiscountPercent float64   `json:"discount_percent,omitempty"`
	HasDiscount     bool      `json:"has_discount"`
	URL             string    `json:"url" validate:"required,url"`
	ImageURL        string    `json:"image_url,omitempty"`
	Category        string    `json:"category" validate:"required"`
	Site            string    `json:"site"`
	Flags           SiteFlags `json:"flags"`
	PassID          string    `json:"pass_id,omitempty"`
	FoundAt         time.Time `json:"found_at"`
}

// WatchedItem is a user watch request. The external command layer validates it before it is
// stored.
type WatchedItem struct {
	URL         string    `json:"url" validate:"required,url"`
	TargetPrice float64   `json:"target_price" validate:"gt=0"`
	CreatedAt   time.Time `json:"created_at"`
}

// WatchHit is emitted when a watched URL is at or below its target price
type WatchHit struct {
	URL          string    `json:"url"`
	Title        string    `json:"title,omitempty"`
	CurrentPrice float64   `json:"current_price"`
	TargetPrice  float64   `json:"target_price"`
	Site         string    `json:"site"`
	CheckedAt    time.Time `json:"checked_at"`
}
