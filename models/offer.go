// Package models defines data structures for the offer catalog.
package models

import "time"

// Currency units as detected from price text.
const (
	CurrencyToman   = "toman"
	CurrencyRial    = "rial"
	CurrencyUnknown = "unknown"
)

// Offer represents one seller's listing for one part query. The core
// treats offers as value records: enrichment always works on copies and
// the caller's slice is never mutated.
type Offer struct {
	PartID       int       `csv:"part_id" json:"part_id"`
	TitleRaw     string    `csv:"title_raw" json:"title_raw"`
	PriceText    string    `csv:"price_text" json:"price_text"`
	Price        int64     `csv:"price_raw" json:"price_raw"`
	CurrencyUnit string    `csv:"currency_unit" json:"currency_unit"`
	SellerName   string    `csv:"seller_name" json:"seller_name"`
	ProductURL   string    `csv:"product_url" json:"product_url"`
	SellerURL    string    `csv:"seller_url" json:"seller_url"`
	Availability string    `csv:"availability" json:"availability"`
	SnapshotAt   time.Time `csv:"snapshot_ts" json:"snapshot_ts"`

	// Fields derived by the core.
	Relevance      float64      `csv:"relevance" json:"relevance"`
	Identity       PartIdentity `csv:"-" json:"attributes"`
	PartKey        string       `csv:"part_key" json:"part_key"`
	PartNameNorm   string       `csv:"part_name_norm" json:"part_name_norm"`
	SellerNameNorm string       `csv:"seller_name_norm" json:"seller_name_norm"`
	TitleNorm      string       `csv:"title_norm" json:"title_norm"`
	PriceToman     int64        `csv:"price_toman" json:"price_toman"`
}

// HasPrice reports whether the offer carries a usable parsed price.
func (o Offer) HasPrice() bool {
	return o.Price > 0
}

// PartQuery describes one part lookup submitted by the caller.
type PartQuery struct {
	PartID   int    `json:"part_id"`
	PartName string `json:"part_name"`
	PartCode string `json:"part_code,omitempty"`
	Keywords string `json:"keywords"`
}

// ProductDetails is the drill-down payload returned by the external
// scraping collaborator for a single product page.
type ProductDetails struct {
	Offers []Offer `json:"offers"`
}

// SellerStats aggregates offers for one normalized seller name.
type SellerStats struct {
	Seller        string   `json:"seller"`
	OfferCount    int      `json:"offers_count"`
	AvgPriceToman int64    `json:"avg_price_toman"`
	MinPriceToman int64    `json:"min_price_toman"`
	MaxPriceToman int64    `json:"max_price_toman"`
	SampleURLs    []string `json:"sample_urls"`
	PartsCount    int      `json:"parts_count"`
}
