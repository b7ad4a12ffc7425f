// Package model defines shared data structures for the price service.
package model

import "time"

// RAMUnknown is stored in prices.ram_gb when a variant's RAM could not be
// determined. The column is NOT NULL so the unique variant index covers it.
const RAMUnknown = -1

// Product mirrors the products table. Baseline attributes are catalog
// defaults; the authoritative per-variant values live on PriceVariant.
type Product struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Brand      string         `json:"brand"`
	RAMGB      *int           `json:"ramGb,omitempty"`
	StorageGB  *int           `json:"storageGb,omitempty"`
	Color      string         `json:"color,omitempty"`
	MainImgURL string         `json:"mainImgUrl,omitempty"`
	Variants   []PriceVariant `json:"variants"`
}

// Variant returns the variant with the given id, if the product carries it.
func (p *Product) Variant(id int64) (*PriceVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// SellerStore is the storefront a variant is sold on.
type SellerStore struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PriceVariant is one row of the prices table. The tuple
// (ProductID, Color, RAMGB, StorageGB, SellerStoreID, ProductLink) is unique.
type PriceVariant struct {
	ID            int64       `json:"id"`
	ProductID     int64       `json:"productId"`
	Color         string      `json:"color"`
	RAMGB         int         `json:"ramGb"`
	StorageGB     int         `json:"storageGb"`
	SellerStoreID int64       `json:"sellerStoreId"`
	Store         SellerStore `json:"store"`
	ProductLink   string      `json:"productLink"`
	Price         float64     `json:"price"`
	Currency      string      `json:"currency"`
	Availability  bool        `json:"availability"`
	ShippingCost  *float64    `json:"shippingCost,omitempty"`
	Discount      *float64    `json:"discount,omitempty"`
	MainImgURL    string      `json:"mainImgUrl,omitempty"`
	LastUpdated   time.Time   `json:"lastUpdated"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// VariantKey is the unique identity of a PriceVariant.
type VariantKey struct {
	ProductID     int64
	Color         string
	RAMGB         int
	StorageGB     int
	SellerStoreID int64
	ProductLink   string
}

// Key returns the unique identity of v.
func (v *PriceVariant) Key() VariantKey {
	return VariantKey{
		ProductID:     v.ProductID,
		Color:         v.Color,
		RAMGB:         v.RAMGB,
		StorageGB:     v.StorageGB,
		SellerStoreID: v.SellerStoreID,
		ProductLink:   v.ProductLink,
	}
}

// PriceSnapshot is the mutable part of a variant written on every
// successful scrape.
type PriceSnapshot struct {
	Price        float64
	Currency     string
	Availability bool
	ShippingCost *float64
	Discount     *float64
	MainImgURL   string
	ObservedAt   time.Time
}

// PriceHistoryEntry is an immutable price observation of a variant.
type PriceHistoryEntry struct {
	ID           int64     `json:"id"`
	PriceID      int64     `json:"priceId"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	Availability bool      `json:"availability"`
	RecordedAt   time.Time `json:"recordedAt"`
}

// PriceAlert is a user's subscription to a product. Nil filter fields are
// wildcards.
type PriceAlert struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"userId"`
	ProductID      int64      `json:"productId"`
	Threshold      float64    `json:"threshold"`
	Color          *string    `json:"color,omitempty"`
	RAMGB          *int       `json:"ramGb,omitempty"`
	StorageGB      *int       `json:"storageGb,omitempty"`
	IsDisabled     bool       `json:"isDisabled"`
	LastNotifiedAt *time.Time `json:"lastNotifiedAt,omitempty"`
}

// ScrapedListing is the raw output of a storefront adapter. It is consumed
// by the normalizer and never persisted as-is.
type ScrapedListing struct {
	Title            string `json:"title"`
	Price            string `json:"price" validate:"required"`
	Currency         string `json:"currency,omitempty"`
	AvailabilityText string `json:"availabilityText,omitempty"`
	Available        *bool  `json:"available,omitempty"`
	ImageURL         string `json:"imageUrl,omitempty"`
	ProductLink      string `json:"productLink,omitempty" validate:"omitempty,url"`
	StoreName        string `json:"storeName,omitempty"`
	SellerStoreID    int64  `json:"sellerStoreId,omitempty"`
	ShippingText     string `json:"shipping,omitempty"`
	DiscountText     string `json:"discount,omitempty"`
	// Attributes holds structured values some adapters can read directly
	// ("color", "ram", "storage"). They win over title extraction.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ScrapeUnit is one (product, variant) pair driven end-to-end by a worker.
type ScrapeUnit struct {
	ProductID int64 `json:"productId"`
	VariantID int64 `json:"variantId"`
}
