// Package reconcile merges a freshly scraped listing into a product's
// persisted price variants.
//
// For each listing the Reconciler either updates the matching variant,
// inserts a new one, or rejects the listing with a Reason. The Store writes
// the variant row and its price history entry in one transaction. A unique-index collision on insert
// (two workers discovering the same variant at once) is resolved by
// re-reading the winning row and updating it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/store"
	"smartshop/price-service/internal/textnorm"
	"smartshop/price-service/internal/variant"
)

// Status is the outcome of one Reconcile call.
type Status string

const (
	StatusUpdated  Status = "updated"
	StatusInserted Status = "inserted"
	StatusRejected Status = "rejected"
)

// Reason explains a rejection.
type Reason string

const (
	ReasonPriceUnparsed   Reason = "price unparsed"
	ReasonExcluded        Reason = "excluded listing"
	ReasonLinkMissing     Reason = "product link missing"
	ReasonColorUnresolved Reason = "color unresolved"
	ReasonStorageUnknown  Reason = "storage unknown"
	ReasonStoreUnknown    Reason = "seller store unknown"
)

// Result is what Reconcile did. Variant is set for updated and inserted
// results; Reason only for rejections.
type Result struct {
	Status     Status
	Variant    *model.PriceVariant
	Reason     Reason
	Normalized textnorm.Normalized
}

// Store is the persistence Reconcile needs. InsertVariant and
// UpdateVariantPrice must record a price history entry atomically with the
// variant write.
type Store interface {
	FindVariantByKey(ctx context.Context, key model.VariantKey) (*model.PriceVariant, error)
	InsertVariant(ctx context.Context, v model.PriceVariant) (*model.PriceVariant, error)
	UpdateVariantPrice(ctx context.Context, variantID int64, snap model.PriceSnapshot) (*model.PriceVariant, error)
}

// Reconciler is safe for concurrent use; all shared state lives in Store.
type Reconciler struct {
	store  Store
	norm   *textnorm.Normalizer
	now    func() time.Time
	logger *slog.Logger
}

// New returns a Reconciler. A nil normalizer uses textnorm.Default().
func New(s Store, norm *textnorm.Normalizer, logger *slog.Logger) *Reconciler {
	if norm == nil {
		norm = textnorm.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:  s,
		norm:   norm,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "reconcile"),
	}
}

// WithClock replaces the clock used for last_updated and history timestamps.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile merges l into product. Rejections are returned as a Result, not
// an error; errors are reserved for storage failures. A newly inserted
// variant is appended to product.Variants.
func (r *Reconciler) Reconcile(ctx context.Context, product *model.Product, l model.ScrapedListing) (Result, error) {
	n := r.norm.Normalize(l)
	storeID := resolveStoreID(product, l)

	if existing, ok := locate(product, l, n, storeID); ok {
		if !n.PriceOK {
			return r.reject(product, l, n, ReasonPriceUnparsed), nil
		}
		return r.update(ctx, existing.ID, l, n)
	}

	if reason, ok := validateInsert(l, n, storeID); !ok {
		return r.reject(product, l, n, reason), nil
	}

	now := r.now()
	candidate := model.PriceVariant{
		ProductID:     product.ID,
		Color:         n.Color,
		RAMGB:         n.RAMGB,
		StorageGB:     n.StorageGB,
		SellerStoreID: storeID,
		ProductLink:   strings.TrimSpace(l.ProductLink),
		Price:         n.Price,
		Currency:      n.Currency,
		Availability:  n.Available,
		ShippingCost:  n.ShippingCost,
		Discount:      n.Discount,
		MainImgURL:    l.ImageURL,
		LastUpdated:   now,
	}

	inserted, err := r.store.InsertVariant(ctx, candidate)
	if errors.Is(err, store.ErrDuplicateVariant) {
		// Another job inserted the same variant first.
		winner, ferr := r.store.FindVariantByKey(ctx, candidate.Key())
		if ferr != nil {
			return Result{}, fmt.Errorf("reload raced variant: %w", ferr)
		}
		r.logger.Debug("insert raced, updating instead",
			"product_id", product.ID, "variant_id", winner.ID)
		return r.update(ctx, winner.ID, l, n)
	}
	if err != nil {
		return Result{}, fmt.Errorf("insert variant: %w", err)
	}

	product.Variants = append(product.Variants, *inserted)
	r.logger.Info("variant inserted",
		"product_id", product.ID,
		"variant_id", inserted.ID,
		"color", inserted.Color,
		"storage_gb", inserted.StorageGB,
		"price", inserted.Price,
	)
	return Result{Status: StatusInserted, Variant: inserted, Normalized: n}, nil
}

func (r *Reconciler) update(ctx context.Context, variantID int64, l model.ScrapedListing, n textnorm.Normalized) (Result, error) {
	updated, err := r.store.UpdateVariantPrice(ctx, variantID, model.PriceSnapshot{
		Price:        n.Price,
		Currency:     n.Currency,
		Availability: n.Available,
		ShippingCost: n.ShippingCost,
		Discount:     n.Discount,
		MainImgURL:   l.ImageURL,
		ObservedAt:   r.now(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("update variant %d: %w", variantID, err)
	}

	return Result{Status: StatusUpdated, Variant: updated, Normalized: n}, nil
}

func (r *Reconciler) reject(product *model.Product, l model.ScrapedListing, n textnorm.Normalized, reason Reason) Result {
	r.logger.Info("listing rejected",
		"product_id", product.ID,
		"reason", string(reason),
		"link", l.ProductLink,
		"title", l.Title,
	)
	return Result{Status: StatusRejected, Reason: reason, Normalized: n}
}

// locate finds the variant a listing belongs to: by product link when the
// listing has one, otherwise by the resolved attributes within its store.
func locate(product *model.Product, l model.ScrapedListing, n textnorm.Normalized, storeID int64) (*model.PriceVariant, bool) {
	if link := strings.TrimSpace(l.ProductLink); link != "" {
		for i := range product.Variants {
			if product.Variants[i].ProductLink == link {
				return &product.Variants[i], true
			}
		}
		return nil, false
	}

	if storeID == 0 {
		return nil, false
	}
	var f variant.Filter
	if n.ColorOK {
		f.Color = variant.String(n.Color)
	}
	if n.RAMOK {
		f.RAMGB = variant.Int(n.RAMGB)
	}
	if n.StorageOK {
		f.StorageGB = variant.Int(n.StorageGB)
	}
	if f.IsWildcard() {
		return nil, false
	}

	inStore := make([]model.PriceVariant, 0, len(product.Variants))
	for _, v := range product.Variants {
		if v.SellerStoreID == storeID {
			inStore = append(inStore, v)
		}
	}
	match, ok := variant.FindMatchingVariant(inStore, f)
	if !ok {
		return nil, false
	}
	for i := range product.Variants {
		if product.Variants[i].ID == match.ID {
			return &product.Variants[i], true
		}
	}
	return nil, false
}

// validateInsert checks every field the unique variant key needs.
func validateInsert(l model.ScrapedListing, n textnorm.Normalized, storeID int64) (Reason, bool) {
	switch {
	case !n.PriceOK:
		return ReasonPriceUnparsed, false
	case n.Excluded():
		return ReasonExcluded, false
	case strings.TrimSpace(l.ProductLink) == "":
		return ReasonLinkMissing, false
	case !n.ColorOK:
		return ReasonColorUnresolved, false
	case !n.StorageOK:
		return ReasonStorageUnknown, false
	case storeID == 0:
		return ReasonStoreUnknown, false
	}
	return "", true
}

// resolveStoreID prefers the id the orchestrator attached, then matches the
// adapter's store name against the stores the product is already sold in.
func resolveStoreID(product *model.Product, l model.ScrapedListing) int64 {
	if l.SellerStoreID != 0 {
		return l.SellerStoreID
	}
	name := strings.TrimSpace(l.StoreName)
	if name == "" {
		return 0
	}
	for _, v := range product.Variants {
		if v.Store.ID != 0 && strings.EqualFold(v.Store.Name, name) {
			return v.Store.ID
		}
	}
	return 0
}
