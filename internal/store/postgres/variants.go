package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/store"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariant(row rowScanner) (*model.PriceVariant, error) {
	var v model.PriceVariant
	if err := row.Scan(
		&v.ID, &v.ProductID, &v.Color, &v.RAMGB, &v.StorageGB,
		&v.SellerStoreID, &v.Store.Name, &v.ProductLink,
		&v.Price, &v.Currency, &v.Availability,
		&v.ShippingCost, &v.Discount, &v.MainImgURL,
		&v.LastUpdated, &v.CreatedAt,
	); err != nil {
		return nil, err
	}
	v.Store.ID = v.SellerStoreID
	return &v, nil
}

func queryVariant(ctx context.Context, db querier, q sq.SelectBuilder) (*model.PriceVariant, error) {
	query, args, err := build(q)
	if err != nil {
		return nil, err
	}
	v, err := scanVariant(db.QueryRow(ctx, query, args...))
	if notFound(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

// GetVariant loads one price variant by id.
func (s *Store) GetVariant(ctx context.Context, id int64) (*model.PriceVariant, error) {
	return queryVariant(ctx, s.pool, store.SelectVariants(psql).Where(sq.Eq{"p.id": id}))
}

// FindVariantByKey loads the variant owning the unique key.
func (s *Store) FindVariantByKey(ctx context.Context, key model.VariantKey) (*model.PriceVariant, error) {
	return queryVariant(ctx, s.pool, store.SelectVariantByKey(psql,
		key.ProductID, key.Color, key.RAMGB, key.StorageGB, key.SellerStoreID, key.ProductLink))
}

// InsertVariant creates a price row and its first history entry in one
// transaction. It returns store.ErrDuplicateVariant when the unique variant
// key is already taken.
func (s *Store) InsertVariant(ctx context.Context, v model.PriceVariant) (*model.PriceVariant, error) {
	now := v.LastUpdated
	if now.IsZero() {
		now = time.Now().UTC()
	}
	created := v.CreatedAt
	if created.IsZero() {
		created = now
	}

	query, args, err := build(psql.Insert("prices").
		SetMap(map[string]any{
			"product_id":      v.ProductID,
			"color":           v.Color,
			"ram_gb":          v.RAMGB,
			"storage_gb":      v.StorageGB,
			"seller_store_id": v.SellerStoreID,
			"product_link":    v.ProductLink,
			"price":           v.Price,
			"currency":        v.Currency,
			"availability":    v.Availability,
			"shipping_cost":   v.ShippingCost,
			"discount":        v.Discount,
			"main_img_url":    v.MainImgURL,
			"last_updated":    now,
			"created_at":      created,
		}).
		Suffix("RETURNING id"))
	if err != nil {
		return nil, err
	}

	var inserted *model.PriceVariant
	err = s.runInTx(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, query, args...).Scan(&id)
		if isUniqueViolation(err) {
			return store.ErrDuplicateVariant
		}
		if err != nil {
			return fmt.Errorf("insert variant: %w", err)
		}

		if err := appendHistory(ctx, tx, model.PriceHistoryEntry{
			PriceID:      id,
			Price:        v.Price,
			Currency:     v.Currency,
			Availability: v.Availability,
			RecordedAt:   now,
		}); err != nil {
			return err
		}

		inserted, err = queryVariant(ctx, tx, store.SelectVariants(psql).Where(sq.Eq{"p.id": id}))
		return err
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// UpdateVariantPrice writes a new price snapshot onto an existing variant
// and records it in the variant's history, in one transaction. Optional
// values missing from the snapshot keep their stored value.
func (s *Store) UpdateVariantPrice(ctx context.Context, variantID int64, snap model.PriceSnapshot) (*model.PriceVariant, error) {
	query, args, err := build(psql.Update("prices").
		Set("price", snap.Price).
		Set("currency", snap.Currency).
		Set("availability", snap.Availability).
		Set("shipping_cost", sq.Expr("COALESCE(?::numeric, shipping_cost)", snap.ShippingCost)).
		Set("discount", sq.Expr("COALESCE(?::numeric, discount)", snap.Discount)).
		Set("main_img_url", sq.Expr("COALESCE(NULLIF(?::text, ''), main_img_url)", snap.MainImgURL)).
		Set("last_updated", snap.ObservedAt).
		Where(sq.Eq{"id": variantID}))
	if err != nil {
		return nil, err
	}

	var updated *model.PriceVariant
	err = s.runInTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update variant: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}

		if err := appendHistory(ctx, tx, model.PriceHistoryEntry{
			PriceID:      variantID,
			Price:        snap.Price,
			Currency:     snap.Currency,
			Availability: snap.Availability,
			RecordedAt:   snap.ObservedAt,
		}); err != nil {
			return err
		}

		updated, err = queryVariant(ctx, tx, store.SelectVariants(psql).Where(sq.Eq{"p.id": variantID}))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func appendHistory(ctx context.Context, db querier, e model.PriceHistoryEntry) error {
	query, args, err := build(psql.Insert("price_history").
		Columns("price_id", "price", "currency", "availability", "recorded_at").
		Values(e.PriceID, e.Price, e.Currency, e.Availability, e.RecordedAt))
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListHistory returns the newest history entries of a variant first.
func (s *Store) ListHistory(ctx context.Context, variantID int64, limit int) ([]model.PriceHistoryEntry, error) {
	query, args, err := build(store.SelectHistory(psql, variantID, limit))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]model.PriceHistoryEntry, 0)
	for rows.Next() {
		var e model.PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.PriceID, &e.Price, &e.Currency, &e.Availability, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListScrapeUnits lists every variant with a product link, optionally only
// those of one product.
func (s *Store) ListScrapeUnits(ctx context.Context, productID int64) ([]model.ScrapeUnit, error) {
	query, args, err := build(store.SelectScrapeUnits(psql, productID))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scrape units: %w", err)
	}
	defer rows.Close()

	units := make([]model.ScrapeUnit, 0)
	for rows.Next() {
		var u model.ScrapeUnit
		if err := rows.Scan(&u.ProductID, &u.VariantID); err != nil {
			return nil, fmt.Errorf("scan scrape unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}
