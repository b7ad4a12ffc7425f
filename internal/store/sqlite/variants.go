package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/store"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanVariant(row rowScanner) (*model.PriceVariant, error) {
	var (
		v                      model.PriceVariant
		lastUpdated, createdAt string
	)
	if err := row.Scan(
		&v.ID, &v.ProductID, &v.Color, &v.RAMGB, &v.StorageGB,
		&v.SellerStoreID, &v.Store.Name, &v.ProductLink,
		&v.Price, &v.Currency, &v.Availability,
		&v.ShippingCost, &v.Discount, &v.MainImgURL,
		&lastUpdated, &createdAt,
	); err != nil {
		return nil, err
	}
	v.Store.ID = v.SellerStoreID

	var err error
	if v.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("parse last_updated: %w", err)
	}
	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &v, nil
}

func queryVariant(ctx context.Context, db querier, q sq.SelectBuilder) (*model.PriceVariant, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build variant query: %w", err)
	}
	v, err := scanVariant(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

// GetVariant loads one price variant by id.
func (s *Store) GetVariant(ctx context.Context, id int64) (*model.PriceVariant, error) {
	return queryVariant(ctx, s.db, store.SelectVariants(store.SQLite).Where(sq.Eq{"p.id": id}))
}

// FindVariantByKey loads the variant owning the unique key.
func (s *Store) FindVariantByKey(ctx context.Context, key model.VariantKey) (*model.PriceVariant, error) {
	return queryVariant(ctx, s.db, store.SelectVariantByKey(store.SQLite,
		key.ProductID, key.Color, key.RAMGB, key.StorageGB, key.SellerStoreID, key.ProductLink))
}

// InsertVariant creates a price row and its first history entry in one
// transaction. It returns store.ErrDuplicateVariant when the unique variant
// key is already taken.
func (s *Store) InsertVariant(ctx context.Context, v model.PriceVariant) (*model.PriceVariant, error) {
	now := v.LastUpdated
	if now.IsZero() {
		now = time.Now()
	}
	created := v.CreatedAt
	if created.IsZero() {
		created = now
	}

	query, args, err := store.SQLite.Insert("prices").
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
			"last_updated":    formatTime(now),
			"created_at":      formatTime(created),
		}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build variant insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin variant insert: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if isUniqueViolation(err) {
		return nil, store.ErrDuplicateVariant
	}
	if err != nil {
		return nil, fmt.Errorf("insert variant: %w", err)
	}

	if err := appendHistory(ctx, tx, model.PriceHistoryEntry{
		PriceID:      id,
		Price:        v.Price,
		Currency:     v.Currency,
		Availability: v.Availability,
		RecordedAt:   now,
	}); err != nil {
		return nil, err
	}

	inserted, err := queryVariant(ctx, tx, store.SelectVariants(store.SQLite).Where(sq.Eq{"p.id": id}))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit variant insert: %w", err)
	}
	return inserted, nil
}

// UpdateVariantPrice writes a new price snapshot onto an existing variant
// and records it in the variant's history, in one transaction. Optional
// values missing from the snapshot keep their stored value.
func (s *Store) UpdateVariantPrice(ctx context.Context, variantID int64, snap model.PriceSnapshot) (*model.PriceVariant, error) {
	query, args, err := store.SQLite.Update("prices").
		Set("price", snap.Price).
		Set("currency", snap.Currency).
		Set("availability", snap.Availability).
		Set("shipping_cost", sq.Expr("COALESCE(?, shipping_cost)", snap.ShippingCost)).
		Set("discount", sq.Expr("COALESCE(?, discount)", snap.Discount)).
		Set("main_img_url", sq.Expr("COALESCE(NULLIF(?, ''), main_img_url)", snap.MainImgURL)).
		Set("last_updated", formatTime(snap.ObservedAt)).
		Where(sq.Eq{"id": variantID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build variant update: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin variant update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update variant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update variant rows affected: %w", err)
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}

	if err := appendHistory(ctx, tx, model.PriceHistoryEntry{
		PriceID:      variantID,
		Price:        snap.Price,
		Currency:     snap.Currency,
		Availability: snap.Availability,
		RecordedAt:   snap.ObservedAt,
	}); err != nil {
		return nil, err
	}

	updated, err := queryVariant(ctx, tx, store.SelectVariants(store.SQLite).Where(sq.Eq{"p.id": variantID}))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit variant update: %w", err)
	}
	return updated, nil
}

func appendHistory(ctx context.Context, db querier, e model.PriceHistoryEntry) error {
	query, args, err := store.SQLite.Insert("price_history").
		Columns("price_id", "price", "currency", "availability", "recorded_at").
		Values(e.PriceID, e.Price, e.Currency, e.Availability, formatTime(e.RecordedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build history insert: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListHistory returns the newest history entries of a variant first.
func (s *Store) ListHistory(ctx context.Context, variantID int64, limit int) ([]model.PriceHistoryEntry, error) {
	query, args, err := store.SelectHistory(store.SQLite, variantID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]model.PriceHistoryEntry, 0)
	for rows.Next() {
		var (
			e          model.PriceHistoryEntry
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.PriceID, &e.Price, &e.Currency, &e.Availability, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if e.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListScrapeUnits lists every variant with a product link, optionally only
// those of one product.
func (s *Store) ListScrapeUnits(ctx context.Context, productID int64) ([]model.ScrapeUnit, error) {
	query, args, err := store.SelectScrapeUnits(store.SQLite, productID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scrape units query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
