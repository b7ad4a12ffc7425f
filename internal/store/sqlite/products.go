package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/store"
)

// GetProductWithVariants loads a product and all of its price variants in
// stored order.
func (s *Store) GetProductWithVariants(ctx context.Context, f store.ProductFilter) (*model.Product, error) {
	query, args, err := store.SelectProduct(store.SQLite, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build product query: %w", err)
	}

	var p model.Product
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.Name, &p.Brand, &p.RAMGB, &p.StorageGB, &p.Color, &p.MainImgURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	query, args, err = store.SelectVariants(store.SQLite).
		Where(sq.Eq{"p.product_id": p.ID}).
		OrderBy("p.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build variants query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	p.Variants = make([]model.PriceVariant, 0)
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		p.Variants = append(p.Variants, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return &p, nil
}

// CreateSellerStore returns the id of the store called name, creating it if
// needed.
func (s *Store) CreateSellerStore(ctx context.Context, name string) (int64, error) {
	query, args, err := store.SQLite.Insert("seller_stores").
		Columns("name").
		Values(name).
		Suffix("ON CONFLICT (name) DO UPDATE SET name = excluded.name RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build seller store insert: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create seller store: %w", err)
	}
	return id, nil
}

// CreateProduct inserts p and sets p.ID. Variants are not written.
func (s *Store) CreateProduct(ctx context.Context, p *model.Product) error {
	query, args, err := store.SQLite.Insert("products").
		SetMap(map[string]any{
			"name":         p.Name,
			"brand":        p.Brand,
			"ram_gb":       p.RAMGB,
			"storage_gb":   p.StorageGB,
			"color":        p.Color,
			"main_img_url": p.MainImgURL,
		}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build product insert: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&p.ID); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}
