package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/store"
)

// GetProductWithVariants loads a product and all of its price variants in
// stored order.
func (s *Store) GetProductWithVariants(ctx context.Context, f store.ProductFilter) (*model.Product, error) {
	query, args, err := build(store.SelectProduct(psql, f))
	if err != nil {
		return nil, err
	}

	var p model.Product
	err = s.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.Name, &p.Brand, &p.RAMGB, &p.StorageGB, &p.Color, &p.MainImgURL,
	)
	if notFound(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	query, args, err = build(store.SelectVariants(psql).
		Where(sq.Eq{"p.product_id": p.ID}).
		OrderBy("p.id"))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
	query, args, err := build(psql.Insert("seller_stores").
		Columns("name").
		Values(name).
		Suffix("ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id"))
	if err != nil {
		return 0, err
	}

	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create seller store: %w", err)
	}
	return id, nil
}

// CreateProduct inserts p and sets p.ID. Variants are not written.
func (s *Store) CreateProduct(ctx context.Context, p *model.Product) error {
	query, args, err := build(psql.Insert("products").
		SetMap(map[string]any{
			"name":         p.Name,
			"brand":        p.Brand,
			"ram_gb":       p.RAMGB,
			"storage_gb":   p.StorageGB,
			"color":        p.Color,
			"main_img_url": p.MainImgURL,
		}).
		Suffix("RETURNING id"))
	if err != nil {
		return err
	}

	if err := s.pool.QueryRow(ctx, query, args...).Scan(&p.ID); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}
