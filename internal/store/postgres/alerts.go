package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/store"
	"smartshop/price-service/internal/variant"
)

// FindActiveAlerts returns the enabled alerts of a product that can match a
// variant described by f.
func (s *Store) FindActiveAlerts(ctx context.Context, productID int64, f variant.Filter) ([]model.PriceAlert, error) {
	query, args, err := build(store.SelectActiveAlerts(psql, productID, f))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find active alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]model.PriceAlert, 0)
	for rows.Next() {
		var a model.PriceAlert
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.ProductID, &a.Threshold,
			&a.Color, &a.RAMGB, &a.StorageGB, &a.IsDisabled, &a.LastNotifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertNotified stamps last_notified_at on an alert.
func (s *Store) MarkAlertNotified(ctx context.Context, alertID int64, at time.Time) error {
	query, args, err := build(psql.Update("price_alerts").
		Set("last_notified_at", at).
		Where(sq.Eq{"id": alertID}))
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark alert notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateAlert inserts a and sets a.ID.
func (s *Store) CreateAlert(ctx context.Context, a *model.PriceAlert) error {
	query, args, err := build(psql.Insert("price_alerts").
		SetMap(map[string]any{
			"user_id":          a.UserID,
			"product_id":       a.ProductID,
			"threshold":        a.Threshold,
			"color":            a.Color,
			"ram_gb":           a.RAMGB,
			"storage_gb":       a.StorageGB,
			"is_disabled":      a.IsDisabled,
			"last_notified_at": a.LastNotifiedAt,
		}).
		Suffix("RETURNING id"))
	if err != nil {
		return err
	}

	if err := s.pool.QueryRow(ctx, query, args...).Scan(&a.ID); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}
