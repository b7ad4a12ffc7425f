package postgres

import (
	"context"
	"fmt"
	"time"

	"smartshop/price-service/internal/jobs"
	"smartshop/price-service/internal/store"
)

// ReportJobOutcome upserts the state of a scraping job.
func (s *Store) ReportJobOutcome(ctx context.Context, o jobs.Outcome) error {
	var started *time.Time
	if !o.StartedAt.IsZero() {
		started = &o.StartedAt
	}
	query, args, err := build(store.UpsertJobOutcome(psql, o, started, o.FinishedAt))
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("report job outcome: %w", err)
	}
	return nil
}

// ListJobOutcomes returns the jobs recorded for one cycle.
func (s *Store) ListJobOutcomes(ctx context.Context, cycleID string) ([]jobs.Outcome, error) {
	query, args, err := build(store.SelectJobOutcomes(psql, cycleID))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]jobs.Outcome, 0)
	for rows.Next() {
		var (
			o       jobs.Outcome
			status  string
			started *time.Time
		)
		if err := rows.Scan(
			&o.JobID, &o.CycleID, &o.ProductID, &o.VariantID, &status, &o.VariantStatus,
			&o.Reason, &o.Retryable, &o.Notified, &started, &o.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job outcome: %w", err)
		}
		if o.Status, err = jobs.ParseStatus(status); err != nil {
			return nil, err
		}
		if started != nil {
			o.StartedAt = *started
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
