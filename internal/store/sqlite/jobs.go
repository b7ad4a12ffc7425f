package sqlite

import (
	"context"
	"database/sql"
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
	query, args, err := store.UpsertJobOutcome(store.SQLite, o,
		nullTimeString(started), nullTimeString(o.FinishedAt)).ToSql()
	if err != nil {
		return fmt.Errorf("build job upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("report job outcome: %w", err)
	}
	return nil
}

// ListJobOutcomes returns the jobs recorded for one cycle.
func (s *Store) ListJobOutcomes(ctx context.Context, cycleID string) ([]jobs.Outcome, error) {
	query, args, err := store.SelectJobOutcomes(store.SQLite, cycleID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]jobs.Outcome, 0)
	for rows.Next() {
		var (
			o                 jobs.Outcome
			status            string
			started, finished sql.NullString
		)
		if err := rows.Scan(
			&o.JobID, &o.CycleID, &o.ProductID, &o.VariantID, &status, &o.VariantStatus,
			&o.Reason, &o.Retryable, &o.Notified, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan job outcome: %w", err)
		}
		if o.Status, err = jobs.ParseStatus(status); err != nil {
			return nil, err
		}
		startedAt, err := parseNullableTime(started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if startedAt != nil {
			o.StartedAt = *startedAt
		}
		if o.FinishedAt, err = parseNullableTime(finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
