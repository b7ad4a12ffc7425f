// Package notify hands triggered price alerts to the delivery pipeline.
//
// Requests are pushed onto a Redis list consumed by the notification
// service. Each request carries a dedup key; a key seen within the dedup TTL
// is dropped, so a retried or overlapping cycle never notifies twice for the
// same alert, cycle and price.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// QueueKey is the Redis list notification requests are pushed onto.
	QueueKey = "notify:queue"
	// EventPriceDrop is the pub/sub channel announcing new requests.
	EventPriceDrop = "EVENT_PRICE_DROP"

	dedupPrefix = "notify:dedup:"
)

// ErrMissingKey is returned for a request without a dedup key.
var ErrMissingKey = errors.New("notification request has no dedup key")

// Request asks for one user to be told about one price drop.
type Request struct {
	Key         string  `json:"key"`
	AlertID     int64   `json:"alertId"`
	UserID      int64   `json:"userId"`
	ProductID   int64   `json:"productId"`
	VariantID   int64   `json:"variantId"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Threshold   float64 `json:"threshold"`
	ProductLink string  `json:"productLink,omitempty"`
	CycleID     string  `json:"cycleId"`
}

// RedisDispatcher enqueues requests on Redis.
type RedisDispatcher struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisDispatcher returns a dispatcher that remembers dedup keys for ttl.
func NewRedisDispatcher(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisDispatcher{rdb: rdb, ttl: ttl, logger: logger.With("component", "notify")}
}

// Enqueue pushes r onto the queue. It reports false without error when r's
// key was already dispatched.
func (d *RedisDispatcher) Enqueue(ctx context.Context, r Request) (bool, error) {
	if r.Key == "" {
		return false, ErrMissingKey
	}

	dedupKey := dedupPrefix + r.Key
	fresh, err := d.rdb.SetNX(ctx, dedupKey, r.CycleID, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim dedup key: %w", err)
	}
	if !fresh {
		d.logger.Debug("notification deduplicated", "alert_id", r.AlertID, "key", r.Key)
		return false, nil
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("marshal notification: %w", err)
	}

	if err := d.rdb.LPush(ctx, QueueKey, payload).Err(); err != nil {
		// Release the key so the next cycle can retry.
		if derr := d.rdb.Del(ctx, dedupKey).Err(); derr != nil {
			d.logger.Warn("release dedup key failed", "key", r.Key, "err", derr)
		}
		return false, fmt.Errorf("enqueue notification: %w", err)
	}

	// Announce for live consumers (non-fatal)
	if err := d.rdb.Publish(ctx, EventPriceDrop, payload).Err(); err != nil {
		d.logger.Warn("publish "+EventPriceDrop+" failed", "err", err)
	}

	d.logger.Info("notification enqueued",
		"alert_id", r.AlertID,
		"user_id", r.UserID,
		"variant_id", r.VariantID,
		"price", r.Price,
	)
	return true, nil
}
