// Package alerts decides which price alerts a fresh observation triggers.
package alerts

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"smartshop/price-service/internal/model"
	"smartshop/price-service/internal/notify"
	"smartshop/price-service/internal/variant"
)

// Observation is the variant state an alert is evaluated against.
type Observation struct {
	VariantID   int64
	Price       float64
	Currency    string
	Color       string
	RAMGB       int
	StorageGB   int
	ProductLink string
}

// FromVariant builds an Observation from a persisted variant.
func FromVariant(v model.PriceVariant) Observation {
	return Observation{
		VariantID:   v.ID,
		Price:       v.Price,
		Currency:    v.Currency,
		Color:       v.Color,
		RAMGB:       v.RAMGB,
		StorageGB:   v.StorageGB,
		ProductLink: v.ProductLink,
	}
}

// filter describes the observed variant for the store pre-filter. Unknown
// RAM is left out so alerts filtered on RAM are judged in process.
func (o Observation) filter() variant.Filter {
	f := variant.Filter{Color: &o.Color, StorageGB: &o.StorageGB}
	if o.RAMGB != model.RAMUnknown {
		f.RAMGB = &o.RAMGB
	}
	return f
}

// Store is the persistence FindTriggeredAlerts needs.
type Store interface {
	FindActiveAlerts(ctx context.Context, productID int64, f variant.Filter) ([]model.PriceAlert, error)
}

// Evaluator looks up and filters alerts. It never writes.
type Evaluator struct {
	store Store
}

// New returns an Evaluator.
func New(s Store) *Evaluator {
	return &Evaluator{store: s}
}

// FindTriggeredAlerts returns the alerts of productID triggered by obs.
func (e *Evaluator) FindTriggeredAlerts(ctx context.Context, productID int64, obs Observation) ([]model.PriceAlert, error) {
	candidates, err := e.store.FindActiveAlerts(ctx, productID, obs.filter())
	if err != nil {
		return nil, fmt.Errorf("find active alerts for product %d: %w", productID, err)
	}
	return Triggered(candidates, obs), nil
}

// Triggered keeps the enabled alerts whose filter matches obs and whose
// threshold is at or above the observed price.
func Triggered(candidates []model.PriceAlert, obs Observation) []model.PriceAlert {
	out := make([]model.PriceAlert, 0, len(candidates))
	for _, a := range candidates {
		if a.IsDisabled {
			continue
		}
		if !variant.ForAlert(a).Matches(obs.Color, obs.RAMGB, obs.StorageGB) {
			continue
		}
		if a.Threshold >= obs.Price {
			out = append(out, a)
		}
	}
	return out
}

// Requests builds one notification request per triggered alert.
func Requests(triggered []model.PriceAlert, productID int64, obs Observation, cycleID string) []notify.Request {
	reqs := make([]notify.Request, 0, len(triggered))
	for _, a := range triggered {
		reqs = append(reqs, notify.Request{
			Key:         DedupKey(a.ID, cycleID, obs.Price),
			AlertID:     a.ID,
			UserID:      a.UserID,
			ProductID:   productID,
			VariantID:   obs.VariantID,
			Price:       obs.Price,
			Currency:    obs.Currency,
			Threshold:   a.Threshold,
			ProductLink: obs.ProductLink,
			CycleID:     cycleID,
		})
	}
	return reqs
}

// DedupKey identifies one notification for (alert, cycle, price).
func DedupKey(alertID int64, cycleID string, price float64) string {
	d := xxhash.New()
	d.WriteString(strconv.FormatInt(alertID, 10))
	d.WriteString("|")
	d.WriteString(cycleID)
	d.WriteString("|")
	d.WriteString(strconv.FormatFloat(price, 'f', 2, 64))
	return strconv.FormatUint(d.Sum64(), 16)
}
