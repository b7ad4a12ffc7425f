package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartshop/price-service/internal/model"
)

// ErrJobFinished is returned when a SUCCEEDED or FAILED job is moved again.
var ErrJobFinished = errors.New("job already finished")

// Outcome is the record of one scraping job, persisted to scraping_jobs.
type Outcome struct {
	JobID     string `json:"jobId"`
	CycleID   string `json:"cycleId"`
	ProductID int64  `json:"productId"`
	VariantID int64  `json:"variantId"`
	Status    Status `json:"status"`
	// VariantStatus is the reconcile result (updated, inserted, rejected)
	// when the job got that far.
	VariantStatus string     `json:"variantStatus,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Retryable     bool       `json:"retryable"`
	Notified      int        `json:"notified"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
}

// New returns a PENDING outcome for unit with a fresh job id.
func New(cycleID string, unit model.ScrapeUnit) *Outcome {
	return &Outcome{
		JobID:     uuid.NewString(),
		CycleID:   cycleID,
		ProductID: unit.ProductID,
		VariantID: unit.VariantID,
		Status:    StatusPending,
	}
}

// Start moves the job to RUNNING.
func (o *Outcome) Start(at time.Time) error {
	if err := o.transition(StatusRunning); err != nil {
		return err
	}
	o.StartedAt = at
	return nil
}

// Succeed moves the job to SUCCEEDED.
func (o *Outcome) Succeed(at time.Time, variantStatus, reason string) error {
	if err := o.transition(StatusSucceeded); err != nil {
		return err
	}
	o.VariantStatus = variantStatus
	o.Reason = reason
	o.Retryable = false
	o.FinishedAt = &at
	return nil
}

// Fail moves the job to FAILED. Retryable means the next cycle may succeed;
// it never causes a retry within the current cycle.
func (o *Outcome) Fail(at time.Time, reason string, retryable bool) error {
	if err := o.transition(StatusFailed); err != nil {
		return err
	}
	o.Reason = reason
	o.Retryable = retryable
	o.FinishedAt = &at
	return nil
}

// Duration is the wall time between start and finish, or zero while the job
// is not finished.
func (o *Outcome) Duration() time.Duration {
	if o.FinishedAt == nil || o.StartedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

func (o *Outcome) transition(to Status) error {
	if IsTerminal(o.Status) {
		return fmt.Errorf("job %s is %s: %w", o.JobID, o.Status, ErrJobFinished)
	}
	if !IsTransitionAllowed(o.Status, to) {
		return fmt.Errorf("job %s: transition %s → %s not allowed", o.JobID, o.Status, to)
	}
	o.Status = to
	return nil
}
