package jobs_test

import (
	"errors"
	"testing"
	"time"

	"smartshop/price-service/internal/jobs"
	"smartshop/price-service/internal/model"
)

func TestOutcome_SuccessPath(t *testing.T) {
	o := jobs.New("cycle-1", model.ScrapeUnit{ProductID: 7, VariantID: 9})
	if o.Status != jobs.StatusPending {
		t.Fatalf("new outcome status = %s, want PENDING", o.Status)
	}
	if o.JobID == "" {
		t.Fatal("new outcome has no job id")
	}

	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	if err := o.Start(start); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Succeed(start.Add(2*time.Second), "updated", ""); err != nil {
		t.Fatalf("Succeed: %v", err)
	}

	if o.Status != jobs.StatusSucceeded {
		t.Errorf("status = %s, want SUCCEEDED", o.Status)
	}
	if o.VariantStatus != "updated" {
		t.Errorf("variant status = %q, want updated", o.VariantStatus)
	}
	if got := o.Duration(); got != 2*time.Second {
		t.Errorf("duration = %v, want 2s", got)
	}
}

func TestOutcome_StartTwiceIsNotFinished(t *testing.T) {
	o := jobs.New("cycle-1", model.ScrapeUnit{ProductID: 1})
	now := time.Now()
	if err := o.Start(now); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := o.Start(now)
	if err == nil {
		t.Fatal("second Start should be rejected")
	}
	if errors.Is(err, jobs.ErrJobFinished) {
		t.Error("a running job is not finished")
	}
}

func TestOutcome_FailBeforeStart(t *testing.T) {
	o := jobs.New("cycle-1", model.ScrapeUnit{ProductID: 1})
	if err := o.Fail(time.Now(), "product not found", false); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if o.Retryable {
		t.Error("retryable should be false")
	}
	if o.Duration() != 0 {
		t.Error("duration of a never-started job should be zero")
	}
}

func TestOutcome_TerminalIsFinal(t *testing.T) {
	o := jobs.New("cycle-1", model.ScrapeUnit{ProductID: 1})
	now := time.Now()
	if err := o.Start(now); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Fail(now, "fetch failed", true); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := o.Succeed(now, "updated", ""); !errors.Is(err, jobs.ErrJobFinished) {
		t.Errorf("Succeed after Fail: err = %v, want ErrJobFinished", err)
	}
	if err := o.Start(now); !errors.Is(err, jobs.ErrJobFinished) {
		t.Errorf("Start after Fail: err = %v, want ErrJobFinished", err)
	}
	if o.Status != jobs.StatusFailed {
		t.Errorf("status = %s, want FAILED", o.Status)
	}
}
