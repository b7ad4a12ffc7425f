// Package jobs defines the lifecycle of a scraping job.
//
// Valid status graph:
//
//	PENDING ──► RUNNING ──► SUCCEEDED
//	   │           │
//	   └───────────┴──────► FAILED
//
// SUCCEEDED and FAILED are terminal states. A retry is a new job in the next
// cycle, never a transition out of FAILED.
package jobs

import "fmt"

// Status values mirror the scraping_jobs.status column.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusSucceeded, StatusFailed},
	// SUCCEEDED and FAILED are terminal
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for SUCCEEDED and FAILED.
func IsTerminal(s Status) bool { return s == StatusSucceeded || s == StatusFailed }
