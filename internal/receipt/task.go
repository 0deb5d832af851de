// Package receipt models the asynchronous receipt-analysis handoff: a
// submitted image becomes a task, an external analyzer turns it into a
// structured invoice, and callers poll the task until it reaches a
// terminal status.
package receipt

import (
	"context"
	"errors"
	"time"
)

const (
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type (
	// Status is the lifecycle state of a receipt task. Submitted and
	// processing are valid non-error states a poller must tolerate.
	Status string

	// Task is the shared status-store row for one submitted receipt.
	Task struct {
		ID         string
		OwnerID    string
		Status     Status
		ImageB64   string
		ResultJSON string
		Error      string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
)

var (
	ErrTaskNotFound = errors.New("receipt task not found")
	ErrTaskNotReady = errors.New("receipt task not finished")
	ErrTaskFailed   = errors.New("receipt task failed")
	ErrImageTooBig  = errors.New("receipt image exceeds size limit")
	ErrEmptyImage   = errors.New("empty receipt image")
)

// Terminal reports whether the task has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Analyzer is the external service that extracts a structured invoice
// from a receipt image. Implementations must honor context cancellation.
type Analyzer interface {
	Analyze(ctx context.Context, imageB64 string) (*Invoice, error)
}
