package domain

import (
	"fmt"
	"sync"
	"time"
)

// Status classifies one unit's outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// OperationResult is the outcome of one unit of work. Exactly one is
// produced per handle the executor consumes.
type OperationResult struct {
	Handle   RepositoryHandle
	Status   Status
	Detail   string
	Duration time.Duration
}

// BatchReport accumulates results as they arrive, in completion order.
// Counts are exact regardless of completion order; the failure list has no
// meaningful order beyond arrival.
type BatchReport struct {
	mu        sync.Mutex
	succeeded int
	skipped   int
	failed    int
	failures  []OperationResult
}

func NewBatchReport() *BatchReport { return &BatchReport{} }

func (r *BatchReport) add(res OperationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch res.Status {
	case StatusSuccess:
		r.succeeded++
	case StatusSkipped:
		r.skipped++
	case StatusFailed:
		r.failed++
		r.failures = append(r.failures, res)
	}
}

func (r *BatchReport) Succeeded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succeeded
}

func (r *BatchReport) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

func (r *BatchReport) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

func (r *BatchReport) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succeeded + r.skipped + r.failed
}

// Failures returns the failed results for on-demand diagnostics.
func (r *BatchReport) Failures() []OperationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OperationResult, len(r.failures))
	copy(out, r.failures)
	return out
}

// Summary is the always-available one-line account of the batch.
func (r *BatchReport) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := r.succeeded + r.skipped + r.failed
	return fmt.Sprintf("total %d: %d succeeded, %d skipped, %d failed",
		total, r.succeeded, r.skipped, r.failed)
}
