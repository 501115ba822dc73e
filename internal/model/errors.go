package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLedgerLocked is returned when another run holds the ledger lock.
	ErrLedgerLocked = errors.New("ledger is locked by another run")

	// ErrStrategyMismatch is returned when the ledger contains keys produced by
	// a different identity strategy than the configured one.
	ErrStrategyMismatch = errors.New("ledger was written with a different identity strategy")

	// ErrSummaryMissing is returned by analysis mode when the summary file
	// written by summary mode does not exist.
	ErrSummaryMissing = errors.New("summary file not found")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
