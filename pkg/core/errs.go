package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a document or rule does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by DocumentStore.Save when the
	// expected version is stale. Callers must reload and retry.
	ErrVersionConflict = errors.New("document version conflict")

	// ErrAuthentication marks credential failures. Fatal at startup and
	// mid-run; never retried.
	ErrAuthentication = errors.New("authentication failed")

	// ErrUnknownMetric is returned when a rule references a metric the
	// snapshot does not carry.
	ErrUnknownMetric = errors.New("unknown metric")
)

// RateLimitError signals that the remote service asked us to back off.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// DataFormatError marks a malformed remote payload. The owning component
// logs it and skips the sample.
type DataFormatError struct {
	Pair string
	Err  error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("malformed data for %s: %v", e.Pair, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }
