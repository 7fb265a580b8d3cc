/*
errors.go - Centralized error types for crew-engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Packages wrap these with context via fmt.Errorf("...: %w", err) and
  callers test them with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Lookup errors     - no applicable rate, unknown entity
  2. State errors      - shift state machine misuse
  3. Export errors     - nothing to put on a calendar
  4. Sync errors       - remote persistence deferred (data kept locally)
  5. Validation errors - overlapping rates, negative hours, bad periods

All of them are recoverable at the call site.

SEE ALSO:
  - rates/resolver.go: ErrRateNotFound
  - shift/accumulator.go: TransitionError
  - shift/tracker.go: SyncPendingError
  - calendar/ical.go: ErrNoExportableData
*/
package domain

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRateNotFound means no rate covers the requested date. Earnings are
	// unavailable; callers must never substitute a zero or default rate.
	ErrRateNotFound = errors.New("no applicable rate")

	// ErrAlreadyActive is returned when starting a shift while one is running.
	ErrAlreadyActive = errors.New("shift already active")

	// ErrNotActive is returned when a transition needs a running shift.
	ErrNotActive = errors.New("shift not active")

	// ErrNotOnBreak is returned when ending a break that was never started.
	ErrNotOnBreak = errors.New("shift not on break")

	// ErrNoExportableData is returned when no phase has both a start and end date.
	ErrNoExportableData = errors.New("no phase has both a start and an end date")

	// ErrSyncPending means the data was kept locally but remote persistence
	// has not happened yet. Retry with an explicit force sync.
	ErrSyncPending = errors.New("sync pending")

	// ErrRateOverlap is returned when a rate would overlap another rate of
	// the same payment type for the same worker.
	ErrRateOverlap = errors.New("rate overlaps an existing rate")

	// ErrInvalidHours is returned for negative hour quantities.
	ErrInvalidHours = errors.New("hours must not be negative")

	// ErrEntityNotFound is returned when a referenced entity doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidShift is returned when a stored shift violates its invariants.
	ErrInvalidShift = errors.New("invalid shift record")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RateNotFoundError says which worker and date had no rate.
type RateNotFoundError struct {
	WorkerID WorkerID
	On       Date
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no applicable rate for worker %s on %s", e.WorkerID, e.On)
}

func (e *RateNotFoundError) Unwrap() error { return ErrRateNotFound }

// RateOverlapError names the stored rate that conflicts with a new one.
type RateOverlapError struct {
	WorkerID WorkerID
	Existing RateID
	Span     Period
}

func (e *RateOverlapError) Error() string {
	return fmt.Sprintf("rate for worker %s overlaps rate %s %s", e.WorkerID, e.Existing, e.Span)
}

func (e *RateOverlapError) Unwrap() error { return ErrRateOverlap }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "worker", "project", "phase", "shift"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrEntityNotFound }

// SyncPendingError is returned together with a usable result when the data
// was kept locally but could not be persisted remotely.
type SyncPendingError struct {
	ShiftID  ShiftID
	Attempts int
	At       time.Time
	Cause    error
}

func (e *SyncPendingError) Error() string {
	return fmt.Sprintf("shift %s ended locally, remote sync pending after %d attempt(s): %v",
		e.ShiftID, e.Attempts, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying persistence error.
func (e *SyncPendingError) Unwrap() []error { return []error{ErrSyncPending, e.Cause} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

// IsConflict returns true if the error is shift state machine misuse.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrNotOnBreak)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrRateOverlap) ||
		errors.Is(err, ErrInvalidHours) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidShift)
}
