// Package coreerrors provides the typed error kinds the scheduling
// core surfaces from every operation that can fail (spec §7). Every
// kind is a distinct Go type rather than a shared sentinel so callers
// can switch on type and propagate per-kind policy (retry, silent
// drop, user-facing acknowledgement, error-level log).
package coreerrors

import (
	"errors"
	"fmt"
)

// NotFound is a lookup miss surfaced to the caller.
type NotFound struct {
	Entity string
	ID     string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func NewNotFound(entity, id string) *NotFound {
	return &NotFound{Entity: entity, ID: id}
}

// DuplicateCheckIn is the TrackerAggregate's one-check-in-per-day
// invariant violation.
type DuplicateCheckIn struct {
	TrackerID string
	Date      string
}

func (e *DuplicateCheckIn) Error() string {
	return fmt.Sprintf("tracker %s already has a check-in for %s", e.TrackerID, e.Date)
}

func NewDuplicateCheckIn(trackerID, date string) *DuplicateCheckIn {
	return &DuplicateCheckIn{TrackerID: trackerID, Date: date}
}

// OwnershipMismatch is a construction-time guard failure. It is a bug
// signal and must never be surfaced to an end user.
type OwnershipMismatch struct {
	Entity   string
	Expected string
	Actual   string
}

func (e *OwnershipMismatch) Error() string {
	return fmt.Sprintf("%s ownership mismatch: expected %s, got %s", e.Entity, e.Expected, e.Actual)
}

func NewOwnershipMismatch(entity, expected, actual string) *OwnershipMismatch {
	return &OwnershipMismatch{Entity: entity, Expected: expected, Actual: actual}
}

// InvalidScheduleSpec is rejected at schedule() time (spec §3: INTERVAL
// requires interval_seconds > 0, DAILY requires a non-empty time set).
type InvalidScheduleSpec struct {
	JobName string
	Reason  string
}

func (e *InvalidScheduleSpec) Error() string {
	return fmt.Sprintf("invalid schedule for job %q: %s", e.JobName, e.Reason)
}

func NewInvalidScheduleSpec(jobName, reason string) *InvalidScheduleSpec {
	return &InvalidScheduleSpec{JobName: jobName, Reason: reason}
}

// Transient wraps a store deadlock, vault I/O retry, or an external
// collaborator's 5xx/timeout. Callers may retry with bounded backoff.
type Transient struct {
	Cause error
}

func (e *Transient) Error() string {
	return fmt.Sprintf("transient failure: %v", e.Cause)
}

func (e *Transient) Unwrap() error { return e.Cause }

func NewTransient(cause error) *Transient {
	return &Transient{Cause: cause}
}

// Cancelled signals a tripped cancellation token. Callbacks return
// immediately without emitting; it is never logged at error level.
type Cancelled struct{}

func (e *Cancelled) Error() string { return "cancelled" }

// ErrCancelled is the single shared Cancelled instance; cancellation
// carries no payload so one value suffices for errors.Is comparisons.
var ErrCancelled = &Cancelled{}

// ConfigError is a malformed-configuration failure found at startup.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for %q: %s", e.Key, e.Reason)
}

func NewConfigError(key, reason string) *ConfigError {
	return &ConfigError{Key: key, Reason: reason}
}

// IsTransient reports whether err is, or wraps, a *Transient.
func IsTransient(err error) bool {
	var t *Transient
	return errors.As(err, &t)
}

// IsNotFound reports whether err is, or wraps, a *NotFound.
func IsNotFound(err error) bool {
	var nf *NotFound
	return errors.As(err, &nf)
}

// IsDuplicateCheckIn reports whether err is, or wraps, a *DuplicateCheckIn.
func IsDuplicateCheckIn(err error) bool {
	var d *DuplicateCheckIn
	return errors.As(err, &d)
}

// IsCancelled reports whether err is the Cancelled sentinel.
func IsCancelled(err error) bool {
	var c *Cancelled
	return errors.As(err, &c)
}
