// Package tracker implements the TrackerAggregate (spec §3/§4.4): the
// only sanctioned way to create CheckIn rows, and the home of the
// streak/miss-count math. Ported from
// original_source/src/models/tracker_aggregate.py, generalized to
// Go's explicit-error idiom.
package tracker

import (
	"time"

	"github.com/glebis/telegram-agent-sub002/internal/clock"
	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
	"github.com/glebis/telegram-agent-sub002/internal/model"
)

// Aggregate wraps a Tracker and its CheckIns, enforcing the
// one-check-in-per-day and ownership invariants from spec §3/§4.4.
type Aggregate struct {
	tracker   model.Tracker
	checkIns  []model.CheckIn
	pending   []model.CheckIn
	clk       clock.Clock
}

// New constructs an Aggregate, rejecting any check-in whose
// tracker_id or owner disagrees with the tracker.
func New(clk clock.Clock, t model.Tracker, checkIns []model.CheckIn) (*Aggregate, error) {
	for _, ci := range checkIns {
		if ci.TrackerID != t.ID {
			return nil, coreerrors.NewOwnershipMismatch("CheckIn.TrackerID", t.ID, ci.TrackerID)
		}
		if ci.Owner != t.Owner {
			return nil, coreerrors.NewOwnershipMismatch("CheckIn.Owner", t.Owner, ci.Owner)
		}
	}
	cp := make([]model.CheckIn, len(checkIns))
	copy(cp, checkIns)
	return &Aggregate{tracker: t, checkIns: cp, clk: clk}, nil
}

// TrackerID returns the wrapped tracker's ID.
func (a *Aggregate) TrackerID() string { return a.tracker.ID }

// Owner returns the wrapped tracker's owning user ID.
func (a *Aggregate) Owner() string { return a.tracker.Owner }

// Name returns the wrapped tracker's display name.
func (a *Aggregate) Name() string { return a.tracker.Name }

// PendingCheckIns returns check-ins created via MarkCompleted/Skip but
// not yet persisted. The caller is responsible for writing them to
// Store; the aggregate never writes itself (spec §4.4).
func (a *Aggregate) PendingCheckIns() []model.CheckIn {
	cp := make([]model.CheckIn, len(a.pending))
	copy(cp, a.pending)
	return cp
}

// MarkCompleted records a "completed" check-in for the given date.
func (a *Aggregate) MarkCompleted(forDate time.Time) (model.CheckIn, error) {
	return a.addCheckIn(forDate, model.CheckInCompleted)
}

// Skip records a "skipped" check-in for the given date.
func (a *Aggregate) Skip(forDate time.Time) (model.CheckIn, error) {
	return a.addCheckIn(forDate, model.CheckInSkipped)
}

func (a *Aggregate) hasCheckInOn(day time.Time) bool {
	for _, ci := range append(a.checkIns, a.pending...) {
		if sameDay(ci.CreatedAt, day) {
			return true
		}
	}
	return false
}

func (a *Aggregate) addCheckIn(forDate time.Time, status model.CheckInStatus) (model.CheckIn, error) {
	if a.hasCheckInOn(forDate) {
		return model.CheckIn{}, coreerrors.NewDuplicateCheckIn(a.tracker.ID, forDate.Format("2006-01-02"))
	}
	ci := model.CheckIn{
		TrackerID: a.tracker.ID,
		Owner:     a.tracker.Owner,
		Status:    status,
		CreatedAt: time.Date(forDate.Year(), forDate.Month(), forDate.Day(), 12, 0, 0, 0, time.UTC),
	}
	a.checkIns = append(a.checkIns, ci)
	a.pending = append(a.pending, ci)
	return ci, nil
}

// ComputeStreak returns the greatest k such that, for every i in
// [0, k), there is a completed-or-partial check-in dated today-i.
func (a *Aggregate) ComputeStreak() int {
	completedDates := make(map[string]bool)
	for _, ci := range append(a.checkIns, a.pending...) {
		if ci.Status == model.CheckInCompleted || ci.Status == model.CheckInPartial {
			completedDates[ci.CreatedAt.Format("2006-01-02")] = true
		}
	}

	streak := 0
	current := a.clk.Today()
	for completedDates[current.Format("2006-01-02")] {
		streak++
		current = current.AddDate(0, 0, -1)
	}
	return streak
}

// CountConsecutiveMisses returns days since the latest check-in of any
// status, floored at zero. Always zero for non-daily trackers (spec §3,
// a design choice documented as such — the source leaves this
// undefined for non-daily frequencies).
func (a *Aggregate) CountConsecutiveMisses() int {
	if a.tracker.Frequency != model.FrequencyDaily {
		return 0
	}

	all := append(a.checkIns, a.pending...)
	if len(all) == 0 {
		return 0
	}

	latest := all[0].CreatedAt
	for _, ci := range all[1:] {
		if ci.CreatedAt.After(latest) {
			latest = ci.CreatedAt
		}
	}

	today := a.clk.Today()
	latestDay := time.Date(latest.Year(), latest.Month(), latest.Day(), 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(latestDay).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func sameDay(t, day time.Time) bool {
	return t.Year() == day.Year() && t.Month() == day.Month() && t.Day() == day.Day()
}
