// Package accountability implements the AccountabilityScheduler (C9,
// spec §4.9/§8 scenarios 1-4): it composes TrackerAggregate,
// ResponseGenerator and DispatchPort behind two per-user daily jobs,
// registered through the RuntimeScheduler. Batching of the check-in
// job is ported from
// original_source/src/services/accountability_scheduler.py.
package accountability

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glebis/telegram-agent-sub002/internal/clock"
	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
	"github.com/glebis/telegram-agent-sub002/internal/dispatch"
	"github.com/glebis/telegram-agent-sub002/internal/model"
	"github.com/glebis/telegram-agent-sub002/internal/response"
	"github.com/glebis/telegram-agent-sub002/internal/scheduler"
	"github.com/glebis/telegram-agent-sub002/internal/store"
	"github.com/glebis/telegram-agent-sub002/internal/tracker"
	"github.com/glebis/telegram-agent-sub002/pkg/logger"
)

const (
	defaultQuietStart = "22:00"
	defaultQuietEnd   = "07:00"
)

// ParseHHMM parses an "HH:MM" clock time; on any error it returns the
// fallback default rather than failing the caller.
func ParseHHMM(s, fallback string) (hour, minute int) {
	h, m, err := splitHHMM(s)
	if err != nil {
		h, m, _ = splitHHMM(fallback)
	}
	return h, m
}

func splitHHMM(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// IsQuietHours reports whether now falls within [start, end] inclusive
// (spec §8: "the instants 22:00, 00:00, 07:00 are quiet"), handling
// the midnight-wraparound case when start > end.
func IsQuietHours(now time.Time, start, end string) bool {
	sh, sm := ParseHHMM(start, defaultQuietStart)
	eh, em := ParseHHMM(end, defaultQuietEnd)
	cur := now.Hour()*60 + now.Minute()
	s := sh*60 + sm
	e := eh*60 + em

	if s > e {
		return cur >= s || cur <= e
	}
	return cur >= s && cur <= e
}

// Scheduler composes C4/C6/C12 behind the two per-user daily jobs
// C9 owns.
type Scheduler struct {
	store   store.Store
	sched   *scheduler.Scheduler
	port    dispatch.Port
	clk     clock.Clock
	log     *logger.Logger
	quiet   QuietHoursConfig
}

// QuietHoursConfig is the default scheduler.quiet_hours.* config (spec §6).
type QuietHoursConfig struct {
	Start string
	End   string
}

// DefaultQuietHours returns the spec-default 22:00-07:00 window.
func DefaultQuietHours() QuietHoursConfig {
	return QuietHoursConfig{Start: defaultQuietStart, End: defaultQuietEnd}
}

// New constructs the AccountabilityScheduler.
func New(s store.Store, sched *scheduler.Scheduler, port dispatch.Port, clk clock.Clock, log *logger.Logger, quiet QuietHoursConfig) *Scheduler {
	if log == nil {
		log = logger.NewDefault("accountability")
	}
	return &Scheduler{store: s, sched: sched, port: port, clk: clk, log: log, quiet: quiet}
}

// RegisterUser installs the check-in and struggle-detection jobs for
// one user's active AccountabilityProfile (spec §4.9).
func (a *Scheduler) RegisterUser(userID string) error {
	profile, found, err := a.store.AccountabilityProfile(context.Background(), userID)
	if err != nil {
		return err
	}
	if !found {
		return coreerrors.NewNotFound("AccountabilityProfile", userID)
	}

	checkTime := profile.CheckTime
	if checkTime == "" {
		checkTime = "19:00"
	}
	struggleTime := addOneHour(checkTime)

	if err := a.sched.Schedule(scheduler.JobSpec{
		Name:       "checkin_" + userID,
		DailyTimes: []string{checkTime},
		Data:       map[string]any{"user_id": userID},
		Callback:   a.checkinCallback,
	}); err != nil {
		return err
	}
	return a.sched.Schedule(scheduler.JobSpec{
		Name:       "struggle_" + userID,
		DailyTimes: []string{struggleTime},
		Data:       map[string]any{"user_id": userID},
		Callback:   a.struggleCallback,
	})
}

func addOneHour(hhmm string) string {
	h, m := ParseHHMM(hhmm, "19:00")
	h = (h + 1) % 24
	return fmt.Sprintf("%02d:%02d", h, m)
}

// checkinCallback fires the per-user daily check-in job (spec §4.9).
func (a *Scheduler) checkinCallback(ctx context.Context, tok *scheduler.CancelToken, data map[string]any) error {
	userID, _ := data["user_id"].(string)
	if userID == "" {
		return coreerrors.NewInvalidScheduleSpec("checkin", "missing user_id in job data")
	}

	if IsQuietHours(a.clk.Now(), a.quiet.Start, a.quiet.End) {
		return nil
	}
	if tok.Cancelled() {
		return coreerrors.ErrCancelled
	}

	trackers, err := a.store.ActiveTrackersForUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(trackers) == 0 {
		return nil
	}

	profile, found, err := a.store.AccountabilityProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return coreerrors.NewNotFound("AccountabilityProfile", userID)
	}

	var names []string
	var actionRows [][]dispatch.InlineAction
	for _, t := range trackers {
		if tok.Cancelled() {
			return coreerrors.ErrCancelled
		}
		agg, checkedIn, err := a.loadAggregate(ctx, t)
		if err != nil {
			return err
		}
		if checkedIn {
			continue
		}
		streak := agg.ComputeStreak()

		kind := response.EventCheckin
		if streak > 0 {
			kind = response.EventCheckinWithStreak
		}
		rendered := response.Generate(kind, profile.Personality, profile.VoiceOverride, profile.CelebrationStyle, response.Context{
			TrackerName: t.Name, Streak: streak, Greeting: greeting(a.clk.Now()),
		})
		names = append(names, rendered.Text)
		actionRows = append(actionRows, []dispatch.InlineAction{
			{Label: "Done", Token: "checkin_done:" + t.ID},
			{Label: "Skip", Token: "checkin_skip:" + t.ID},
		})
	}

	if len(names) == 0 {
		return nil
	}

	actions, err := dispatch.InlineActions(actionRows...)
	if err != nil {
		return err
	}
	body := strings.Join(names, "\n\n")
	return a.port.Deliver(ctx, dispatch.Text(userID, body, actions))
}

// struggleCallback fires the per-user daily struggle-detection job
// (spec §4.9).
func (a *Scheduler) struggleCallback(ctx context.Context, tok *scheduler.CancelToken, data map[string]any) error {
	userID, _ := data["user_id"].(string)
	if userID == "" {
		return coreerrors.NewInvalidScheduleSpec("struggle", "missing user_id in job data")
	}

	profile, found, err := a.store.AccountabilityProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return coreerrors.NewNotFound("AccountabilityProfile", userID)
	}
	threshold := profile.StruggleThreshold
	if threshold <= 0 {
		threshold = 3
	}

	trackers, err := a.store.ActiveTrackersForUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, t := range trackers {
		if tok.Cancelled() {
			return coreerrors.ErrCancelled
		}
		agg, _, err := a.loadAggregate(ctx, t)
		if err != nil {
			return err
		}
		misses := agg.CountConsecutiveMisses()
		if misses < threshold {
			continue
		}
		rendered := response.Generate(response.EventStruggle, profile.Personality, profile.VoiceOverride, profile.CelebrationStyle, response.Context{
			TrackerName: t.Name, ConsecutiveMisses: misses,
		})
		if err := a.port.Deliver(ctx, dispatch.Text(userID, rendered.Text, nil)); err != nil {
			return err
		}
	}
	return nil
}

// HandleAction applies a done/skip user action, persists the pending
// check-in, and fires a celebration event when the new streak lands
// on a milestone (spec §4.9).
func (a *Scheduler) HandleAction(ctx context.Context, trackerID string, completed bool) error {
	t, err := a.store.TrackerByID(ctx, trackerID)
	if err != nil {
		return err
	}
	agg, _, err := a.loadAggregate(ctx, t)
	if err != nil {
		return err
	}

	today := a.clk.Today()
	var ciErr error
	if completed {
		_, ciErr = agg.MarkCompleted(today)
	} else {
		_, ciErr = agg.Skip(today)
	}
	if ciErr != nil {
		return ciErr
	}

	for _, ci := range agg.PendingCheckIns() {
		if err := a.store.SaveCheckIn(ctx, ci); err != nil {
			return err
		}
	}

	if !completed {
		return nil
	}

	streak := agg.ComputeStreak()
	if !response.IsMilestone(streak) {
		return nil
	}

	profile, found, err := a.store.AccountabilityProfile(ctx, t.Owner)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	rendered := response.Generate(response.EventCelebration, profile.Personality, profile.VoiceOverride, profile.CelebrationStyle, response.Context{
		TrackerName: t.Name, Milestone: streak,
	})
	// Milestone celebrations carry a voice payload (spec §8 scenario
	// 3); the audio bytes themselves come from an external
	// synthesizer and are nil here.
	return a.port.Deliver(ctx, dispatch.Voice(t.Owner, rendered.Text, nil, nil))
}

func (a *Scheduler) loadAggregate(ctx context.Context, t model.Tracker) (*tracker.Aggregate, bool, error) {
	checkIns, err := a.store.AllCheckInsForTracker(ctx, t.Owner, t.ID)
	if err != nil {
		return nil, false, err
	}
	agg, err := tracker.New(a.clk, t, checkIns)
	if err != nil {
		return nil, false, err
	}

	today := a.clk.Today()
	checkedIn := false
	for _, ci := range checkIns {
		if sameDay(ci.CreatedAt, today) {
			checkedIn = true
			break
		}
	}
	return agg, checkedIn, nil
}

func sameDay(t, day time.Time) bool {
	return t.Year() == day.Year() && t.Month() == day.Month() && t.Day() == day.Day()
}

func greeting(now time.Time) string {
	switch {
	case now.Hour() < 12:
		return "Good morning"
	case now.Hour() < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}
