// Package lifeweeks implements the LifeWeeksScheduler (C11, spec
// §4.11): one DAILY job firing at four coarse times that enumerates
// users with life-weeks visualisation enabled and emits a weekly grid
// image for whoever is due. Grid geometry and overlay stats are
// ported from original_source/src/services/life_weeks_image.py;
// actual pixel rendering is delegated to an injected ImageRenderer.
package lifeweeks

import (
	"context"
	"fmt"
	"time"

	"github.com/glebis/telegram-agent-sub002/internal/clock"
	"github.com/glebis/telegram-agent-sub002/internal/dispatch"
	"github.com/glebis/telegram-agent-sub002/internal/model"
	"github.com/glebis/telegram-agent-sub002/internal/scheduler"
	"github.com/glebis/telegram-agent-sub002/internal/store"
	"github.com/glebis/telegram-agent-sub002/pkg/logger"
)

// Grid geometry constants, ported verbatim from life_weeks_image.py.
const (
	WeeksPerYear = 52
	MaxYears     = 90
	TotalCells   = WeeksPerYear * MaxYears
)

// DailyFireTimes are the four coarse times the job fires at, chosen
// to catch every user's configured hour regardless of time zone.
var DailyFireTimes = []string{"06:00", "09:00", "12:00", "18:00"}

// Grid is the pure computed visualisation state; an ImageRenderer
// turns it into pixels.
type Grid struct {
	WeeksLived  int
	YearsLived  float64
	Percentage  float64
	FilledCells int
	TotalCells  int
}

// CalculateWeeksLived returns the complete number of weeks between
// dateOfBirth and today, floored at zero.
func CalculateWeeksLived(dateOfBirth, today time.Time) int {
	days := today.Sub(dateOfBirth).Hours() / 24
	weeks := int(days) / 7
	if weeks < 0 {
		weeks = 0
	}
	return weeks
}

// BuildGrid computes the grid-fill and overlay statistics for a given
// weeks-lived count (spec §4.11: "52×90 grid... plus a text overlay
// of week count, age in years, and percentage of a 90-year reference
// lifespan").
func BuildGrid(weeksLived int, ageYears float64) Grid {
	filled := weeksLived
	if filled > TotalCells {
		filled = TotalCells
	}
	return Grid{
		WeeksLived:  weeksLived,
		YearsLived:  ageYears,
		Percentage:  float64(filled) / float64(TotalCells) * 100,
		FilledCells: filled,
		TotalCells:  TotalCells,
	}
}

// RenderTarget enumerates where a user's reply to a visualisation
// should be routed, carried through to track_reply_context.
type RenderTarget string

const (
	TargetDailyNote     RenderTarget = "daily_note"
	TargetLifeWeeksNote RenderTarget = "life_weeks_note"
	TargetCustomPath    RenderTarget = "custom_path"
)

func renderTargetFor(dest model.LifeWeeksDestination) RenderTarget {
	switch dest {
	case model.DestinationDailyNote:
		return TargetDailyNote
	case model.DestinationCustomPath:
		return TargetCustomPath
	default:
		return TargetLifeWeeksNote
	}
}

// ImageRenderer is the injected port that turns a Grid into
// transport-ready image bytes; actual drawing is an external
// collaborator (spec §1 non-goal: the core only computes the grid and
// overlay text).
type ImageRenderer interface {
	Render(ctx context.Context, g Grid) ([]byte, error)
}

// ReplyTracker records where a delivered visualisation's reply should
// be routed (the track_reply_context hook).
type ReplyTracker interface {
	TrackReplyContext(ctx context.Context, userID string, weeksLived int, target RenderTarget, customPath string) error
}

// Scheduler composes C2/C7/C12 behind the one DAILY life-weeks job.
type Scheduler struct {
	store    store.Store
	sched    *scheduler.Scheduler
	port     dispatch.Port
	renderer ImageRenderer
	reply    ReplyTracker
	clk      clock.Clock
	log      *logger.Logger
}

// New constructs the LifeWeeksScheduler.
func New(s store.Store, sched *scheduler.Scheduler, port dispatch.Port, renderer ImageRenderer, reply ReplyTracker, clk clock.Clock, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("life-weeks")
	}
	return &Scheduler{store: s, sched: sched, port: port, renderer: renderer, reply: reply, clk: clk, log: log}
}

// RegisterJob installs the single DAILY job firing at the four coarse
// times (spec §4.11).
func (s *Scheduler) RegisterJob() error {
	return s.sched.Schedule(scheduler.JobSpec{
		Name:       "life_weeks_notification",
		DailyTimes: DailyFireTimes,
		Callback:   s.callback,
	})
}

func (s *Scheduler) callback(ctx context.Context, tok *scheduler.CancelToken, data map[string]any) error {
	settings, err := s.store.UsersWithLifeWeeksEnabled(ctx)
	if err != nil {
		return err
	}
	now := s.clk.Now()

	for _, u := range settings {
		if tok.Cancelled() {
			return nil
		}
		if !s.isEligibleNow(u, now) {
			continue
		}
		if err := s.notifyUser(ctx, u, now); err != nil {
			s.log.WithField("user_id", u.UserID).WithError(err).Warn("life weeks notification failed")
			continue
		}
	}
	return nil
}

// isEligibleNow reports whether u's scheduled weekday matches today
// and the configured hour has already been reached (spec §4.11:
// "filters to those whose scheduled weekday equals today and whose
// configured hour has been reached").
func (s *Scheduler) isEligibleNow(u model.LifeWeeksSettings, now time.Time) bool {
	if now.Weekday() != u.Weekday {
		return false
	}
	hour, minute := parseHHMM(u.TimeOfDay)
	if now.Hour() < hour {
		return false
	}
	if now.Hour() == hour && now.Minute() < minute {
		return false
	}
	return true
}

func (s *Scheduler) notifyUser(ctx context.Context, u model.LifeWeeksSettings, now time.Time) error {
	weeksLived := CalculateWeeksLived(u.DateOfBirth, now)
	ageYears := now.Sub(u.DateOfBirth).Hours() / 24 / 365.25
	grid := BuildGrid(weeksLived, ageYears)

	img, err := s.renderer.Render(ctx, grid)
	if err != nil {
		return fmt.Errorf("render life weeks grid for %s: %w", u.UserID, err)
	}

	caption := fmt.Sprintf("Week %d of your life\n\nReply to this message with your thoughts.", weeksLived)
	if err := s.port.Deliver(ctx, dispatch.Photo(u.UserID, img, caption, nil)); err != nil {
		return err
	}

	if s.reply == nil {
		return nil
	}
	target := renderTargetFor(u.Destination)
	return s.reply.TrackReplyContext(ctx, u.UserID, weeksLived, target, u.CustomPath)
}

func parseHHMM(s string) (hour, minute int) {
	if s == "" {
		return 0, 0
	}
	var h, m int
	if n, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || n != 2 {
		return 0, 0
	}
	return h, m
}
