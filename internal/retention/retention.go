// Package retention implements the RetentionSweeper (C13, spec
// §4.13): a daily INTERVAL job that deletes Message, PollResponse and
// CheckIn rows past each user's configured retention window. Tracker
// rows are never touched here — only explicit user action removes
// them.
package retention

import (
	"context"
	"time"

	"github.com/glebis/telegram-agent-sub002/internal/clock"
	"github.com/glebis/telegram-agent-sub002/internal/model"
	"github.com/glebis/telegram-agent-sub002/internal/scheduler"
	"github.com/glebis/telegram-agent-sub002/internal/store"
	"github.com/glebis/telegram-agent-sub002/pkg/logger"
)

// windows maps each bounded Retention value to its duration. forever
// is handled separately by UsersWithRetentionLessThanForever, which
// never returns it.
var windows = map[model.Retention]time.Duration{
	model.Retention1Month:  30 * 24 * time.Hour,
	model.Retention6Months: 180 * 24 * time.Hour,
	model.Retention1Year:   365 * 24 * time.Hour,
}

// Sweeper composes C2/C7 behind the one daily retention job.
type Sweeper struct {
	store store.Store
	sched *scheduler.Scheduler
	clk   clock.Clock
	log   *logger.Logger
}

// New constructs the RetentionSweeper.
func New(s store.Store, sched *scheduler.Scheduler, clk clock.Clock, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("retention")
	}
	return &Sweeper{store: s, sched: sched, clk: clk, log: log}
}

// RegisterJob installs the daily INTERVAL sweep job.
func (s *Sweeper) RegisterJob() error {
	return s.sched.Schedule(scheduler.JobSpec{
		Name:            "retention_sweep",
		IntervalSeconds: 24 * 60 * 60,
		Callback:        s.callback,
	})
}

func (s *Sweeper) callback(ctx context.Context, tok *scheduler.CancelToken, data map[string]any) error {
	users, err := s.store.UsersWithRetentionLessThanForever(ctx)
	if err != nil {
		return err
	}
	now := s.clk.Now()

	for _, p := range users {
		if tok.Cancelled() {
			return nil
		}
		if err := s.sweepUser(ctx, p, now); err != nil {
			s.log.WithField("user_id", p.UserID).WithError(err).Warn("retention sweep failed for user")
		}
	}
	return nil
}

func (s *Sweeper) sweepUser(ctx context.Context, p model.PrivacySettings, now time.Time) error {
	window, ok := windows[p.Retention]
	if !ok {
		return nil
	}
	cutoff := now.Add(-window)

	if _, err := s.store.DeleteCheckInsOlderThan(ctx, p.UserID, cutoff); err != nil {
		return err
	}

	chats, err := s.store.ChatsForUser(ctx, p.UserID)
	if err != nil {
		return err
	}
	for _, chat := range chats {
		if _, err := s.store.DeleteOldMessagesByChatPK(ctx, chat.ChatPK, cutoff); err != nil {
			return err
		}
		if _, err := s.store.DeleteOldPollResponsesByExternalChatID(ctx, chat.ExternalChatID, cutoff); err != nil {
			return err
		}
	}
	return nil
}
