// Package srsschedule implements the SRSScheduler (C10, spec §4.10/§6):
// one INTERVAL job that recomputes is_due just after midnight and one
// DAILY job that dispatches the morning due-card batch with inline
// rating actions.
package srsschedule

import (
	"context"
	"fmt"
	"time"

	"github.com/glebis/telegram-agent-sub002/internal/clock"
	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
	"github.com/glebis/telegram-agent-sub002/internal/dispatch"
	"github.com/glebis/telegram-agent-sub002/internal/model"
	"github.com/glebis/telegram-agent-sub002/internal/scheduler"
	"github.com/glebis/telegram-agent-sub002/internal/srs"
	"github.com/glebis/telegram-agent-sub002/internal/vault"
	"github.com/glebis/telegram-agent-sub002/pkg/logger"
)

// DefaultBatchSize and MaxBatchSize implement spec §6's
// srs.morning_batch.size (default 5) and .max_size (hard cap 20).
const (
	DefaultBatchSize = 5
	MaxBatchSize     = 20
)

// RatingActions is the fixed inline-action set on a due-card dispatch
// (spec §4.10), plus a card identifier so the token stays within the
// 64-byte budget (the note path is re-derived server-side).
var RatingActions = []string{"srs_again", "srs_hard", "srs_good", "srs_easy", "srs_develop"}

// Scheduler composes C5/C7/C12 behind SRSScheduler's two jobs.
type Scheduler struct {
	engine    *srs.Engine
	vault     *vault.Vault
	sched     *scheduler.Scheduler
	port      dispatch.Port
	clk       clock.Clock
	log       *logger.Logger
	batchSize int
}

// New constructs the SRSScheduler. batchSize is clamped to
// [1, MaxBatchSize]; zero selects DefaultBatchSize.
func New(engine *srs.Engine, v *vault.Vault, sched *scheduler.Scheduler, port dispatch.Port, clk clock.Clock, log *logger.Logger, batchSize int) *Scheduler {
	if log == nil {
		log = logger.NewDefault("srs-scheduler")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Scheduler{engine: engine, vault: v, sched: sched, port: port, clk: clk, log: log, batchSize: batchSize}
}

// RegisterJobs installs the midnight recompute INTERVAL job and the
// morning batch DAILY job. The recompute job first fires at 00:01 UTC
// after registration and every 24 hours from then.
func (s *Scheduler) RegisterJobs(vaultDir, morningTime string) error {
	now := s.clk.Now()
	firstFire := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 1, 0, 0, time.UTC)
	if err := s.sched.Schedule(scheduler.JobSpec{
		Name:              "srs_recompute_due",
		IntervalSeconds:   24 * 60 * 60,
		FirstDelaySeconds: int(firstFire.Sub(now) / time.Second),
		Data:              map[string]any{"vault_dir": vaultDir},
		Callback:          s.recomputeCallback,
	}); err != nil {
		return err
	}
	return s.sched.Schedule(scheduler.JobSpec{
		Name:       "srs_morning_batch",
		DailyTimes: []string{morningTime},
		Callback:   s.morningBatchCallback,
	})
}

func (s *Scheduler) recomputeCallback(ctx context.Context, tok *scheduler.CancelToken, data map[string]any) error {
	vaultDir, _ := data["vault_dir"].(string)
	_, err := s.engine.SyncVault(ctx, vaultDir)
	return err
}

func (s *Scheduler) morningBatchCallback(ctx context.Context, tok *scheduler.CancelToken, data map[string]any) error {
	due, err := s.engine.DueCards(ctx, s.batchSize, "")
	if err != nil {
		return err
	}
	for _, card := range due {
		if tok.Cancelled() {
			return coreerrors.ErrCancelled
		}
		actions, err := dispatch.InlineActions([]dispatch.InlineAction{
			{Label: "Again", Token: "srs_again:" + card.ID},
			{Label: "Hard", Token: "srs_hard:" + card.ID},
			{Label: "Good", Token: "srs_good:" + card.ID},
			{Label: "Easy", Token: "srs_easy:" + card.ID},
			{Label: "Develop", Token: "srs_develop:" + card.ID},
		})
		if err != nil {
			return err
		}
		text := fmt.Sprintf("Review: %s", card.Title)
		if err := s.port.Deliver(ctx, dispatch.Text(card.NotePath, text, actions)); err != nil {
			return err
		}
	}
	return nil
}

// Rate applies a rating action (spec §4.10: "On a rating action, C5's
// rate is invoked").
func (s *Scheduler) Rate(ctx context.Context, notePath string, rating model.Rating) (model.SRSCard, error) {
	return s.engine.Rate(ctx, notePath, rating)
}

// DevelopEvent is the payload the "open development session" action
// emits: it carries no side effect on card state (spec §4.10).
type DevelopEvent struct {
	NotePath  string
	Excerpt   string
	Backlinks []string
}

// Develop builds a DevelopEvent for a card, carrying up to five
// backlinks extracted from the note body — a hard cap applied after
// extraction, not a request parameter (spec §12).
func (s *Scheduler) Develop(notePath string, excerptLen int) (DevelopEvent, error) {
	_, body, err := s.vault.Read(notePath)
	if err != nil {
		return DevelopEvent{}, err
	}
	excerpt := body
	if excerptLen > 0 && len(excerpt) > excerptLen {
		excerpt = excerpt[:excerptLen]
	}
	links := s.engine.ExtractBacklinks(body, 5)
	return DevelopEvent{NotePath: notePath, Excerpt: excerpt, Backlinks: links}, nil
}
