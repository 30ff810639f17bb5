package accountability

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/glebis/telegram-agent-sub002/internal/clock"
	"github.com/glebis/telegram-agent-sub002/internal/model"
	"github.com/glebis/telegram-agent-sub002/internal/scheduler"
	"github.com/glebis/telegram-agent-sub002/internal/srs"
	"github.com/glebis/telegram-agent-sub002/internal/store"
	"github.com/glebis/telegram-agent-sub002/internal/vault"
)

// baseT is the fixed reference instant every end-to-end scenario below
// is anchored on (spec §8: "fixed clock T = 2026-02-12 19:00:00 +00:00").
var baseT = time.Date(2026, 2, 12, 19, 0, 0, 0, time.UTC)

// schedulerAt builds a fresh Scheduler pinned at now, sharing mem so a
// scenario can observe state written by an earlier step at an earlier
// "now" (mirrors how a real process re-enters the callback on every
// fire rather than holding one long-lived clock).
func schedulerAt(mem *store.Memory, port *fakePort, now time.Time) *Scheduler {
	clk := clock.NewFixed(now)
	sch := scheduler.New(clk, nil)
	return New(mem, sch, port, clk, nil, DefaultQuietHours())
}

// Scenario 1: check-in fires and records (spec §8 scenario 1).
func TestEndToEndScenario1CheckinFiresAndRecordsNoStateChange(t *testing.T) {
	mem := store.NewMemory()
	port := &fakePort{}
	mem.SeedTracker(model.Tracker{ID: "ex42", Owner: "42", Name: "Exercise", Active: true, Frequency: model.FrequencyDaily, CheckTime: "19:00"})
	mem.SeedProfile(model.AccountabilityProfile{UserID: "42", CheckTime: "19:00"})

	acct := schedulerAt(mem, port, baseT)
	err := acct.checkinCallback(context.Background(), noopToken(), map[string]any{"user_id": "42"})
	require.NoError(t, err)

	require.Len(t, port.delivered, 1)
	msg := port.delivered[0]
	require.Contains(t, msg.Text, "Exercise")
	require.Nil(t, msg.Audio)
	require.Len(t, msg.Actions, 1)
	require.Len(t, msg.Actions[0], 2)
	require.Equal(t, "checkin_done:ex42", msg.Actions[0][0].Token)
	require.Equal(t, "checkin_skip:ex42", msg.Actions[0][1].Token)

	checkIns, err := mem.AllCheckInsForTracker(context.Background(), "42", "ex42")
	require.NoError(t, err)
	require.Empty(t, checkIns, "the check-in job only dispatches; it writes no state")
}

// Scenario 2: completion increments streak (spec §8 scenario 2).
func TestEndToEndScenario2CompletionIncrementsStreakNoCelebration(t *testing.T) {
	mem := store.NewMemory()
	port := &fakePort{}
	mem.SeedTracker(model.Tracker{ID: "ex42", Owner: "42", Name: "Exercise", Active: true, Frequency: model.FrequencyDaily, CheckTime: "19:00"})
	mem.SeedProfile(model.AccountabilityProfile{UserID: "42", CheckTime: "19:00"})

	actedAt := baseT.Add(30 * time.Second)
	acct := schedulerAt(mem, port, actedAt)

	err := acct.HandleAction(context.Background(), "ex42", true)
	require.NoError(t, err)

	checkIns, err := mem.AllCheckInsForTracker(context.Background(), "42", "ex42")
	require.NoError(t, err)
	require.Len(t, checkIns, 1)
	require.Equal(t, model.CheckInCompleted, checkIns[0].Status)
	require.True(t, sameDay(checkIns[0].CreatedAt, actedAt))

	agg, _, err := acct.loadAggregate(context.Background(), mustTracker(t, mem, "ex42"))
	require.NoError(t, err)
	require.Equal(t, 1, agg.ComputeStreak())

	require.Empty(t, port.delivered, "1 is not a milestone, so no celebration dispatch fires")
}

// Scenario 3: celebration fires at milestone (spec §8 scenario 3) —
// seven consecutive daily completions; celebrations fire on day three
// and day seven, the two milestones the run reaches.
func TestEndToEndScenario3CelebrationFiresOnSeventhConsecutiveDay(t *testing.T) {
	mem := store.NewMemory()
	port := &fakePort{}
	mem.SeedTracker(model.Tracker{ID: "ex42", Owner: "42", Name: "Exercise", Active: true, Frequency: model.FrequencyDaily, CheckTime: "19:00"})
	mem.SeedProfile(model.AccountabilityProfile{UserID: "42", CheckTime: "19:00"})

	start := baseT.AddDate(0, 0, -6).Add(30 * time.Second)
	for day := 0; day < 7; day++ {
		now := start.AddDate(0, 0, day)
		acct := schedulerAt(mem, port, now)
		require.NoError(t, acct.HandleAction(context.Background(), "ex42", true))
	}

	require.Len(t, port.delivered, 2, "the third and seventh completions should each emit a celebration dispatch")
	require.Contains(t, port.delivered[0].Text, "3")
	require.Contains(t, port.delivered[1].Text, "7")
}

// Scenario 4: struggle alert (spec §8 scenario 4).
func TestEndToEndScenario4StruggleAlertFiresAtThreshold(t *testing.T) {
	mem := store.NewMemory()
	port := &fakePort{}
	mem.SeedTracker(model.Tracker{ID: "ex42", Owner: "42", Name: "Exercise", Active: true, Frequency: model.FrequencyDaily, CheckTime: "19:00"})
	mem.SeedProfile(model.AccountabilityProfile{UserID: "42", CheckTime: "19:00", StruggleThreshold: 3})
	require.NoError(t, mem.SaveCheckIn(context.Background(), model.CheckIn{
		TrackerID: "ex42", Owner: "42", Status: model.CheckInCompleted,
		CreatedAt: time.Date(2026, 2, 8, 19, 0, 0, 0, time.UTC),
	}))

	structAt := baseT.Add(time.Hour)
	acct := schedulerAt(mem, port, structAt)
	err := acct.struggleCallback(context.Background(), noopToken(), map[string]any{"user_id": "42"})
	require.NoError(t, err)

	require.Len(t, port.delivered, 1)

	agg, _, err := acct.loadAggregate(context.Background(), mustTracker(t, mem, "ex42"))
	require.NoError(t, err)
	require.Equal(t, 4, agg.CountConsecutiveMisses())
}

// Scenario 5: quiet-hours gate (spec §8 scenario 5).
func TestEndToEndScenario5QuietHoursGatesDispatchWithNoStateChange(t *testing.T) {
	mem := store.NewMemory()
	port := &fakePort{}
	mem.SeedTracker(model.Tracker{ID: "med7", Owner: "7", Name: "Meditation", Active: true, Frequency: model.FrequencyDaily, CheckTime: "23:30"})
	mem.SeedProfile(model.AccountabilityProfile{UserID: "7", CheckTime: "23:30"})

	gated := time.Date(2026, 2, 12, 23, 30, 0, 0, time.UTC)
	acct := schedulerAt(mem, port, gated)

	err := acct.checkinCallback(context.Background(), noopToken(), map[string]any{"user_id": "7"})
	require.NoError(t, err)
	require.Empty(t, port.delivered)

	checkIns, err := mem.AllCheckInsForTracker(context.Background(), "7", "med7")
	require.NoError(t, err)
	require.Empty(t, checkIns)
}

// Scenario 6: SM-2 rating (spec §8 scenario 6). A first success
// (reps=0) produces interval=1 per CalculateNextReview and the
// original SM-2 source (srs_algorithm.py: "if repetitions == 0:
// new_interval = 1"); interval=3 only applies starting from reps=1.
func TestEndToEndScenario6SM2RatingUpdatesCardAndVaultTogether(t *testing.T) {
	dir := t.TempDir()
	v := vault.New(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "card.md"), []byte("---\nsrs_enabled: true\n---\nFront matter card.\n"), 0644))

	mem := store.NewMemory()
	today := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	require.NoError(t, mem.UpsertCard(context.Background(), model.SRSCard{
		ID: "c1", NotePath: "card.md", NoteType: model.NoteOther,
		SRSEnabled: true, EaseFactor: 2.5, IntervalDays: 1, Repetitions: 0,
		NextReviewDate: today, IsDue: true,
	}))

	clk := clock.NewFixed(baseT)
	engine := srs.New(mem, v, clk, srs.SimpleBacklinkExtractor{})

	updated, err := engine.Rate(context.Background(), "card.md", model.RatingGood)
	require.NoError(t, err)

	require.Equal(t, 1, updated.Repetitions)
	require.Equal(t, 1, updated.IntervalDays)
	require.InDelta(t, 2.5, updated.EaseFactor, 0.2)
	require.Equal(t, today.AddDate(0, 0, 1), updated.NextReviewDate)

	meta, _, err := v.Read("card.md")
	require.NoError(t, err)
	nextReview, ok := meta.Get("srs_next_review")
	require.True(t, ok)
	require.Equal(t, updated.NextReviewDate.Format("2006-01-02"), nextReview)

	history := mem.ReviewHistoryForCard("c1")
	require.Len(t, history, 1)
	require.Equal(t, model.RatingGood, history[0].Rating)
	require.Equal(t, 1, history[0].IntervalBefore)
	require.Equal(t, 1, history[0].IntervalAfter)
}

func mustTracker(t *testing.T, mem *store.Memory, id string) model.Tracker {
	t.Helper()
	tr, err := mem.TrackerByID(context.Background(), id)
	require.NoError(t, err)
	return tr
}
