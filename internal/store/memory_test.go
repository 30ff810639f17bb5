package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
	"github.com/glebis/telegram-agent-sub002/internal/model"
)

func TestMemoryActiveTrackersForUserFiltersInactive(t *testing.T) {
	m := NewMemory()
	m.SeedTracker(model.Tracker{ID: "t1", Owner: "u1", Active: true, CreatedAt: time.Unix(1, 0)})
	m.SeedTracker(model.Tracker{ID: "t2", Owner: "u1", Active: false, CreatedAt: time.Unix(2, 0)})
	m.SeedTracker(model.Tracker{ID: "t3", Owner: "u2", Active: true, CreatedAt: time.Unix(3, 0)})

	out, err := m.ActiveTrackersForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "t1", out[0].ID)
}

func TestMemoryTrackerByIDNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.TrackerByID(context.Background(), "missing")
	require.True(t, coreerrors.IsNotFound(err))
}

func TestMemoryDeleteCheckInsOlderThanScopesByUser(t *testing.T) {
	m := NewMemory()
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.SaveCheckIn(context.Background(), model.CheckIn{Owner: "u1", TrackerID: "t1", CreatedAt: cutoff.AddDate(0, 0, -10)}))
	require.NoError(t, m.SaveCheckIn(context.Background(), model.CheckIn{Owner: "u2", TrackerID: "t2", CreatedAt: cutoff.AddDate(0, 0, -10)}))
	require.NoError(t, m.SaveCheckIn(context.Background(), model.CheckIn{Owner: "u1", TrackerID: "t1", CreatedAt: cutoff.AddDate(0, 0, 10)}))

	deleted, err := m.DeleteCheckInsOlderThan(context.Background(), "u1", cutoff)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	remaining, err := m.AllCheckInsForTracker(context.Background(), "u1", "t1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)

	otherUser, err := m.AllCheckInsForTracker(context.Background(), "u2", "t2")
	require.NoError(t, err)
	require.Len(t, otherUser, 1)
}

func TestMemoryDueCardsOrderedAndCapped(t *testing.T) {
	m := NewMemory()
	base := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	for i, path := range []string{"b.md", "a.md", "c.md"} {
		require.NoError(t, m.UpsertCard(context.Background(), model.SRSCard{
			NotePath: path, SRSEnabled: true, IsDue: true,
			NextReviewDate: base.AddDate(0, 0, i),
		}))
	}
	out, err := m.DueCards(context.Background(), 2, "")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "b.md", out[0].NotePath)
}

func TestMemoryEraseUserCascades(t *testing.T) {
	m := NewMemory()
	m.SeedTracker(model.Tracker{ID: "t1", Owner: "u1", Active: true})
	require.NoError(t, m.SaveCheckIn(context.Background(), model.CheckIn{Owner: "u1", TrackerID: "t1", CreatedAt: time.Now()}))
	m.SeedProfile(model.AccountabilityProfile{UserID: "u1"})

	require.NoError(t, m.EraseUser(context.Background(), "u1"))

	trackers, _ := m.ActiveTrackersForUser(context.Background(), "u1")
	require.Empty(t, trackers)
	_, found, _ := m.AccountabilityProfile(context.Background(), "u1")
	require.False(t, found)
}

func TestMemoryInjectedErrorClearsAfterOneCall(t *testing.T) {
	m := NewMemory()
	m.ErrorOnNextCall = coreerrors.NewTransient(context.DeadlineExceeded)

	err := m.SaveTracker(context.Background(), model.Tracker{ID: "t1", Owner: "u1"})
	require.True(t, coreerrors.IsTransient(err))

	err = m.SaveTracker(context.Background(), model.Tracker{ID: "t2", Owner: "u1"})
	require.NoError(t, err)
}
