// Package store implements the transactional key-row access layer
// (spec §4.2): a Postgres-backed Store plus the composite operations
// the core's callbacks need. Every write touching two tables commits
// atomically inside one sqlx.Tx; partial writes are forbidden.
package store

import (
	"context"
	"time"

	"github.com/glebis/telegram-agent-sub002/internal/model"
)

// Store is the narrow façade every component in this module depends
// on. It is satisfied by the Postgres-backed implementation in
// postgres.go and by the in-memory Memory fake in memory.go (used by
// callback-level tests that don't need a real database).
type Store interface {
	// Trackers
	ActiveTrackersForUser(ctx context.Context, userID string) ([]model.Tracker, error)
	TrackerByID(ctx context.Context, id string) (model.Tracker, error)
	SaveTracker(ctx context.Context, t model.Tracker) error

	// CheckIns
	CompletedCheckInsForTracker(ctx context.Context, userID, trackerID string) ([]model.CheckIn, error)
	AllCheckInsForTracker(ctx context.Context, userID, trackerID string) ([]model.CheckIn, error)
	SaveCheckIn(ctx context.Context, ci model.CheckIn) error
	DeleteCheckInsOlderThan(ctx context.Context, userID string, cutoff time.Time) (int, error)

	// SRS
	CardByNotePath(ctx context.Context, path string) (model.SRSCard, bool, error)
	UpsertCard(ctx context.Context, card model.SRSCard) error
	DueCards(ctx context.Context, limit int, noteType string) ([]model.SRSCard, error)
	// RateCard commits the card update and review-history append in a
	// single transaction (spec §4.5).
	RateCard(ctx context.Context, card model.SRSCard, history model.ReviewHistory) error

	// Per-user settings
	AccountabilityProfile(ctx context.Context, userID string) (model.AccountabilityProfile, bool, error)
	UsersWithAccountabilityProfile(ctx context.Context) ([]model.AccountabilityProfile, error)
	LifeWeeksSettings(ctx context.Context, userID string) (model.LifeWeeksSettings, bool, error)
	UsersWithLifeWeeksEnabled(ctx context.Context) ([]model.LifeWeeksSettings, error)
	PrivacySettings(ctx context.Context, userID string) (model.PrivacySettings, bool, error)
	UsersWithRetentionLessThanForever(ctx context.Context) ([]model.PrivacySettings, error)

	// Retention (spec §4.13) — two distinct ID spaces by design.
	ChatsForUser(ctx context.Context, userID string) ([]model.ChatRef, error)
	DeleteOldMessagesByChatPK(ctx context.Context, chatPK int64, cutoff time.Time) (int, error)
	DeleteOldPollResponsesByExternalChatID(ctx context.Context, externalChatID string, cutoff time.Time) (int, error)

	// User erasure cascade (spec §3 ownership rules).
	EraseUser(ctx context.Context, userID string) error
}
