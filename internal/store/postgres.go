package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
	"github.com/glebis/telegram-agent-sub002/internal/model"
)

// Postgres is the sqlx-backed Store implementation. The core assumes
// a validated schema (migrations are an outer-layer concern, spec §6).
type Postgres struct {
	db *sqlx.DB
}

// Open connects to Postgres via lib/pq and wraps the handle in sqlx.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("connect postgres: %w", err))
	}
	return &Postgres{db: db}, nil
}

// NewFromDB wraps an already-open sqlx.DB (used by tests with
// DATA-DOG/go-sqlmock).
func NewFromDB(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) ActiveTrackersForUser(ctx context.Context, userID string) ([]model.Tracker, error) {
	var rows []trackerRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT id, owner, type, name, frequency, check_time, active, created_at
		FROM trackers WHERE owner = $1 AND active = true ORDER BY created_at`, userID)
	if err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("active trackers for user: %w", err))
	}
	out := make([]model.Tracker, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (p *Postgres) TrackerByID(ctx context.Context, id string) (model.Tracker, error) {
	var r trackerRow
	err := p.db.GetContext(ctx, &r, `
		SELECT id, owner, type, name, frequency, check_time, active, created_at
		FROM trackers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tracker{}, coreerrors.NewNotFound("Tracker", id)
	}
	if err != nil {
		return model.Tracker{}, coreerrors.NewTransient(fmt.Errorf("tracker by id: %w", err))
	}
	return r.toModel(), nil
}

func (p *Postgres) SaveTracker(ctx context.Context, t model.Tracker) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO trackers (id, owner, type, name, frequency, check_time, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			type=EXCLUDED.type, name=EXCLUDED.name, frequency=EXCLUDED.frequency,
			check_time=EXCLUDED.check_time, active=EXCLUDED.active`,
		t.ID, t.Owner, t.Type, t.Name, t.Frequency, t.CheckTime, t.Active, t.CreatedAt)
	if err != nil {
		return coreerrors.NewTransient(fmt.Errorf("save tracker: %w", err))
	}
	return nil
}

func (p *Postgres) CompletedCheckInsForTracker(ctx context.Context, userID, trackerID string) ([]model.CheckIn, error) {
	var rows []checkInRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT id, tracker_id, owner, status, created_at, note
		FROM check_ins WHERE owner = $1 AND tracker_id = $2 AND status = 'completed'
		ORDER BY created_at DESC`, userID, trackerID)
	if err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("completed check-ins: %w", err))
	}
	return toCheckIns(rows), nil
}

func (p *Postgres) AllCheckInsForTracker(ctx context.Context, userID, trackerID string) ([]model.CheckIn, error) {
	var rows []checkInRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT id, tracker_id, owner, status, created_at, note
		FROM check_ins WHERE owner = $1 AND tracker_id = $2
		ORDER BY created_at DESC`, userID, trackerID)
	if err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("all check-ins: %w", err))
	}
	return toCheckIns(rows), nil
}

func (p *Postgres) SaveCheckIn(ctx context.Context, ci model.CheckIn) error {
	if ci.ID == "" {
		ci.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO check_ins (id, tracker_id, owner, status, created_at, note)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		ci.ID, ci.TrackerID, ci.Owner, ci.Status, ci.CreatedAt, ci.Note)
	if err != nil {
		return coreerrors.NewTransient(fmt.Errorf("save check-in: %w", err))
	}
	return nil
}

func (p *Postgres) DeleteCheckInsOlderThan(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM check_ins WHERE owner = $1 AND created_at < $2`, userID, cutoff)
	if err != nil {
		return 0, coreerrors.NewTransient(fmt.Errorf("delete old check-ins: %w", err))
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (p *Postgres) CardByNotePath(ctx context.Context, path string) (model.SRSCard, bool, error) {
	var r cardRow
	err := p.db.GetContext(ctx, &r, `
		SELECT id, note_path, note_type, title, srs_enabled, next_review_date,
		       last_review_date, interval_days, ease_factor, repetitions, is_due, total_reviews
		FROM srs_cards WHERE note_path = $1`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SRSCard{}, false, nil
	}
	if err != nil {
		return model.SRSCard{}, false, coreerrors.NewTransient(fmt.Errorf("card by note path: %w", err))
	}
	return r.toModel(), true, nil
}

func (p *Postgres) UpsertCard(ctx context.Context, card model.SRSCard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO srs_cards (id, note_path, note_type, title, srs_enabled, next_review_date,
			last_review_date, interval_days, ease_factor, repetitions, is_due, total_reviews)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (note_path) DO UPDATE SET
			note_type=EXCLUDED.note_type, title=EXCLUDED.title, srs_enabled=EXCLUDED.srs_enabled,
			next_review_date=EXCLUDED.next_review_date, last_review_date=EXCLUDED.last_review_date,
			interval_days=EXCLUDED.interval_days, ease_factor=EXCLUDED.ease_factor,
			repetitions=EXCLUDED.repetitions, is_due=EXCLUDED.is_due, total_reviews=EXCLUDED.total_reviews`,
		card.ID, card.NotePath, card.NoteType, card.Title, card.SRSEnabled, card.NextReviewDate,
		card.LastReviewDate, card.IntervalDays, card.EaseFactor, card.Repetitions, card.IsDue, card.TotalReviews)
	if err != nil {
		return coreerrors.NewTransient(fmt.Errorf("upsert card: %w", err))
	}
	return nil
}

func (p *Postgres) DueCards(ctx context.Context, limit int, noteType string) ([]model.SRSCard, error) {
	query := `
		SELECT id, note_path, note_type, title, srs_enabled, next_review_date,
		       last_review_date, interval_days, ease_factor, repetitions, is_due, total_reviews
		FROM srs_cards WHERE srs_enabled = true AND is_due = true`
	args := []interface{}{}
	if noteType != "" {
		query += " AND note_type = ?"
		args = append(args, noteType)
	}
	query += " ORDER BY next_review_date ASC LIMIT ?"
	args = append(args, limit)

	query = p.db.Rebind(query)
	var rows []cardRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("due cards: %w", err))
	}
	out := make([]model.SRSCard, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// RateCard commits the card update and the review-history insert in
// one transaction, per spec §4.5.
func (p *Postgres) RateCard(ctx context.Context, card model.SRSCard, history model.ReviewHistory) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return coreerrors.NewTransient(fmt.Errorf("begin rate tx: %w", err))
	}
	defer tx.Rollback()

	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO review_history (id, card_id, rating, interval_before, interval_after,
			ease_before, ease_after, reviewed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		history.ID, history.CardID, history.Rating, history.IntervalBefore, history.IntervalAfter,
		history.EaseBefore, history.EaseAfter, history.ReviewedAt); err != nil {
		return coreerrors.NewTransient(fmt.Errorf("insert review history: %w", err))
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE srs_cards SET next_review_date=$1, last_review_date=$2, interval_days=$3,
			ease_factor=$4, repetitions=$5, is_due=$6, total_reviews=$7
		WHERE id = $8`,
		card.NextReviewDate, card.LastReviewDate, card.IntervalDays, card.EaseFactor,
		card.Repetitions, card.IsDue, card.TotalReviews, card.ID); err != nil {
		return coreerrors.NewTransient(fmt.Errorf("update card: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return coreerrors.NewTransient(fmt.Errorf("commit rate tx: %w", err))
	}
	return nil
}

func (p *Postgres) AccountabilityProfile(ctx context.Context, userID string) (model.AccountabilityProfile, bool, error) {
	var r profileRow
	err := p.db.GetContext(ctx, &r, `
		SELECT user_id, personality, check_time, struggle_threshold, celebration_style, voice_override
		FROM accountability_profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccountabilityProfile{}, false, nil
	}
	if err != nil {
		return model.AccountabilityProfile{}, false, coreerrors.NewTransient(fmt.Errorf("accountability profile: %w", err))
	}
	return r.toModel(), true, nil
}

func (p *Postgres) UsersWithAccountabilityProfile(ctx context.Context) ([]model.AccountabilityProfile, error) {
	var rows []profileRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT user_id, personality, check_time, struggle_threshold, celebration_style, voice_override
		FROM accountability_profiles`)
	if err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("users with accountability profile: %w", err))
	}
	out := make([]model.AccountabilityProfile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (p *Postgres) LifeWeeksSettings(ctx context.Context, userID string) (model.LifeWeeksSettings, bool, error) {
	var r lifeWeeksRow
	err := p.db.GetContext(ctx, &r, `
		SELECT user_id, enabled, date_of_birth, time_of_day, weekday, destination, custom_path
		FROM life_weeks_settings WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LifeWeeksSettings{}, false, nil
	}
	if err != nil {
		return model.LifeWeeksSettings{}, false, coreerrors.NewTransient(fmt.Errorf("life weeks settings: %w", err))
	}
	return r.toModel(), true, nil
}

func (p *Postgres) UsersWithLifeWeeksEnabled(ctx context.Context) ([]model.LifeWeeksSettings, error) {
	var rows []lifeWeeksRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT user_id, enabled, date_of_birth, time_of_day, weekday, destination, custom_path
		FROM life_weeks_settings WHERE enabled = true`)
	if err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("users with life weeks enabled: %w", err))
	}
	out := make([]model.LifeWeeksSettings, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (p *Postgres) PrivacySettings(ctx context.Context, userID string) (model.PrivacySettings, bool, error) {
	var r privacyRow
	err := p.db.GetContext(ctx, &r, `
		SELECT user_id, retention, consent_health_data, tts_provider_override, stt_provider_override
		FROM privacy_settings WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PrivacySettings{}, false, nil
	}
	if err != nil {
		return model.PrivacySettings{}, false, coreerrors.NewTransient(fmt.Errorf("privacy settings: %w", err))
	}
	return r.toModel(), true, nil
}

func (p *Postgres) UsersWithRetentionLessThanForever(ctx context.Context) ([]model.PrivacySettings, error) {
	var rows []privacyRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT user_id, retention, consent_health_data, tts_provider_override, stt_provider_override
		FROM privacy_settings WHERE retention <> 'forever'`)
	if err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("users with bounded retention: %w", err))
	}
	out := make([]model.PrivacySettings, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

type chatRow struct {
	ChatPK         int64  `db:"chat_pk"`
	ExternalChatID string `db:"external_chat_id"`
}

// ChatsForUser lists every chat a user participates in, in both ID
// spaces, so the retention sweep can scope its two differently-keyed
// deletes per user.
func (p *Postgres) ChatsForUser(ctx context.Context, userID string) ([]model.ChatRef, error) {
	var rows []chatRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT chat_pk, external_chat_id FROM chats WHERE owner_user_id = $1`, userID)
	if err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("chats for user: %w", err))
	}
	out := make([]model.ChatRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ChatRef{ChatPK: r.ChatPK, ExternalChatID: r.ExternalChatID})
	}
	return out, nil
}

// DeleteOldMessagesByChatPK joins Message -> Chat on the database
// primary key, per spec §4.13's ID-space hazard fix.
func (p *Postgres) DeleteOldMessagesByChatPK(ctx context.Context, chatPK int64, cutoff time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM messages WHERE chat_pk = $1 AND created_at < $2`, chatPK, cutoff)
	if err != nil {
		return 0, coreerrors.NewTransient(fmt.Errorf("delete old messages: %w", err))
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteOldPollResponsesByExternalChatID joins PollResponse -> Chat on
// the external chat identifier, distinct from the primary-key join
// above (spec §4.13/§6).
func (p *Postgres) DeleteOldPollResponsesByExternalChatID(ctx context.Context, externalChatID string, cutoff time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM poll_responses WHERE external_chat_id = $1 AND created_at < $2`, externalChatID, cutoff)
	if err != nil {
		return 0, coreerrors.NewTransient(fmt.Errorf("delete old poll responses: %w", err))
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (p *Postgres) EraseUser(ctx context.Context, userID string) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return coreerrors.NewTransient(fmt.Errorf("begin erase tx: %w", err))
	}
	defer tx.Rollback()

	// SRS cards are vault-shared, not user-owned (spec §3), so they and
	// their review history are left untouched by erasure.
	stmts := []string{
		`DELETE FROM check_ins WHERE owner = $1`,
		`DELETE FROM trackers WHERE owner = $1`,
		`DELETE FROM privacy_settings WHERE user_id = $1`,
		`DELETE FROM accountability_profiles WHERE user_id = $1`,
		`DELETE FROM life_weeks_settings WHERE user_id = $1`,
		`DELETE FROM users WHERE id = $1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
			return coreerrors.NewTransient(fmt.Errorf("erase user cascade: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return coreerrors.NewTransient(fmt.Errorf("commit erase tx: %w", err))
	}
	return nil
}

func toCheckIns(rows []checkInRow) []model.CheckIn {
	out := make([]model.CheckIn, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
