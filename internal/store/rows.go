package store

import (
	"database/sql"
	"time"

	"github.com/glebis/telegram-agent-sub002/internal/model"
)

type trackerRow struct {
	ID        string         `db:"id"`
	Owner     string         `db:"owner"`
	Type      string         `db:"type"`
	Name      string         `db:"name"`
	Frequency string         `db:"frequency"`
	CheckTime sql.NullString `db:"check_time"`
	Active    bool           `db:"active"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r trackerRow) toModel() model.Tracker {
	return model.Tracker{
		ID:        r.ID,
		Owner:     r.Owner,
		Type:      model.TrackerType(r.Type),
		Name:      r.Name,
		Frequency: model.Frequency(r.Frequency),
		CheckTime: r.CheckTime.String,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}

type checkInRow struct {
	ID        string         `db:"id"`
	TrackerID string         `db:"tracker_id"`
	Owner     string         `db:"owner"`
	Status    string         `db:"status"`
	CreatedAt time.Time      `db:"created_at"`
	Note      sql.NullString `db:"note"`
}

func (r checkInRow) toModel() model.CheckIn {
	return model.CheckIn{
		ID:        r.ID,
		TrackerID: r.TrackerID,
		Owner:     r.Owner,
		Status:    model.CheckInStatus(r.Status),
		CreatedAt: r.CreatedAt,
		Note:      r.Note.String,
	}
}

type cardRow struct {
	ID             string    `db:"id"`
	NotePath       string    `db:"note_path"`
	NoteType       string    `db:"note_type"`
	Title          string    `db:"title"`
	SRSEnabled     bool      `db:"srs_enabled"`
	NextReviewDate time.Time `db:"next_review_date"`
	LastReviewDate time.Time `db:"last_review_date"`
	IntervalDays   int       `db:"interval_days"`
	EaseFactor     float64   `db:"ease_factor"`
	Repetitions    int       `db:"repetitions"`
	IsDue          bool      `db:"is_due"`
	TotalReviews   int       `db:"total_reviews"`
}

func (r cardRow) toModel() model.SRSCard {
	return model.SRSCard{
		ID:             r.ID,
		NotePath:       r.NotePath,
		NoteType:       model.NoteType(r.NoteType),
		Title:          r.Title,
		SRSEnabled:     r.SRSEnabled,
		NextReviewDate: r.NextReviewDate,
		LastReviewDate: r.LastReviewDate,
		IntervalDays:   r.IntervalDays,
		EaseFactor:     r.EaseFactor,
		Repetitions:    r.Repetitions,
		IsDue:          r.IsDue,
		TotalReviews:   r.TotalReviews,
	}
}

type profileRow struct {
	UserID            string         `db:"user_id"`
	Personality       string         `db:"personality"`
	CheckTime         string         `db:"check_time"`
	StruggleThreshold int            `db:"struggle_threshold"`
	CelebrationStyle  string         `db:"celebration_style"`
	VoiceOverride     sql.NullString `db:"voice_override"`
}

func (r profileRow) toModel() model.AccountabilityProfile {
	return model.AccountabilityProfile{
		UserID:            r.UserID,
		Personality:       model.Personality(r.Personality),
		CheckTime:         r.CheckTime,
		StruggleThreshold: r.StruggleThreshold,
		CelebrationStyle:  model.CelebrationStyle(r.CelebrationStyle),
		VoiceOverride:     r.VoiceOverride.String,
	}
}

type lifeWeeksRow struct {
	UserID      string         `db:"user_id"`
	Enabled     bool           `db:"enabled"`
	DateOfBirth time.Time      `db:"date_of_birth"`
	TimeOfDay   string         `db:"time_of_day"`
	Weekday     int            `db:"weekday"`
	Destination string         `db:"destination"`
	CustomPath  sql.NullString `db:"custom_path"`
}

func (r lifeWeeksRow) toModel() model.LifeWeeksSettings {
	return model.LifeWeeksSettings{
		UserID:      r.UserID,
		Enabled:     r.Enabled,
		DateOfBirth: r.DateOfBirth,
		TimeOfDay:   r.TimeOfDay,
		Weekday:     time.Weekday(r.Weekday),
		Destination: model.LifeWeeksDestination(r.Destination),
		CustomPath:  r.CustomPath.String,
	}
}

type privacyRow struct {
	UserID              string `db:"user_id"`
	Retention           string `db:"retention"`
	ConsentHealthData   bool   `db:"consent_health_data"`
	TTSProviderOverride string `db:"tts_provider_override"`
	STTProviderOverride string `db:"stt_provider_override"`
}

func (r privacyRow) toModel() model.PrivacySettings {
	return model.PrivacySettings{
		UserID:              r.UserID,
		Retention:           model.Retention(r.Retention),
		ConsentHealthData:   r.ConsentHealthData,
		TTSProviderOverride: r.TTSProviderOverride,
		STTProviderOverride: r.STTProviderOverride,
	}
}
