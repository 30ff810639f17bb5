package store

import (
	"time"

	"github.com/glebis/telegram-agent-sub002/internal/model"
)

func cardFixture() model.SRSCard {
	return model.SRSCard{
		ID:             "c1",
		NotePath:       "notes/a.md",
		NoteType:       model.NoteIdea,
		SRSEnabled:     true,
		NextReviewDate: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		IntervalDays:   3,
		EaseFactor:     2.5,
		Repetitions:    1,
	}
}

func historyFixture() model.ReviewHistory {
	return model.ReviewHistory{
		CardID:         "c1",
		Rating:         model.RatingGood,
		IntervalBefore: 1,
		IntervalAfter:  3,
		EaseBefore:     2.5,
		EaseAfter:      2.5,
		ReviewedAt:     time.Date(2026, 2, 12, 19, 0, 0, 0, time.UTC),
	}
}
