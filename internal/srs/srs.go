// Package srs implements the SM-2 spaced-repetition engine (spec
// §4.5/§8, scenario 6), ported from
// original_source/src/services/srs/srs_algorithm.py and
// srs_sync.py/srs_seed.py.
package srs

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/glebis/telegram-agent-sub002/internal/clock"
	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
	"github.com/glebis/telegram-agent-sub002/internal/model"
	"github.com/glebis/telegram-agent-sub002/internal/store"
	"github.com/glebis/telegram-agent-sub002/internal/vault"
)

const minEaseFactor = 1.3

// BacklinkExtractor pulls backlink targets out of a note's body. The
// default implementation is a simple text match; spec §9 flags its
// behaviour on code-fenced text as an open question left unresolved
// here, not silently "fixed".
type BacklinkExtractor interface {
	ExtractBacklinks(body string) []string
}

// SimpleBacklinkExtractor matches `[[wikilink]]` and
// `[text](path.md)` occurrences. It does not distinguish a link inside
// a code fence or comment from a real one.
type SimpleBacklinkExtractor struct{}

var (
	wikilinkPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	mdlinkPattern   = regexp.MustCompile(`\[[^\]]*\]\(([^)]+\.md)\)`)
)

func (SimpleBacklinkExtractor) ExtractBacklinks(body string) []string {
	var out []string
	for _, m := range wikilinkPattern.FindAllStringSubmatch(body, -1) {
		out = append(out, m[1])
	}
	for _, m := range mdlinkPattern.FindAllStringSubmatch(body, -1) {
		out = append(out, m[1])
	}
	return out
}

// Engine is the SM-2 engine: reschedules cards on rating, selects due
// cards, and keeps Store/Vault synchronised (spec §4.5).
type Engine struct {
	store   store.Store
	vault   *vault.Vault
	clk     clock.Clock
	extract BacklinkExtractor
	rand    *rand.Rand
}

// New constructs an Engine. extractor may be nil to use SimpleBacklinkExtractor.
func New(s store.Store, v *vault.Vault, clk clock.Clock, extractor BacklinkExtractor) *Engine {
	if extractor == nil {
		extractor = SimpleBacklinkExtractor{}
	}
	return &Engine{store: s, vault: v, clk: clk, extract: extractor, rand: rand.New(rand.NewSource(1))}
}

// CalculateNextReview implements the SM-2 variant from spec §4.5.
func CalculateNextReview(rating model.Rating, ease float64, interval, repetitions int) (newInterval int, newEase float64, newReps int) {
	if rating == model.RatingAgain {
		return 1, ease, 0
	}

	if repetitions == 0 {
		newInterval = 1
	} else if repetitions == 1 {
		newInterval = 3
	} else {
		newInterval = int(math.Floor(float64(interval) * ease))
	}

	r := float64(rating)
	adjustment := 0.1 - (3-r)*(0.08+(3-r)*0.02)
	newEase = ease + adjustment
	if newEase < minEaseFactor {
		newEase = minEaseFactor
	}
	newReps = repetitions + 1
	return newInterval, newEase, newReps
}

// Rate runs one SM-2 rating transaction: load, compute, append
// review-history, update the card (is_due=false, total_reviews+=1),
// write the six metadata keys back to the vault file. All of this
// commits or none does (spec §4.5).
func (e *Engine) Rate(ctx context.Context, notePath string, rating model.Rating) (model.SRSCard, error) {
	card, found, err := e.store.CardByNotePath(ctx, notePath)
	if err != nil {
		return model.SRSCard{}, err
	}
	if !found {
		return model.SRSCard{}, coreerrors.NewNotFound("SRSCard", notePath)
	}

	newInterval, newEase, newReps := CalculateNextReview(rating, card.EaseFactor, card.IntervalDays, card.Repetitions)
	today := e.clk.Today()
	nextReview := today.AddDate(0, 0, newInterval)

	history := model.ReviewHistory{
		CardID:         card.ID,
		Rating:         rating,
		IntervalBefore: card.IntervalDays,
		IntervalAfter:  newInterval,
		EaseBefore:     card.EaseFactor,
		EaseAfter:      newEase,
		ReviewedAt:     e.clk.Now(),
	}

	updated := card
	updated.NextReviewDate = nextReview
	updated.LastReviewDate = today
	updated.IntervalDays = newInterval
	updated.EaseFactor = newEase
	updated.Repetitions = newReps
	updated.IsDue = false
	updated.TotalReviews = card.TotalReviews + 1

	if err := e.store.RateCard(ctx, updated, history); err != nil {
		return model.SRSCard{}, err
	}

	patch := map[string]string{
		"srs_next_review": nextReview.Format("2006-01-02"),
		"srs_last_review": today.Format("2006-01-02"),
		"srs_interval":    strconv.Itoa(newInterval),
		"srs_ease_factor": strconv.FormatFloat(newEase, 'f', 2, 64),
		"srs_repetitions": strconv.Itoa(newReps),
		"srs_enabled":     "true",
	}
	if err := e.vault.UpdateMetadata(notePath, patch); err != nil {
		return model.SRSCard{}, coreerrors.NewTransient(fmt.Errorf("vault metadata update: %w", err))
	}

	return updated, nil
}

// DueCards returns up to limit enabled cards whose stored is_due flag
// is set, ordered ascending by next_review_date, optionally filtered by
// type. It selects on that flag (set by SyncVault, cleared by Rate),
// not on next_review_date itself: a card whose review date has passed
// since the last SyncVault is not returned until the next one runs.
func (e *Engine) DueCards(ctx context.Context, limit int, noteType model.NoteType) ([]model.SRSCard, error) {
	return e.store.DueCards(ctx, limit, string(noteType))
}

// SyncVault walks the vault, upserting a card per file whose metadata
// marks it as SRS-enabled (or a trail/moc with a review date), and
// recomputes is_due. It never deletes rows for files that have
// disappeared — an orphan sweep is left to a future pass (spec §4.5).
func (e *Engine) SyncVault(ctx context.Context, dir string) (int, error) {
	files, err := e.vault.ListFiles(dir)
	if err != nil {
		return 0, coreerrors.NewTransient(fmt.Errorf("list vault files: %w", err))
	}

	today := e.clk.Today()
	count := 0
	for _, path := range files {
		if !strings.HasSuffix(path, ".md") {
			continue
		}
		meta, _, err := e.vault.Read(path)
		if err != nil {
			return count, coreerrors.NewTransient(fmt.Errorf("read %s: %w", path, err))
		}

		enabled := rawBool(meta, "srs_enabled")
		noteType := model.NoteType(rawOr(meta, "type", string(model.NoteOther)))
		nextReviewStr, hasNextReview := meta.Get("srs_next_review")

		eligible := enabled || ((noteType == model.NoteTrail || noteType == model.NoteMOC) && hasNextReview)
		if !eligible {
			continue
		}

		card, found, err := e.store.CardByNotePath(ctx, path)
		if err != nil {
			return count, err
		}
		if !found {
			card = model.SRSCard{
				NotePath:     path,
				NoteType:     noteType,
				Title:        titleFromPath(path),
				EaseFactor:   2.5,
				IntervalDays: 1,
			}
		}
		card.SRSEnabled = true
		card.NoteType = noteType
		if hasNextReview {
			if parsed, err := time.Parse("2006-01-02", nextReviewStr); err == nil {
				card.NextReviewDate = parsed
			}
		}
		card.IsDue = !card.NextReviewDate.After(today)

		if err := e.store.UpsertCard(ctx, card); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Seed assigns newly discovered notes of noteType a random initial
// interval in [1,30] days so the review stream doesn't burst, per
// srs_seed.py.
func (e *Engine) Seed(ctx context.Context, notePaths []string, noteType model.NoteType) error {
	today := e.clk.Today()
	for _, path := range notePaths {
		_, found, err := e.store.CardByNotePath(ctx, path)
		if err != nil {
			return err
		}
		if found {
			continue
		}
		interval := 1 + e.rand.Intn(30)
		card := model.SRSCard{
			NotePath:       path,
			NoteType:       noteType,
			Title:          titleFromPath(path),
			SRSEnabled:     true,
			EaseFactor:     2.5,
			IntervalDays:   interval,
			Repetitions:    0,
			NextReviewDate: today.AddDate(0, 0, interval),
		}
		if err := e.store.UpsertCard(ctx, card); err != nil {
			return err
		}
	}
	return nil
}

// ExtractBacklinks returns up to `limit` backlink targets from a
// note's body via the configured BacklinkExtractor.
func (e *Engine) ExtractBacklinks(body string, limit int) []string {
	links := e.extract.ExtractBacklinks(body)
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	return links
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func rawBool(m *vault.Metadata, key string) bool {
	v, ok := m.Get(key)
	return ok && v == "true"
}

func rawOr(m *vault.Metadata, key, def string) string {
	v, ok := m.Get(key)
	if !ok || v == "" {
		return def
	}
	return v
}
