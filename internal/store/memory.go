package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
	"github.com/glebis/telegram-agent-sub002/internal/model"
)

// Memory is an in-memory Store for callback-level tests that don't
// need a real Postgres instance, mirroring the teacher's
// MockRepository shape (in-memory maps, optional injected error).
type Memory struct {
	mu sync.RWMutex

	trackers  map[string]model.Tracker
	checkIns  []model.CheckIn
	cards     map[string]model.SRSCard // keyed by note path
	history   []model.ReviewHistory
	profiles  map[string]model.AccountabilityProfile
	lifeWeeks map[string]model.LifeWeeksSettings
	privacy   map[string]model.PrivacySettings
	messages  []message
	pollResps []pollResponse
	chats     map[string][]model.ChatRef

	// ErrorOnNextCall, when set, is returned (and cleared) by the next
	// call to ActiveTrackersForUser, SaveTracker, SaveCheckIn,
	// UpsertCard or RateCard — for exercising Transient retry paths in
	// tests. Other methods ignore it.
	ErrorOnNextCall error
}

type message struct {
	ChatPK    int64
	CreatedAt time.Time
}

type pollResponse struct {
	ExternalChatID string
	CreatedAt      time.Time
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		trackers:  make(map[string]model.Tracker),
		cards:     make(map[string]model.SRSCard),
		profiles:  make(map[string]model.AccountabilityProfile),
		lifeWeeks: make(map[string]model.LifeWeeksSettings),
		privacy:   make(map[string]model.PrivacySettings),
		chats:     make(map[string][]model.ChatRef),
	}
}

func (m *Memory) checkErr() error {
	if m.ErrorOnNextCall != nil {
		err := m.ErrorOnNextCall
		m.ErrorOnNextCall = nil
		return err
	}
	return nil
}

// SeedTracker inserts a tracker directly, for test setup.
func (m *Memory) SeedTracker(t model.Tracker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	m.trackers[t.ID] = t
}

// SeedProfile inserts an accountability profile directly.
func (m *Memory) SeedProfile(p model.AccountabilityProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
}

// SeedLifeWeeks inserts life-weeks settings directly.
func (m *Memory) SeedLifeWeeks(s model.LifeWeeksSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifeWeeks[s.UserID] = s
}

// SeedPrivacy inserts privacy/retention settings directly.
func (m *Memory) SeedPrivacy(p model.PrivacySettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.privacy[p.UserID] = p
}

// SeedChat associates a chat (in both ID spaces) with a user, for
// retention tests.
func (m *Memory) SeedChat(userID string, ref model.ChatRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[userID] = append(m.chats[userID], ref)
}

// SeedMessage records a message row directly, for retention tests.
func (m *Memory) SeedMessage(chatPK int64, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message{ChatPK: chatPK, CreatedAt: createdAt})
}

// SeedPollResponse records a poll-response row directly, for retention tests.
func (m *Memory) SeedPollResponse(externalChatID string, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollResps = append(m.pollResps, pollResponse{ExternalChatID: externalChatID, CreatedAt: createdAt})
}

func (m *Memory) ActiveTrackersForUser(ctx context.Context, userID string) ([]model.Tracker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkErr(); err != nil {
		return nil, err
	}
	var out []model.Tracker
	for _, t := range m.trackers {
		if t.Owner == userID && t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) TrackerByID(ctx context.Context, id string) (model.Tracker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trackers[id]
	if !ok {
		return model.Tracker{}, coreerrors.NewNotFound("Tracker", id)
	}
	return t, nil
}

func (m *Memory) SaveTracker(ctx context.Context, t model.Tracker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkErr(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	m.trackers[t.ID] = t
	return nil
}

func (m *Memory) CompletedCheckInsForTracker(ctx context.Context, userID, trackerID string) ([]model.CheckIn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.CheckIn
	for _, ci := range m.checkIns {
		if ci.Owner == userID && ci.TrackerID == trackerID && ci.Status == model.CheckInCompleted {
			out = append(out, ci)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AllCheckInsForTracker(ctx context.Context, userID, trackerID string) ([]model.CheckIn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.CheckIn
	for _, ci := range m.checkIns {
		if ci.Owner == userID && ci.TrackerID == trackerID {
			out = append(out, ci)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveCheckIn(ctx context.Context, ci model.CheckIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkErr(); err != nil {
		return err
	}
	if ci.ID == "" {
		ci.ID = uuid.NewString()
	}
	m.checkIns = append(m.checkIns, ci)
	return nil
}

func (m *Memory) DeleteCheckInsOlderThan(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.CheckIn
	deleted := 0
	for _, ci := range m.checkIns {
		if ci.Owner == userID && ci.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ci)
	}
	m.checkIns = kept
	return deleted, nil
}

func (m *Memory) CardByNotePath(ctx context.Context, path string) (model.SRSCard, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[path]
	return c, ok, nil
}

func (m *Memory) UpsertCard(ctx context.Context, card model.SRSCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkErr(); err != nil {
		return err
	}
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	m.cards[card.NotePath] = card
	return nil
}

func (m *Memory) DueCards(ctx context.Context, limit int, noteType string) ([]model.SRSCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.SRSCard
	for _, c := range m.cards {
		if !c.SRSEnabled || !c.IsDue {
			continue
		}
		if noteType != "" && string(c.NoteType) != noteType {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextReviewDate.Before(out[j].NextReviewDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) RateCard(ctx context.Context, card model.SRSCard, history model.ReviewHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkErr(); err != nil {
		return err
	}
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	m.history = append(m.history, history)
	m.cards[card.NotePath] = card
	return nil
}

func (m *Memory) AccountabilityProfile(ctx context.Context, userID string) (model.AccountabilityProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	return p, ok, nil
}

func (m *Memory) UsersWithAccountabilityProfile(ctx context.Context) ([]model.AccountabilityProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.AccountabilityProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) LifeWeeksSettings(ctx context.Context, userID string) (model.LifeWeeksSettings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.lifeWeeks[userID]
	return s, ok, nil
}

func (m *Memory) UsersWithLifeWeeksEnabled(ctx context.Context) ([]model.LifeWeeksSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.LifeWeeksSettings
	for _, s := range m.lifeWeeks {
		if s.Enabled {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) PrivacySettings(ctx context.Context, userID string) (model.PrivacySettings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.privacy[userID]
	return s, ok, nil
}

func (m *Memory) UsersWithRetentionLessThanForever(ctx context.Context) ([]model.PrivacySettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.PrivacySettings
	for _, s := range m.privacy {
		if s.Retention != model.RetentionForever {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// CountMessagesForChat reports how many message rows remain for a
// chat primary key, without deleting anything (test helper).
func (m *Memory) CountMessagesForChat(chatPK int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, msg := range m.messages {
		if msg.ChatPK == chatPK {
			n++
		}
	}
	return n
}

// CountPollResponsesForChat reports how many poll-response rows
// remain for an external chat ID, without deleting anything (test
// helper).
func (m *Memory) CountPollResponsesForChat(externalChatID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, pr := range m.pollResps {
		if pr.ExternalChatID == externalChatID {
			n++
		}
	}
	return n
}

// ReviewHistoryForCard returns every ReviewHistory row recorded for
// cardID, in append order, for tests that assert on the ledger RateCard
// writes alongside the card update.
func (m *Memory) ReviewHistoryForCard(cardID string) []model.ReviewHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ReviewHistory
	for _, h := range m.history {
		if h.CardID == cardID {
			out = append(out, h)
		}
	}
	return out
}

func (m *Memory) ChatsForUser(ctx context.Context, userID string) ([]model.ChatRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.ChatRef(nil), m.chats[userID]...), nil
}

func (m *Memory) DeleteOldMessagesByChatPK(ctx context.Context, chatPK int64, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []message
	deleted := 0
	for _, msg := range m.messages {
		if msg.ChatPK == chatPK && msg.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
	return deleted, nil
}

func (m *Memory) DeleteOldPollResponsesByExternalChatID(ctx context.Context, externalChatID string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []pollResponse
	deleted := 0
	for _, pr := range m.pollResps {
		if pr.ExternalChatID == externalChatID && pr.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, pr)
	}
	m.pollResps = kept
	return deleted, nil
}

func (m *Memory) EraseUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.trackers {
		if t.Owner == userID {
			delete(m.trackers, id)
		}
	}
	var keptCheckIns []model.CheckIn
	for _, ci := range m.checkIns {
		if ci.Owner != userID {
			keptCheckIns = append(keptCheckIns, ci)
		}
	}
	m.checkIns = keptCheckIns
	delete(m.profiles, userID)
	delete(m.lifeWeeks, userID)
	delete(m.privacy, userID)
	delete(m.chats, userID)
	return nil
}
