package srsschedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/glebis/telegram-agent-sub002/internal/clock"
	"github.com/glebis/telegram-agent-sub002/internal/dispatch"
	"github.com/glebis/telegram-agent-sub002/internal/model"
	"github.com/glebis/telegram-agent-sub002/internal/scheduler"
	"github.com/glebis/telegram-agent-sub002/internal/srs"
	"github.com/glebis/telegram-agent-sub002/internal/store"
	"github.com/glebis/telegram-agent-sub002/internal/vault"
)

type fakePort struct {
	delivered []dispatch.Message
}

func (p *fakePort) Deliver(ctx context.Context, msg dispatch.Message) error {
	p.delivered = append(p.delivered, msg)
	return nil
}

func TestNewClampsBatchSizeToDefaultAndCap(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	s := New(nil, nil, nil, nil, clk, nil, 0)
	require.Equal(t, DefaultBatchSize, s.batchSize)

	s = New(nil, nil, nil, nil, clk, nil, 1000)
	require.Equal(t, MaxBatchSize, s.batchSize)
}

func TestMorningBatchCallbackDispatchesFiveRatingActionsPerCard(t *testing.T) {
	dir := t.TempDir()
	mem := store.NewMemory()
	clk := clock.NewFixed(time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC))
	require.NoError(t, mem.UpsertCard(context.Background(), model.SRSCard{
		ID: "c1", NotePath: "a.md", Title: "Note A", SRSEnabled: true, IsDue: true,
		NextReviewDate: time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC),
	}))
	engine := srs.New(mem, vault.New(dir), clk, nil)
	port := &fakePort{}
	s := New(engine, vault.New(dir), scheduler.New(clk, nil), port, clk, nil, 5)

	err := s.morningBatchCallback(context.Background(), noopToken(), nil)
	require.NoError(t, err)
	require.Len(t, port.delivered, 1)
	require.Len(t, port.delivered[0].Actions[0], 5)
}

func TestDevelopCapsBacklinksAtFive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"),
		[]byte("---\n---\n[[a]] [[b]] [[c]] [[d]] [[e]] [[f]]\n"), 0o644))

	mem := store.NewMemory()
	clk := clock.NewFixed(time.Now())
	engine := srs.New(mem, vault.New(dir), clk, nil)
	s := New(engine, vault.New(dir), scheduler.New(clk, nil), &fakePort{}, clk, nil, 5)

	ev, err := s.Develop("note.md", 0)
	require.NoError(t, err)
	require.Len(t, ev.Backlinks, 5)
}

func noopToken() *scheduler.CancelToken {
	var tok scheduler.CancelToken
	return &tok
}
