package lifeweeks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/glebis/telegram-agent-sub002/internal/clock"
	"github.com/glebis/telegram-agent-sub002/internal/dispatch"
	"github.com/glebis/telegram-agent-sub002/internal/model"
	"github.com/glebis/telegram-agent-sub002/internal/scheduler"
	"github.com/glebis/telegram-agent-sub002/internal/store"
)

type fakePort struct {
	delivered []dispatch.Message
}

func (p *fakePort) Deliver(ctx context.Context, msg dispatch.Message) error {
	p.delivered = append(p.delivered, msg)
	return nil
}

type fakeRenderer struct {
	calls []Grid
}

func (r *fakeRenderer) Render(ctx context.Context, g Grid) ([]byte, error) {
	r.calls = append(r.calls, g)
	return []byte("image-bytes"), nil
}

type fakeReplyTracker struct {
	tracked []trackedReply
}

type trackedReply struct {
	userID     string
	weeksLived int
	target     RenderTarget
	customPath string
}

func (r *fakeReplyTracker) TrackReplyContext(ctx context.Context, userID string, weeksLived int, target RenderTarget, customPath string) error {
	r.tracked = append(r.tracked, trackedReply{userID, weeksLived, target, customPath})
	return nil
}

func TestCalculateWeeksLivedFloorsCompleteWeeks(t *testing.T) {
	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	today := dob.AddDate(0, 0, 10*7+3)
	require.Equal(t, 10, CalculateWeeksLived(dob, today))
}

func TestBuildGridCapsFilledCellsAtTotal(t *testing.T) {
	g := BuildGrid(TotalCells+500, 95)
	require.Equal(t, TotalCells, g.FilledCells)
	require.InDelta(t, 100, g.Percentage, 5)
}

func TestBuildGridComputesPercentageOfNinetyYearLifespan(t *testing.T) {
	g := BuildGrid(WeeksPerYear*45, 45)
	require.InDelta(t, 50.0, g.Percentage, 0.01)
}

func TestCallbackSkipsUsersOnWrongWeekdayOrBeforeScheduledHour(t *testing.T) {
	now := time.Date(2026, 2, 12, 8, 30, 0, 0, time.UTC) // a Thursday
	clk := clock.NewFixed(now)
	mem := store.NewMemory()
	mem.SeedLifeWeeks(model.LifeWeeksSettings{
		UserID: "wrong-day", Enabled: true, DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		TimeOfDay: "06:00", Weekday: time.Friday,
	})
	mem.SeedLifeWeeks(model.LifeWeeksSettings{
		UserID: "too-early", Enabled: true, DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		TimeOfDay: "09:00", Weekday: time.Thursday,
	})
	port := &fakePort{}
	renderer := &fakeRenderer{}
	s := New(mem, scheduler.New(clk, nil), port, renderer, nil, clk, nil)

	err := s.callback(context.Background(), noopToken(), nil)
	require.NoError(t, err)
	require.Empty(t, port.delivered)
}

func TestCallbackNotifiesEligibleUserAndTracksReply(t *testing.T) {
	now := time.Date(2026, 2, 12, 9, 15, 0, 0, time.UTC) // a Thursday
	clk := clock.NewFixed(now)
	mem := store.NewMemory()
	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	mem.SeedLifeWeeks(model.LifeWeeksSettings{
		UserID: "u1", Enabled: true, DateOfBirth: dob,
		TimeOfDay: "09:00", Weekday: time.Thursday,
		Destination: model.DestinationCustomPath, CustomPath: "journal/life.md",
	})
	port := &fakePort{}
	renderer := &fakeRenderer{}
	reply := &fakeReplyTracker{}
	s := New(mem, scheduler.New(clk, nil), port, renderer, reply, clk, nil)

	err := s.callback(context.Background(), noopToken(), nil)
	require.NoError(t, err)
	require.Len(t, port.delivered, 1)
	require.Equal(t, dispatch.PayloadPhoto, port.delivered[0].Kind)
	require.Len(t, renderer.calls, 1)

	require.Len(t, reply.tracked, 1)
	require.Equal(t, "u1", reply.tracked[0].userID)
	require.Equal(t, TargetCustomPath, reply.tracked[0].target)
	require.Equal(t, "journal/life.md", reply.tracked[0].customPath)
}

func TestCallbackIgnoresDisabledUsers(t *testing.T) {
	now := time.Date(2026, 2, 12, 9, 15, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	mem := store.NewMemory()
	mem.SeedLifeWeeks(model.LifeWeeksSettings{
		UserID: "u1", Enabled: false, DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		TimeOfDay: "09:00", Weekday: time.Thursday,
	})
	port := &fakePort{}
	s := New(mem, scheduler.New(clk, nil), port, &fakeRenderer{}, nil, clk, nil)

	err := s.callback(context.Background(), noopToken(), nil)
	require.NoError(t, err)
	require.Empty(t, port.delivered)
}

func noopToken() *scheduler.CancelToken {
	var tok scheduler.CancelToken
	return &tok
}
