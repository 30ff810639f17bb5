package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingPort struct {
	mu  sync.Mutex
	got []Message
}

func (p *recordingPort) Deliver(ctx context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, msg)
	return nil
}

func TestInlineActionsRejectsTokenOverBudget(t *testing.T) {
	longToken := "checkin_done:" + strings.Repeat("9", 60)
	_, err := InlineActions([]InlineAction{{Label: "Done", Token: longToken}})
	require.Error(t, err)
	var tooLong *ErrTokenTooLong
	require.ErrorAs(t, err, &tooLong)
}

func TestInlineActionsAcceptsTokenAtBudget(t *testing.T) {
	token := "checkin_done:" + strings.Repeat("9", 64-len("checkin_done:"))
	require.Len(t, token, 64)
	rows, err := InlineActions([]InlineAction{{Label: "Done", Token: token}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestTextVoicePhotoConstructors(t *testing.T) {
	txt := Text("u1", "hello", nil)
	require.Equal(t, PayloadText, txt.Kind)

	voice := Voice("u1", "hello", []byte{1, 2, 3}, nil)
	require.Equal(t, PayloadVoice, voice.Kind)
	require.Len(t, voice.Audio, 3)

	photo := Photo("u1", []byte{9}, "caption", nil)
	require.Equal(t, PayloadPhoto, photo.Kind)
	require.Equal(t, "caption", photo.Text)
}

func TestRateLimitedDeliversWithinBudgetImmediately(t *testing.T) {
	rec := &recordingPort{}
	limited := NewRateLimited(rec, 100, 5)

	for i := 0; i < 5; i++ {
		require.NoError(t, limited.Deliver(context.Background(), Text("u1", "hi", nil)))
	}
	require.Len(t, rec.got, 5)
}

func TestRateLimitedBlocksBeyondBurstUntilContextDeadline(t *testing.T) {
	rec := &recordingPort{}
	limited := NewRateLimited(rec, 1, 1)

	require.NoError(t, limited.Deliver(context.Background(), Text("u1", "first", nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := limited.Deliver(ctx, Text("u1", "second", nil))
	require.Error(t, err)
}
