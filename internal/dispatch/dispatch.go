// Package dispatch implements the DispatchPort (C12, spec §4.12/§6): a
// transport-agnostic outbound port carrying text/voice/photo payloads
// with inline actions, rate limited via golang.org/x/time/rate so a
// burst of per-tracker reminders cannot overrun the transport adapter.
package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// maxTokenBytes is the inline-action opaque-token budget (spec §6:
// "Each action carries an opaque token ≤ 64 bytes").
const maxTokenBytes = 64

// ErrTokenTooLong is a payload-construction error, not a schedule
// error, so it is its own type rather than coreerrors.InvalidScheduleSpec.
type ErrTokenTooLong struct {
	Token string
	Bytes int
}

func (e *ErrTokenTooLong) Error() string {
	return fmt.Sprintf("inline action token %q is %d bytes, exceeds the %d-byte budget", e.Token, e.Bytes, maxTokenBytes)
}

// InlineAction is one button in a dispatched message's action grid.
// Token must follow the spec §6 scheme "<namespace>:<id>".
type InlineAction struct {
	Label string
	Token string
}

// InlineActions validates and returns a grid of action rows, rejecting
// any token over the 64-byte budget at construction time.
func InlineActions(rows ...[]InlineAction) ([][]InlineAction, error) {
	for _, row := range rows {
		for _, a := range row {
			if n := len(a.Token); n > maxTokenBytes {
				return nil, &ErrTokenTooLong{Token: a.Token, Bytes: n}
			}
		}
	}
	return rows, nil
}

// PayloadKind enumerates the outbound message variants (spec §4.12/§6).
type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadVoice PayloadKind = "voice"
	PayloadPhoto PayloadKind = "photo"
)

// Message is one outbound dispatch carrying a recipient, a payload
// variant, and an optional inline-action grid (spec §6).
type Message struct {
	Recipient string
	Kind      PayloadKind
	Text      string
	Audio     []byte
	Photo     []byte
	Actions   [][]InlineAction
}

// Port is the external collaborator the core dispatches through. No
// transport adapter implementing it lives in this module (spec §1/§19
// non-goal: "no chat-transport rendering"); RateLimited below only
// wraps another Port.
type Port interface {
	Deliver(ctx context.Context, msg Message) error
}

// RateLimited wraps a Port with a token-bucket limiter (spec §4.12:
// "rate-limits outbound Deliver calls ... so a burst of per-tracker
// reminders cannot overrun the transport adapter").
type RateLimited struct {
	inner   Port
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a limiter allowing ratePerSecond
// sustained messages and spikes of up to burst messages in total.
func NewRateLimited(inner Port, ratePerSecond float64, burst int) *RateLimited {
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Deliver blocks until the limiter admits the call (or ctx is done),
// then forwards to the wrapped Port.
func (r *RateLimited) Deliver(ctx context.Context, msg Message) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return r.inner.Deliver(ctx, msg)
}

// Text builds a text-payload message.
func Text(recipient, body string, actions [][]InlineAction) Message {
	return Message{Recipient: recipient, Kind: PayloadText, Text: body, Actions: actions}
}

// Voice builds a voice-payload message carrying synthesized audio
// bytes alongside the source text.
func Voice(recipient, body string, audio []byte, actions [][]InlineAction) Message {
	return Message{Recipient: recipient, Kind: PayloadVoice, Text: body, Audio: audio, Actions: actions}
}

// Photo builds a photo-payload message, used by the life-weeks
// visualisation (spec §4.11).
func Photo(recipient string, photo []byte, caption string, actions [][]InlineAction) Message {
	return Message{Recipient: recipient, Kind: PayloadPhoto, Text: caption, Photo: photo, Actions: actions}
}
