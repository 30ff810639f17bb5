// Package jobregistry implements the JobRegistry (C8, spec §4.8): a
// persistent index of (job-name, owner, metadata) rows so the
// RuntimeScheduler can rehydrate every per-user schedule on restart
// without a full Store round trip. Backed by Redis hashes via
// go-redis/redis/v8, one hash per user keyed "jobregistry:<user_id>".
package jobregistry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
)

const keyPrefix = "jobregistry:"

// JobEntry is one registered job row: its name and the opaque data
// payload the scheduler hands back to the callback on rehydration.
type JobEntry struct {
	JobName string         `json:"job_name"`
	Data    map[string]any `json:"data"`
}

// Registry is the Redis-backed JobRegistry.
type Registry struct {
	client redis.UniversalClient
}

// New wraps an existing go-redis client.
func New(client redis.UniversalClient) *Registry {
	return &Registry{client: client}
}

// Open dials Redis at addr, normalizing a connection failure into a
// coreerrors.Transient the caller can retry.
func Open(ctx context.Context, addr string) (*Registry, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("connect to redis at %s: %w", addr, err))
	}
	return New(client), nil
}

func userKey(userID string) string { return keyPrefix + userID }

// ScheduleUser idempotently writes the check-in and struggle job rows
// for a user (spec §4.8: "on schedule_user(user_id, chat_id), the
// registry idempotently writes a row naming the check-in and struggle
// jobs"). Re-registering the same two job names is a no-op in
// content, so this uses HSET rather than HSETNX.
func (r *Registry) ScheduleUser(ctx context.Context, userID, chatID, locale string) error {
	data := map[string]any{"user_id": userID, "chat_id": chatID, "locale": locale}

	checkin, err := encode(JobEntry{JobName: fmt.Sprintf("checkin_%s", userID), Data: data})
	if err != nil {
		return err
	}
	struggle, err := encode(JobEntry{JobName: fmt.Sprintf("struggle_%s", userID), Data: data})
	if err != nil {
		return err
	}

	fields := map[string]any{
		"checkin":  checkin,
		"struggle": struggle,
	}
	if err := r.client.HSet(ctx, userKey(userID), fields).Err(); err != nil {
		return coreerrors.NewTransient(fmt.Errorf("hset jobregistry for %s: %w", userID, err))
	}
	return nil
}

// Unschedule clears all job rows for a user (on user deletion, spec §4.8).
func (r *Registry) Unschedule(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, userKey(userID)).Err(); err != nil {
		return coreerrors.NewTransient(fmt.Errorf("delete jobregistry for %s: %w", userID, err))
	}
	return nil
}

// JobsForUser returns the registered job entries for one user, for
// inspection or manual rehydration of a single schedule.
func (r *Registry) JobsForUser(ctx context.Context, userID string) ([]JobEntry, error) {
	raw, err := r.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, coreerrors.NewTransient(fmt.Errorf("hgetall jobregistry for %s: %w", userID, err))
	}
	return decodeAll(raw)
}

// Snapshot returns every registered job entry across every user, used
// at process startup to rehydrate the RuntimeScheduler (spec §5:
// "survives restarts via snapshot/restore").
func (r *Registry) Snapshot(ctx context.Context) ([]JobEntry, error) {
	var entries []JobEntry
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, coreerrors.NewTransient(fmt.Errorf("scan jobregistry keys: %w", err))
		}
		for _, key := range keys {
			raw, err := r.client.HGetAll(ctx, key).Result()
			if err != nil {
				return nil, coreerrors.NewTransient(fmt.Errorf("hgetall %s: %w", key, err))
			}
			decoded, err := decodeAll(raw)
			if err != nil {
				return nil, err
			}
			entries = append(entries, decoded...)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return entries, nil
}

func encode(e JobEntry) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode job entry %s: %w", e.JobName, err)
	}
	return string(b), nil
}

func decodeAll(raw map[string]string) ([]JobEntry, error) {
	out := make([]JobEntry, 0, len(raw))
	for _, v := range raw {
		var e JobEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode job entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
