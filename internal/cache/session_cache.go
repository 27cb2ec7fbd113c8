// Package cache keeps review sessions in Redis as an alternative to the
// sqlite session tables. Keys expire after the session TTL, so no cleanup
// loop is needed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/assessor/internal/model"
)

// ErrSessionNotFound is returned when a session key is missing or expired.
var ErrSessionNotFound = errors.New("session not found")

type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionCache{client: client, ttl: ttl}
}

func sessionKey(id string) string    { return "session:" + id }
func outcomesKey(id string) string   { return "session:" + id + ":outcomes" }
func reviewedAtKey(id string) string { return "session:" + id + ":reviewed_at" }

// Ping checks that Redis is reachable.
func (c *SessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SessionCache) CreateSession(ctx context.Context, id string) error {
	return c.client.Set(ctx, sessionKey(id), time.Now().UTC().Format(time.RFC3339), c.ttl).Err()
}

func (c *SessionCache) SessionExists(ctx context.Context, id string) (bool, error) {
	n, err := c.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpsertOutcome replaces the outcome stored for o.QuestionID, unpins the
// compile timestamp and extends the session TTL.
func (c *SessionCache) UpsertOutcome(ctx context.Context, sessionID string, o model.ReviewOutcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, outcomesKey(sessionID), strconv.FormatInt(o.QuestionID, 10), data)
		pipe.Del(ctx, reviewedAtKey(sessionID))
		pipe.Expire(ctx, outcomesKey(sessionID), c.ttl)
		pipe.Expire(ctx, sessionKey(sessionID), c.ttl)
		return nil
	})
	return err
}

// ListOutcomes returns the outcomes of a session ordered by question id.
func (c *SessionCache) ListOutcomes(ctx context.Context, sessionID string) ([]model.ReviewOutcome, error) {
	fields, err := c.client.HGetAll(ctx, outcomesKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	return decodeOutcomes(fields)
}

func decodeOutcomes(fields map[string]string) ([]model.ReviewOutcome, error) {
	outcomes := make([]model.ReviewOutcome, 0, len(fields))
	for field, data := range fields {
		var o model.ReviewOutcome
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			return nil, fmt.Errorf("decode outcome %s: %w", field, err)
		}
		outcomes = append(outcomes, o)
	}
	slices.SortFunc(outcomes, func(a, b model.ReviewOutcome) int {
		switch {
		case a.QuestionID < b.QuestionID:
			return -1
		case a.QuestionID > b.QuestionID:
			return 1
		}
		return 0
	})
	return outcomes, nil
}

func (c *SessionCache) ClearOutcomes(ctx context.Context, sessionID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, outcomesKey(sessionID), reviewedAtKey(sessionID))
		pipe.Expire(ctx, sessionKey(sessionID), c.ttl)
		return nil
	})
	return err
}

// PinReviewedAt returns the compile timestamp of the session, setting it to
// now if none is pinned.
func (c *SessionCache) PinReviewedAt(ctx context.Context, sessionID string, now time.Time) (time.Time, error) {
	ok, err := c.SessionExists(ctx, sessionID)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, ErrSessionNotFound
	}
	now = now.UTC().Truncate(time.Second)
	if err := c.client.SetNX(ctx, reviewedAtKey(sessionID), now.Format(time.RFC3339), c.ttl).Err(); err != nil {
		return time.Time{}, err
	}
	raw, err := c.client.Get(ctx, reviewedAtKey(sessionID)).Result()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}
