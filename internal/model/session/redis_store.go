package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordPrefix = "usage:"
	userIndexKey = "usage:user:"
	openIndexKey = "usage:open"
)

// RedisStore persists sessions as JSON records keyed by id, with a per-user
// index set and an open-session set for staleness sweeps. Records carry no
// TTL: sessions are deleted only by explicit user action.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) key(id string) string {
	return recordPrefix + id
}

func (r *RedisStore) userKey(userID string) string {
	return userIndexKey + userID
}

func (r *RedisStore) Create(ctx context.Context, s Session) error {
	if s.ID == "" || s.UserID == "" {
		return fmt.Errorf("session: missing id or user id")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(s.ID), data, 0)
	pipe.SAdd(ctx, r.userKey(s.UserID), s.ID)
	pipe.SAdd(ctx, openIndexKey, s.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Update(ctx context.Context, s Session) error {
	if s.ID == "" {
		return fmt.Errorf("session: missing id")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(s.ID), data, 0)
	if s.Closed() {
		pipe.SRem(ctx, openIndexKey, s.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Touch runs the open-check and the heartbeat write under WATCH, so a close
// committing between them aborts the transaction instead of being rewound to
// an open record.
func (r *RedisStore) Touch(ctx context.Context, id string, ts time.Time) (bool, error) {
	key := r.key(id)
	touched := false

	txn := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}

		var s Session
		if err := json.Unmarshal([]byte(val), &s); err != nil {
			return fmt.Errorf("session: failed to unmarshal: %w", err)
		}
		if s.Closed() {
			return nil
		}

		s.LastHeartbeat = ts
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("session: failed to marshal: %w", err)
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		}); err != nil {
			return err
		}
		touched = true
		return nil
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := r.client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			// Lost to a concurrent writer; re-read and try again.
			continue
		}
		if err != nil {
			return false, err
		}
		return touched, nil
	}
	return false, redis.TxFailedErr
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(id))
	pipe.SRem(ctx, openIndexKey, id)
	if s != nil {
		pipe.SRem(ctx, r.userKey(s.UserID), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}

	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, r.key(id))
		pipe.SRem(ctx, openIndexKey, id)
	}
	pipe.Del(ctx, r.userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (r *RedisStore) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	result := make([]Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})
	return result, nil
}

func (r *RedisStore) ListOpen(ctx context.Context) ([]Session, error) {
	ids, err := r.client.SMembers(ctx, openIndexKey).Result()
	if err != nil {
		return nil, err
	}

	var result []Session
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if s != nil && !s.Closed() {
			result = append(result, *s)
		}
	}
	return result, nil
}
