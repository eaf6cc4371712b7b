package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hyperscribe.app/scribe/internal/model"
)

const discussionKeyPrefix = "scribe:discussion:"

// RedisDiscussionStore stores each discussion as a JSON value. A zero ttl
// keeps discussions forever.
type RedisDiscussionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisDiscussionStore(client *redis.Client, ttl time.Duration) *RedisDiscussionStore {
	return &RedisDiscussionStore{client: client, ttl: ttl, now: time.Now}
}

// DiscussionKey is the redis key of a discussion.
func DiscussionKey(key string) string {
	return discussionKeyPrefix + key
}

func (s *RedisDiscussionStore) Get(ctx context.Context, key string) (model.DiscussionState, error) {
	state, err := s.Peek(ctx, key)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return state, err
	}

	state = model.NewDiscussionState(s.now())
	raw, err := json.Marshal(state)
	if err != nil {
		return model.DiscussionState{}, fmt.Errorf("marshal discussion: %w", err)
	}
	created, err := s.client.SetNX(ctx, DiscussionKey(key), raw, s.ttl).Result()
	if err != nil {
		return model.DiscussionState{}, fmt.Errorf("create discussion %s: %w", key, err)
	}
	if !created {
		// Another worker created it first.
		return s.Peek(ctx, key)
	}
	return state, nil
}

func (s *RedisDiscussionStore) Peek(ctx context.Context, key string) (model.DiscussionState, error) {
	raw, err := s.client.Get(ctx, DiscussionKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.DiscussionState{}, ErrNotFound
		}
		return model.DiscussionState{}, fmt.Errorf("get discussion %s: %w", key, err)
	}
	var state model.DiscussionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return model.DiscussionState{}, fmt.Errorf("unmarshal discussion %s: %w", key, err)
	}
	return state, nil
}

func (s *RedisDiscussionStore) Set(ctx context.Context, key string, state model.DiscussionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal discussion: %w", err)
	}
	if err := s.client.Set(ctx, DiscussionKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set discussion %s: %w", key, err)
	}
	return nil
}
