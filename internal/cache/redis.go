package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lmcintyre/gather/internal/gather"
)

// How long stale entries are retained past their freshness TTL, so the
// degradation path has something to serve during a longer outage. Friend
// snapshots are kept even longer since the graph changes slowly.
const (
	minPageRetention    = time.Hour
	snapshotRetention   = 24 * time.Hour
	pageRetentionFactor = 20
)

// RedisStore is a Store shared between replicas of the service.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *RedisStore) retention() time.Duration {
	if r := s.ttl * pageRetentionFactor; r > minPageRetention {
		return r
	}
	return minPageRetention
}

func pageKey(fp Fingerprint) string {
	return fmt.Sprintf("gather:page:%016x", uint64(fp))
}

func lastPageKey(userID, cursor string) string {
	return fmt.Sprintf("gather:last:%016x", lastKey(userID, cursor))
}

func snapshotKey(userID string) string {
	return fmt.Sprintf("gather:friends:%s", userID)
}

func (s *RedisStore) GetPage(ctx context.Context, fp Fingerprint) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, pageKey(fp)).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("error reading cached page: %w", err)
	}

	var ent Entry
	if err := json.Unmarshal([]byte(raw), &ent); err != nil {
		return Entry{}, false, fmt.Errorf("error decoding cached page: %w", err)
	}

	return ent, true, nil
}

func (s *RedisStore) PutPage(ctx context.Context, fp Fingerprint, userID, cursor string, page gather.FeedPage, degraded bool) error {
	ent := Entry{
		Page:       page,
		Degraded:   degraded,
		InsertedAt: time.Now(),
		TTL:        s.ttl,
	}
	raw, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("error encoding page for cache: %w", err)
	}

	// The entry and its (user, cursor) alias land together; retention runs
	// well past the freshness TTL on purpose.
	pipe := s.client.Pipeline()
	pipe.Set(ctx, pageKey(fp), raw, s.retention())
	pipe.Set(ctx, lastPageKey(userID, cursor), pageKey(fp), s.retention())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error writing page to cache: %w", err)
	}

	return nil
}

func (s *RedisStore) LastPage(ctx context.Context, userID, cursor string) (Entry, bool, error) {
	key, err := s.client.Get(ctx, lastPageKey(userID, cursor)).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("error reading page alias: %w", err)
	}

	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("error reading cached page: %w", err)
	}

	var ent Entry
	if err := json.Unmarshal([]byte(raw), &ent); err != nil {
		return Entry{}, false, fmt.Errorf("error decoding cached page: %w", err)
	}

	return ent, true, nil
}

func (s *RedisStore) FriendSnapshot(ctx context.Context, userID string) (gather.FriendSet, bool, error) {
	raw, err := s.client.Get(ctx, snapshotKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return gather.FriendSet{}, false, nil
	}
	if err != nil {
		return gather.FriendSet{}, false, fmt.Errorf("error reading friend snapshot: %w", err)
	}

	var fs gather.FriendSet
	if err := json.Unmarshal([]byte(raw), &fs); err != nil {
		return gather.FriendSet{}, false, fmt.Errorf("error decoding friend snapshot: %w", err)
	}

	return fs, true, nil
}

func (s *RedisStore) PutFriendSnapshot(ctx context.Context, userID string, fs gather.FriendSet) error {
	raw, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("error encoding friend snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(userID), raw, snapshotRetention).Err(); err != nil {
		return fmt.Errorf("error writing friend snapshot: %w", err)
	}

	return nil
}
