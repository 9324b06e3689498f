package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore mirrors the hub's online set into Redis so operators
// and other tools can see who is connected. Keys expire after ttl unless a
// heartbeat renews them, so a crashed process does not leave users online
// forever.
type RedisPresenceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPresenceStore(rdb *redis.Client, ttl time.Duration) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb, ttl: ttl}
}

// presence key: chat:presence:<user>, value: unix seconds of the last update
func presenceKey(userID string) string { return "chat:presence:" + userID }

func (s *RedisPresenceStore) SetOnline(ctx context.Context, userID string) error {
	err := s.rdb.Set(ctx, presenceKey(userID), strconv.FormatInt(time.Now().Unix(), 10), s.ttl).Err()
	return errors.Wrapf(err, "presence online %s", userID)
}

func (s *RedisPresenceStore) SetOffline(ctx context.Context, userID string) error {
	return errors.Wrapf(s.rdb.Del(ctx, presenceKey(userID)).Err(), "presence offline %s", userID)
}
