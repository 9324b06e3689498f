package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ajay-css/chatify/database"
)

func TestRedisPresenceStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	rdb, err := database.NewRedis(ctx, database.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer rdb.Close()

	store := NewRedisPresenceStore(rdb, time.Minute)
	user := "test-" + uuid.NewString()

	require.NoError(t, store.SetOnline(ctx, user))
	ttl, err := rdb.TTL(ctx, presenceKey(user)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.SetOffline(ctx, user))
	n, err := rdb.Exists(ctx, presenceKey(user)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
