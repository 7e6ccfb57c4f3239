package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCacheKey(t *testing.T) {
	c := NewHistoryCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})).(*historyCache)
	assert.Equal(t, "smarthire:candidate:abc:asked", c.key("abc"))
}

func TestHistoryCacheNoopAdd(t *testing.T) {
	// No round trip happens for an empty batch, so an unreachable server is fine.
	c := NewHistoryCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	assert.NoError(t, c.AddUsedQuestions(context.Background(), "abc", nil))
}

// TestHistoryCacheRedis runs against a real server when SMARTHIRE_TEST_REDIS
// holds its address.
func TestHistoryCacheRedis(t *testing.T) {
	addr := os.Getenv("SMARTHIRE_TEST_REDIS")
	if addr == "" {
		t.Skip("SMARTHIRE_TEST_REDIS not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	c := NewHistoryCache(client)
	id := uuid.NewString()
	t.Cleanup(func() { _ = c.Forget(ctx, id) })

	used, err := c.UsedQuestions(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, used)

	require.NoError(t, c.AddUsedQuestions(ctx, id, []string{"b?", "a?"}))
	require.NoError(t, c.AddUsedQuestions(ctx, id, []string{"a?", "c?"}))

	used, err = c.UsedQuestions(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"a?", "b?", "c?"}, used)

	// -1 means the key exists without an expiry.
	ttl, err := client.TTL(ctx, c.(*historyCache).key(id)).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}
