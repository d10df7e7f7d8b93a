package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
)

func newRedisCache(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, "learnhub:"), srv
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, srv := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "summary", map[string]int{"pending": 3}, time.Minute))
	assert.True(t, srv.Exists("learnhub:summary"))

	var got map[string]int
	require.NoError(t, repo.Get(ctx, "summary", &got))
	assert.Equal(t, 3, got["pending"])

	srv.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "summary", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, srv := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "trainer-applications:summary", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "trainer-applications:other", 2, time.Minute))
	require.NoError(t, repo.Set(ctx, "unrelated", 3, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "trainer-applications:*"))
	assert.False(t, srv.Exists("learnhub:trainer-applications:summary"))
	assert.False(t, srv.Exists("learnhub:trainer-applications:other"))
	assert.True(t, srv.Exists("learnhub:unrelated"))
}

func TestCacheRepositoryWithoutClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil, "")
	var dest int
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
}
