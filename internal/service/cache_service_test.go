package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rzouga01/LearnHub-sub001/internal/dto"
	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	"github.com/Rzouga01/LearnHub-sub001/internal/repository"
)

type cacheOpRecorder struct {
	hits, misses int
}

func (r *cacheOpRecorder) RecordCacheOperation(hit bool, _ time.Duration) {
	if hit {
		r.hits++
		return
	}
	r.misses++
}

type brokenCacheRepo struct{}

func (brokenCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("connection reset")
}

func (brokenCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection reset")
}

func (brokenCacheRepo) DeleteByPattern(context.Context, string) error {
	return errors.New("connection reset")
}

func TestCacheServiceRoundTripThroughRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	metrics := &cacheOpRecorder{}
	cache := NewCacheService(repository.NewCacheRepository(client, "learnhub:"), metrics, 30*time.Second, nil)
	ctx := context.Background()

	var summary dto.ApplicationSummaryResponse
	assert.False(t, cache.Get(ctx, summaryCacheKey, &summary))

	cache.Set(ctx, summaryCacheKey, dto.ApplicationSummaryResponse{
		Counts: map[models.ApplicationStatus]int{models.ApplicationStatusPending: 4},
		Total:  4,
	}, 0)
	assert.Equal(t, 30*time.Second, srv.TTL("learnhub:"+summaryCacheKey))

	require.True(t, cache.Get(ctx, summaryCacheKey, &summary))
	assert.Equal(t, 4, summary.Counts[models.ApplicationStatusPending])

	cache.Invalidate(ctx, "trainer-applications:*")
	assert.False(t, cache.Get(ctx, summaryCacheKey, &summary))

	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 2, metrics.misses)
}

func TestCacheServiceFailsOpen(t *testing.T) {
	cache := NewCacheService(brokenCacheRepo{}, nil, 0, nil)
	ctx := context.Background()

	var dest int
	assert.False(t, cache.Get(ctx, "k", &dest))
	assert.NotPanics(t, func() {
		cache.Set(ctx, "k", 1, time.Minute)
		cache.Invalidate(ctx, "*")
	})
}

func TestCacheServiceDisabled(t *testing.T) {
	cache := NewCacheService(nil, nil, 0, nil)
	assert.False(t, cache.Enabled())

	var dest int
	assert.False(t, cache.Get(context.Background(), "k", &dest))

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
}
