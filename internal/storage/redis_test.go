package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisPropensityCacheRoundTrip(t *testing.T) {
	cache := NewRedisPropensityCache(newTestRedis(t))
	ctx := context.Background()

	result := &models.PropensityResult{
		LeadID:     "lead-1",
		Score:      0.75,
		Segment:    models.SegmentHot,
		Reasoning:  []string{"3 events scored"},
		ComputedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, cache.Put(ctx, result, time.Hour))

	cached, err := cache.Get(ctx, "lead-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, result.Score, cached.Score)
	assert.Equal(t, result.Segment, cached.Segment)
	assert.Equal(t, result.Reasoning, cached.Reasoning)
}

func TestRedisPropensityCacheMiss(t *testing.T) {
	cache := NewRedisPropensityCache(newTestRedis(t))

	cached, err := cache.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisOrganicSalesCounter(t *testing.T) {
	counter := NewRedisOrganicSalesCounter(newTestRedis(t))
	ctx := context.Background()

	day1 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day4 := day1.AddDate(0, 0, 3)

	require.NoError(t, counter.IncrDaily(ctx, "brand-1", day1, 100))
	require.NoError(t, counter.IncrDaily(ctx, "brand-1", day1, 50.5))
	require.NoError(t, counter.IncrDaily(ctx, "brand-1", day2, 20))
	require.NoError(t, counter.IncrDaily(ctx, "other-brand", day1, 999))

	series, err := counter.DailySeries(ctx, "brand-1", day1, day4)
	require.NoError(t, err)
	// Days with no sales are absent, not zero
	require.Len(t, series, 2)
	assert.Equal(t, day1, series[0].Date)
	assert.InDelta(t, 150.5, series[0].Value, 1e-9)
	assert.Equal(t, day2, series[1].Date)
	assert.InDelta(t, 20.0, series[1].Value, 1e-9)
}

func TestInMemoryLedgerStoreIsolation(t *testing.T) {
	store := NewInMemoryLedgerStore()
	ctx := context.Background()

	ledger := &models.AttributionLedger{
		LeadID: "lead-1",
		Touchpoints: []models.TouchpointRecord{
			{Source: "meta", Timestamp: time.Now()},
		},
	}
	require.NoError(t, store.SaveLedger(ctx, ledger))

	// Mutating the fetched copy must not leak back into the store
	fetched, err := store.GetLedger(ctx, "lead-1")
	require.NoError(t, err)
	fetched.Touchpoints[0].Source = "mutated"

	again, err := store.GetLedger(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "meta", again.Touchpoints[0].Source)
}

func TestInMemoryJourneyStoreBatchCeiling(t *testing.T) {
	store := NewInMemoryJourneyStore()
	ctx := context.Background()

	ids := make([]string, 11)
	for i := range ids {
		ids[i] = "lead"
	}

	_, err := store.ListTransactionsByLeads(ctx, ids)
	assert.Error(t, err)

	_, err = store.ListTransactionsByLeads(ctx, ids[:10])
	assert.NoError(t, err)
}
