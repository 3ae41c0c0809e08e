package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/radiusdt/vector-attribution/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisPropensityCache implements PropensityCache on Redis. One JSON
// value per lead under propensity:<leadID> with a TTL.
type RedisPropensityCache struct {
	client *redis.Client
}

func NewRedisPropensityCache(client *redis.Client) *RedisPropensityCache {
	return &RedisPropensityCache{client: client}
}

func propensityKey(leadID string) string {
	return "propensity:" + leadID
}

func (c *RedisPropensityCache) Put(ctx context.Context, result *models.PropensityResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal propensity result: %w", err)
	}
	if err := c.client.Set(ctx, propensityKey(result.LeadID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache propensity result: %w", err)
	}
	return nil
}

func (c *RedisPropensityCache) Get(ctx context.Context, leadID string) (*models.PropensityResult, error) {
	data, err := c.client.Get(ctx, propensityKey(leadID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read propensity cache: %w", err)
	}

	var result models.PropensityResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse cached propensity result: %w", err)
	}
	return &result, nil
}

// RedisOrganicSalesCounter implements OrganicSalesCounter on Redis.
// One float counter per brand per day under organic:<brand>:<date>,
// expiring after the retention window.
type RedisOrganicSalesCounter struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisOrganicSalesCounter(client *redis.Client) *RedisOrganicSalesCounter {
	return &RedisOrganicSalesCounter{
		client:    client,
		retention: 90 * 24 * time.Hour,
	}
}

func organicSalesKey(brandID string, day time.Time) string {
	return "organic:" + brandID + ":" + day.Format("2006-01-02")
}

func (c *RedisOrganicSalesCounter) IncrDaily(ctx context.Context, brandID string, day time.Time, amount float64) error {
	key := organicSalesKey(brandID, day)

	pipe := c.client.Pipeline()
	pipe.IncrByFloat(ctx, key, amount)
	pipe.Expire(ctx, key, c.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment organic sales: %w", err)
	}
	return nil
}

func (c *RedisOrganicSalesCounter) DailySeries(ctx context.Context, brandID string, start, end time.Time) ([]models.MetricPoint, error) {
	var keys []string
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		keys = append(keys, organicSalesKey(brandID, day))
		days = append(days, day)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read organic series: %w", err)
	}

	var out []models.MetricPoint
	for i, v := range values {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			continue
		}
		out = append(out, models.MetricPoint{Date: days[i], Value: f})
	}
	return out, nil
}
