package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/models"
)

const summaryKeyPrefix = "chulseok:summary"

// SummaryCache keeps day summaries in Redis. Misses and Redis failures both
// fall through to recomputation, so the cache is purely an accelerator.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSummaryCache constructs the cache.
func NewSummaryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SummaryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryCache{client: client, ttl: ttl, logger: logger}
}

// GetSummary returns a cached summary when present.
func (c *SummaryCache) GetSummary(ctx context.Context, date, className string) (*models.DaySummary, bool) {
	raw, err := c.client.Get(ctx, summaryKey(date, className)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("summary cache read", zap.Error(err))
		}
		return nil, false
	}
	var summary models.DaySummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		c.logger.Warn("summary cache decode", zap.Error(err))
		return nil, false
	}
	return &summary, true
}

// SetSummary stores a summary with the configured TTL.
func (c *SummaryCache) SetSummary(ctx context.Context, date, className string, summary *models.DaySummary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, summaryKey(date, className), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("summary cache write", zap.Error(err))
	}
}

// Invalidate drops every cached summary for a date, all class scopes included.
func (c *SummaryCache) Invalidate(ctx context.Context, date string) {
	pattern := fmt.Sprintf("%s:%s:*", summaryKeyPrefix, date)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("summary cache invalidate", zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("summary cache scan", zap.Error(err))
	}
}

func summaryKey(date, className string) string {
	if className == "" {
		className = "all"
	}
	return fmt.Sprintf("%s:%s:%s", summaryKeyPrefix, date, className)
}
