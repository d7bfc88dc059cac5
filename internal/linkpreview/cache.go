package linkpreview

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lalith-99/teamchat/internal/metrics"
	"github.com/lalith-99/teamchat/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedFetcher keeps successful previews in Redis so the same link pasted
// into several channels is fetched once. Cache errors degrade to a direct
// fetch.
type CachedFetcher struct {
	next   Fetcher
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedFetcher(next Fetcher, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedFetcher {
	return &CachedFetcher{
		next:   next,
		client: client,
		prefix: "linkpreview:",
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, rawURL string) (*models.LinkPreview, error) {
	key := c.prefix + rawURL

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p models.LinkPreview
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			metrics.LinkPreviewFetchesTotal.WithLabelValues("hit").Inc()
			return &p, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("link preview cache read failed", zap.Error(err))
	}

	p, err := c.next.Fetch(ctx, rawURL)
	if err != nil || p == nil {
		return p, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("link preview cache write failed", zap.Error(err))
		}
	}
	return p, nil
}
