package linkpreview

import (
	"context"
	"time"

	"github.com/lalith-99/teamchat/internal/metrics"
	"github.com/lalith-99/teamchat/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	MaxPreviews = 5
	concurrency = 4
)

type Resolver struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *zap.Logger
}

func NewResolver(fetcher Fetcher, timeout time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, timeout: timeout, logger: logger}
}

// Resolve fetches up to MaxPreviews distinct URLs concurrently under one
// deadline and returns the previews that succeeded, in input order.
func (r *Resolver) Resolve(ctx context.Context, urls []string) []models.LinkPreview {
	urls = dedupe(urls, MaxPreviews)
	if len(urls) == 0 {
		return []models.LinkPreview{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make([]*models.LinkPreview, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, u := range urls {
		i, u := i, u // per-iteration copy (pre-Go 1.22 loopvar semantics)
		g.Go(func() error {
			p, err := r.fetcher.Fetch(gctx, u)
			if err != nil {
				metrics.LinkPreviewFetchesTotal.WithLabelValues("failed").Inc()
				r.logger.Debug("link preview failed", zap.String("url", u), zap.Error(err))
				// per-URL failures must not cancel the siblings
				return nil
			}
			if p != nil {
				metrics.LinkPreviewFetchesTotal.WithLabelValues("resolved").Inc()
			}
			results[i] = p
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.LinkPreview, 0, len(results))
	for _, p := range results {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func dedupe(urls []string, limit int) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out
}
