// AngelaMos | 2026
// provider.go

package vitals

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/reportriser/backend/internal/core"
)

// FallbackProvider never fails: when the wrapped provider errors it
// returns FallbackMeasurement so report generation can continue.
type FallbackProvider struct {
	next    Provider
	logger  *slog.Logger
	metrics *core.Metrics
}

func NewFallbackProvider(
	next Provider,
	logger *slog.Logger,
	metrics *core.Metrics,
) *FallbackProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackProvider{next: next, logger: logger, metrics: metrics}
}

func (p *FallbackProvider) Fetch(
	ctx context.Context,
	siteURL string,
) (Measurement, error) {
	m, err := p.next.Fetch(ctx, siteURL)
	if err == nil {
		err = m.Validate()
	}
	if err == nil {
		return m, nil
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return Measurement{}, ctx.Err()
	}

	p.logger.Warn("vitals provider failed, using fallback measurement",
		"site", siteURL,
		"error", err,
	)
	if p.metrics != nil {
		p.metrics.VitalsFallbacks.Inc()
	}

	return FallbackMeasurement(), nil
}

type CacheOptions struct {
	Size        int
	TTL         time.Duration
	Redis       *redis.Client
	RedisPrefix string
	Logger      *slog.Logger
	Metrics     *core.Metrics
}

// CachedProvider keeps an in-process LRU in front of an optional Redis
// layer. Fallback measurements are never stored.
type CachedProvider struct {
	next    Provider
	local   *lru.LRU[string, Measurement]
	redis   *redis.Client
	prefix  string
	ttl     time.Duration
	logger  *slog.Logger
	metrics *core.Metrics
}

func NewCachedProvider(next Provider, opts CacheOptions) *CachedProvider {
	size := opts.Size
	if size <= 0 {
		size = 256
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedProvider{
		next:    next,
		local:   lru.NewLRU[string, Measurement](size, nil, ttl),
		redis:   opts.Redis,
		prefix:  opts.RedisPrefix,
		ttl:     ttl,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

func (p *CachedProvider) Fetch(
	ctx context.Context,
	siteURL string,
) (Measurement, error) {
	key := CacheKey(siteURL)

	if m, ok := p.local.Get(key); ok {
		p.record("memory", "hit")
		return m, nil
	}
	p.record("memory", "miss")

	if m, ok := p.getRemote(ctx, key); ok {
		p.record("redis", "hit")
		p.local.Add(key, m)
		return m, nil
	}

	m, err := p.next.Fetch(ctx, siteURL)
	if err != nil {
		return Measurement{}, err
	}

	if !m.Fallback {
		p.local.Add(key, m)
		p.setRemote(ctx, key, m)
	}

	return m, nil
}

func (p *CachedProvider) getRemote(ctx context.Context, key string) (Measurement, bool) {
	if p.redis == nil {
		return Measurement{}, false
	}

	raw, err := p.redis.Get(ctx, p.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn("vitals cache read failed", "error", err)
		}
		p.record("redis", "miss")
		return Measurement{}, false
	}

	var m Measurement
	if err := json.Unmarshal(raw, &m); err != nil {
		p.record("redis", "miss")
		return Measurement{}, false
	}

	return m, true
}

func (p *CachedProvider) setRemote(ctx context.Context, key string, m Measurement) {
	if p.redis == nil {
		return
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return
	}

	if err := p.redis.Set(ctx, p.prefix+key, raw, p.ttl).Err(); err != nil {
		p.logger.Warn("vitals cache write failed", "error", err)
	}
}

func (p *CachedProvider) record(layer, result string) {
	if p.metrics != nil {
		p.metrics.VitalsCacheHits.WithLabelValues(layer, result).Inc()
	}
}

// CacheKey maps equivalent spellings of a URL to one cache entry.
func CacheKey(siteURL string) string {
	return core.NormalizeURL(siteURL)
}
