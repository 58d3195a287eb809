// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/reportriser/backend/internal/config"
)

const defaultRedisPingTimeout = 5 * time.Second

// Redis backs the vitals cache, magic-link tokens and rate limit windows.
type Redis struct {
	Client      *redis.Client
	pingTimeout time.Duration
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.PoolTimeout > 0 {
		opts.PoolTimeout = cfg.PoolTimeout
	}
	if cfg.IdleTimeout > 0 {
		opts.ConnMaxIdleTime = cfg.IdleTimeout
	}

	r := &Redis{
		Client:      redis.NewClient(opts),
		pingTimeout: cfg.PingTimeout,
	}
	if r.pingTimeout <= 0 {
		r.pingTimeout = defaultRedisPingTimeout
	}

	ctx, span := StartSpan(ctx, "redis.connect")
	defer span.End()

	if err := r.Ping(ctx); err != nil {
		SetSpanError(ctx, err)
		_ = r.Client.Close()
		return nil, err
	}

	return r, nil
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// Ping satisfies the health checker.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.pingTimeout)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

// Collectors exposes pool counters read at scrape time.
func (r *Redis) Collectors() []prometheus.Collector {
	stat := func(name, help string, valueType prometheus.ValueType, read func(*redis.PoolStats) uint32) prometheus.Collector {
		desc := prometheus.Opts{
			Namespace: metricsNamespace,
			Subsystem: "redis_pool",
			Name:      name,
			Help:      help,
		}
		fn := func() float64 { return float64(read(r.Client.PoolStats())) }
		if valueType == prometheus.CounterValue {
			return prometheus.NewCounterFunc(prometheus.CounterOpts(desc), fn)
		}
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts(desc), fn)
	}

	return []prometheus.Collector{
		stat("hits_total", "Connections reused from the pool.", prometheus.CounterValue,
			func(s *redis.PoolStats) uint32 { return s.Hits }),
		stat("misses_total", "Connections dialed because the pool was empty.", prometheus.CounterValue,
			func(s *redis.PoolStats) uint32 { return s.Misses }),
		stat("timeouts_total", "Waits for a free connection that timed out.", prometheus.CounterValue,
			func(s *redis.PoolStats) uint32 { return s.Timeouts }),
		stat("connections", "Open connections.", prometheus.GaugeValue,
			func(s *redis.PoolStats) uint32 { return s.TotalConns }),
		stat("idle_connections", "Idle connections.", prometheus.GaugeValue,
			func(s *redis.PoolStats) uint32 { return s.IdleConns }),
	}
}
