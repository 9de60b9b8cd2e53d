package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
)

// PlanKeyPrefix namespaces cached plans.
const PlanKeyPrefix = "screenpass:plan:"

// PlanCache stores encoded plans. A miss is (nil, nil).
type PlanCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisPlanCache implements PlanCache with Redis.
type RedisPlanCache struct {
	client *redis.Client
}

// NewRedisPlanCache creates a Redis-backed plan cache.
func NewRedisPlanCache(client *redis.Client) *RedisPlanCache {
	return &RedisPlanCache{client: client}
}

// Get returns the value stored at key.
func (c *RedisPlanCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores value at key with a TTL.
func (c *RedisPlanCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes key.
func (c *RedisPlanCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// CacheConfig configures CachedPlanCatalog.
type CacheConfig struct {
	TTL time.Duration

	// BreakerThreshold is the number of consecutive cache failures that
	// open the circuit. While open, lookups go straight to the source.
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// DefaultCacheConfig returns the defaults used when nothing is configured.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:              5 * time.Minute,
		BreakerThreshold: 3,
		BreakerTimeout:   30 * time.Second,
	}
}

// CachedPlanCatalog is a read-through cache in front of a PlanCatalog.
// Cache failures never fail a lookup.
type CachedPlanCatalog struct {
	source  domain.PlanCatalog
	cache   PlanCache
	config  CacheConfig
	breaker *gobreaker.CircuitBreaker[[]byte]
	metrics observability.Metrics
	logger  *slog.Logger
}

// NewCachedPlanCatalog wraps source with cache.
func NewCachedPlanCatalog(source domain.PlanCatalog, cache PlanCache, config CacheConfig, metrics observability.Metrics, logger *slog.Logger) *CachedPlanCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	defaults := DefaultCacheConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.BreakerThreshold == 0 {
		config.BreakerThreshold = defaults.BreakerThreshold
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = defaults.BreakerTimeout
	}

	return &CachedPlanCatalog{
		source:  source,
		cache:   cache,
		config:  config,
		metrics: metrics,
		logger:  logger,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "plan-cache",
			Timeout: config.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.BreakerThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		}),
	}
}

// Get returns the plan from the cache, loading and storing it on a miss.
func (c *CachedPlanCatalog) Get(ctx context.Context, planID uuid.UUID) (*domain.Plan, error) {
	key := PlanKeyPrefix + planID.String()

	cached, err := c.breaker.Execute(func() ([]byte, error) {
		return c.cache.Get(ctx, key)
	})
	switch {
	case err != nil:
		c.bypass("get", err)
	case cached == nil:
		c.metrics.Counter(observability.MetricPlanCacheMisses, 1)
	default:
		var plan domain.Plan
		if err := json.Unmarshal(cached, &plan); err == nil {
			c.metrics.Counter(observability.MetricPlanCacheHits, 1)
			return &plan, nil
		}
		c.logger.Warn("discarding undecodable cached plan", "plan_id", planID)
		c.metrics.Counter(observability.MetricPlanCacheMisses, 1)
	}

	plan, err := c.source.Get(ctx, planID)
	if err != nil || plan == nil {
		return plan, err
	}
	c.store(ctx, key, plan)
	return plan, nil
}

// Refresh loads the plan from the source and rewrites its cache entry,
// dropping the entry when the plan no longer exists.
func (c *CachedPlanCatalog) Refresh(ctx context.Context, planID uuid.UUID) (*domain.Plan, error) {
	key := PlanKeyPrefix + planID.String()
	plan, err := c.source.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		if _, err := c.breaker.Execute(func() ([]byte, error) {
			return nil, c.cache.Delete(ctx, key)
		}); err != nil {
			c.bypass("delete", err)
		}
		return nil, nil
	}
	c.store(ctx, key, plan)
	return plan, nil
}

// Fresh returns a view of the catalog whose lookups always reach the
// source. Renewal and subscription writes read plans through it so a
// deactivated plan is seen at once.
func (c *CachedPlanCatalog) Fresh() *FreshPlanCatalog {
	return &FreshPlanCatalog{cached: c}
}

func (c *CachedPlanCatalog) store(ctx context.Context, key string, plan *domain.Plan) {
	encoded, err := json.Marshal(plan)
	if err != nil {
		return
	}
	if _, err := c.breaker.Execute(func() ([]byte, error) {
		return nil, c.cache.Set(ctx, key, encoded, c.config.TTL)
	}); err != nil {
		c.bypass("set", err)
	}
}

// ListActive is not cached.
func (c *CachedPlanCatalog) ListActive(ctx context.Context) ([]domain.Plan, error) {
	return c.source.ListActive(ctx)
}

// FreshPlanCatalog implements domain.PlanCatalog by refreshing the cache
// on every lookup.
type FreshPlanCatalog struct {
	cached *CachedPlanCatalog
}

func (f *FreshPlanCatalog) Get(ctx context.Context, planID uuid.UUID) (*domain.Plan, error) {
	return f.cached.Refresh(ctx, planID)
}

func (f *FreshPlanCatalog) ListActive(ctx context.Context) ([]domain.Plan, error) {
	return f.cached.ListActive(ctx)
}

// State reports the breaker state for health checks.
func (c *CachedPlanCatalog) State() gobreaker.State {
	return c.breaker.State()
}

func (c *CachedPlanCatalog) bypass(op string, err error) {
	c.metrics.Counter(observability.MetricPlanCacheBypassed, 1, observability.T("op", op))
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return
	}
	c.logger.Warn("plan cache unavailable", "op", op, "error", err)
}
