package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/legallens/internal/ai"
	"github.com/spigell/legallens/internal/metrics"
	"github.com/spigell/legallens/internal/tender"
	"github.com/spigell/legallens/internal/utils"
)

const (
	keyPrefix  = "legallens:context:"
	DefaultTTL = 6 * time.Hour
)

type Config struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (c *Config) Enabled() bool {
	return c != nil && c.Addr != ""
}

func NewClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// Retriever is a read-through cache in front of another context retriever.
// Fallback contexts are never stored, and cache errors never fail a lookup.
type Retriever struct {
	next    ai.ContextRetriever
	redis   *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewRetriever(next ai.ContextRetriever, client *redis.Client, ttl time.Duration, log *zap.Logger, m *metrics.Metrics) *Retriever {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{next: next, redis: client, ttl: ttl, logger: log, metrics: m}
}

func Key(entity string) string {
	return keyPrefix + utils.Slug(entity)
}

func (r *Retriever) Retrieve(ctx context.Context, entity string) (tender.MarketContext, error) {
	key := Key(entity)
	log := r.logger.With(zap.String("cache_key", key))

	val, err := r.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var mc tender.MarketContext
		if jsonErr := json.Unmarshal([]byte(val), &mc); jsonErr == nil && !mc.Fallback {
			r.metrics.ObserveCache("hit")
			log.Debug("market context served from cache")
			return mc, nil
		}
		log.Warn("dropping unreadable cache entry")
		r.metrics.ObserveCache("error")
	case errors.Is(err, redis.Nil):
		r.metrics.ObserveCache("miss")
	default:
		r.metrics.ObserveCache("error")
		log.Warn("market context cache lookup failed", zap.Error(err))
	}

	mc, err := r.next.Retrieve(ctx, entity)
	if err != nil {
		return mc, err
	}

	if !mc.Fallback {
		if setErr := r.store(ctx, key, mc); setErr != nil {
			log.Warn("failed to cache market context", zap.Error(setErr))
		}
	}

	return mc, nil
}

func (r *Retriever) store(ctx context.Context, key string, mc tender.MarketContext) error {
	data, err := json.Marshal(mc)
	if err != nil {
		return fmt.Errorf("marshal market context: %w", err)
	}
	return r.redis.Set(ctx, key, data, r.ttl).Err()
}
