package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

const (
	cartKeyPrefix        = "cart:"
	cartVersionKeyPrefix = "cart:ver:"
	defaultCacheTTL      = 5 * time.Minute
	// Outlives any in-flight read; refreshed on every bump.
	versionKeyTTL = 24 * time.Hour
)

// cachedLine keeps the owner id, which the JSON form of CartLine hides.
type cachedLine struct {
	*models.CartLine
	UserID string `json:"userId"`
}

var _ CartCache = (*RedisCartCache)(nil)

// RedisCartCache implements CartCache using Redis.
type RedisCartCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *logrus.Entry
}

// NewRedisClient connects to the configured Redis server.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisCartCache creates a Redis-backed cart cache.
func NewRedisCartCache(client redis.UniversalClient, ttl time.Duration) *RedisCartCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCartCache{
		client: client,
		ttl:    ttl,
		logger: logging.New("cart-cache"),
	}
}

// Get returns the cached lines for a user or ErrCacheMiss.
func (c *RedisCartCache) Get(ctx context.Context, userID string) ([]*models.CartLine, error) {
	data, err := c.client.Get(ctx, cartKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		c.logger.WithField("user_id", userID).Debug("Cache miss")
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Cache get error")
		return nil, err
	}

	var cached []cachedLine
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	lines := make([]*models.CartLine, 0, len(cached))
	for _, cl := range cached {
		if cl.CartLine == nil {
			continue
		}
		cl.CartLine.UserID = cl.UserID
		lines = append(lines, cl.CartLine)
	}

	c.logger.WithField("user_id", userID).Debug("Cache hit")
	return lines, nil
}

// Version returns the cart's invalidation counter, zero when never bumped.
func (c *RedisCartCache) Version(ctx context.Context, userID string) (int64, error) {
	v, err := c.client.Get(ctx, cartVersionKeyPrefix+userID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// Set stores the lines for a user if the cart version still equals version.
// A cart invalidated after version was read yields ErrCacheStale and is not
// written.
func (c *RedisCartCache) Set(ctx context.Context, userID string, version int64, lines []*models.CartLine) error {
	cached := make([]cachedLine, 0, len(lines))
	for _, l := range lines {
		cached = append(cached, cachedLine{CartLine: l, UserID: l.UserID})
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}

	verKey := cartVersionKeyPrefix + userID
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return ErrCacheStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cartKeyPrefix+userID, data, c.ttl)
			return nil
		})
		return err
	}, verKey)

	switch {
	case err == redis.TxFailedErr || err == ErrCacheStale:
		c.logger.WithFields(logging.Fields{
			"user_id": userID,
			"version": version,
		}).Debug("Cart changed during read, not cached")
		return ErrCacheStale
	case err != nil:
		c.logger.WithFields(logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Cache set error")
		return err
	}

	c.logger.WithFields(logging.Fields{
		"user_id": userID,
		"lines":   len(lines),
		"ttl":     c.ttl.String(),
	}).Debug("Cart cached")
	return nil
}

// Invalidate drops the cached cart of a user and bumps its version so that
// reads started earlier cannot store their result.
func (c *RedisCartCache) Invalidate(ctx context.Context, userID string) error {
	verKey := cartVersionKeyPrefix + userID
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, verKey)
		pipe.Expire(ctx, verKey, versionKeyTTL)
		pipe.Del(ctx, cartKeyPrefix+userID)
		return nil
	})
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Cache invalidate error")
		return err
	}
	return nil
}
