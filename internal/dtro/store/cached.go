package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"dtro/internal/dtro/models"
)

const (
	recordKeyPrefix = "dtro:record:"
	existsKeyPrefix = "dtro:exists:"

	defaultCacheTTL = 5 * time.Minute
)

// CachedStore decorates a Storage with a Redis read cache for single-record
// lookups. Cache failures degrade to the inner store; they never fail a
// request.
type CachedStore struct {
	inner  Storage
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// CachedOption configures a CachedStore.
type CachedOption func(*CachedStore)

// WithCacheTTL overrides the default cache entry lifetime.
func WithCacheTTL(ttl time.Duration) CachedOption {
	return func(c *CachedStore) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewCached wraps the inner store with a Redis cache.
func NewCached(inner Storage, client *redis.Client, logger *slog.Logger, opts ...CachedOption) (*CachedStore, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner storage is required")
	}
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &CachedStore{inner: inner, client: client, logger: logger, ttl: defaultCacheTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *CachedStore) CanSearch() bool { return c.inner.CanSearch() }

func (c *CachedStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	key := existsKeyPrefix + id.String()
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		return cached == "1", nil
	} else if err != redis.Nil {
		c.logger.Warn("record cache read failed", "key", key, "error", err)
	}

	exists, err := c.inner.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	value := "0"
	if exists {
		value = "1"
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("record cache write failed", "key", key, "error", err)
	}
	return exists, nil
}

func (c *CachedStore) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	key := recordKeyPrefix + id.String()
	if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var stored storedRecord
		if err := json.Unmarshal(cached, &stored); err == nil {
			return stored.toRecord(), nil
		}
		c.logger.Warn("record cache entry corrupt", "key", key)
	} else if err != redis.Nil {
		c.logger.Warn("record cache read failed", "key", key, "error", err)
	}

	record, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cacheRecord(ctx, record)
	return record, nil
}

func (c *CachedStore) Save(ctx context.Context, record *models.Record) error {
	if err := c.inner.Save(ctx, record); err != nil {
		return err
	}
	c.cacheRecord(ctx, record)
	return nil
}

func (c *CachedStore) Update(ctx context.Context, record *models.Record) error {
	if err := c.inner.Update(ctx, record); err != nil {
		return err
	}
	c.cacheRecord(ctx, record)
	return nil
}

func (c *CachedStore) SoftDelete(ctx context.Context, id uuid.UUID, deletionTime time.Time) error {
	if err := c.inner.SoftDelete(ctx, id, deletionTime); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedStore) Find(ctx context.Context, criteria models.SearchCriteria) (models.PaginatedResult[models.Record], error) {
	return c.inner.Find(ctx, criteria)
}

func (c *CachedStore) FindSince(ctx context.Context, since time.Time) ([]models.Record, error) {
	return c.inner.FindSince(ctx, since)
}

func (c *CachedStore) cacheRecord(ctx context.Context, record *models.Record) {
	data, err := json.Marshal(newStoredRecord(record))
	if err != nil {
		c.logger.Warn("record cache encode failed", "id", record.ID, "error", err)
		return
	}
	pipe := c.client.Pipeline()
	pipe.Set(ctx, recordKeyPrefix+record.ID.String(), data, c.ttl)
	existsValue := "1"
	if record.Deleted {
		existsValue = "0"
	}
	pipe.Set(ctx, existsKeyPrefix+record.ID.String(), existsValue, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("record cache write failed", "id", record.ID, "error", err)
	}
}

func (c *CachedStore) invalidate(ctx context.Context, id uuid.UUID) {
	keys := []string{recordKeyPrefix + id.String(), existsKeyPrefix + id.String()}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("record cache invalidation failed", "id", id, "error", err)
	}
}
