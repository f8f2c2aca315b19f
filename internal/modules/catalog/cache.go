package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const listKey = "catalog:products"

// CachedRepository fronts a Repository with redis. Redis failures fall through to
// the underlying repository.
type CachedRepository struct {
	next   Repository
	client redis.UniversalClient
	ttl    time.Duration
	logger logrus.FieldLogger
}

// NewCachedRepository wraps next with a redis read-through cache.
func NewCachedRepository(next Repository, client redis.UniversalClient, ttl time.Duration, logger logrus.FieldLogger) *CachedRepository {
	return &CachedRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func (r *CachedRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	key := "catalog:product:" + id.String()
	var p Product
	if r.get(ctx, key, &p) {
		return &p, nil
	}
	found, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, found)
	return found, nil
}

func (r *CachedRepository) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	key := "catalog:barcode:" + barcode
	var p Product
	if r.get(ctx, key, &p) {
		return &p, nil
	}
	found, err := r.next.GetByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, found)
	return found, nil
}

func (r *CachedRepository) List(ctx context.Context) ([]*Product, error) {
	var products []*Product
	if r.get(ctx, listKey, &products) {
		return products, nil
	}
	products, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	r.set(ctx, listKey, products)
	return products, nil
}

// Invalidate drops the cached list and every entry of the given products.
func (r *CachedRepository) Invalidate(ctx context.Context, ids ...uuid.UUID) error {
	keys := []string{listKey}
	for _, id := range ids {
		keys = append(keys, "catalog:product:"+id.String())
		if p, err := r.next.GetByID(ctx, id); err == nil && p.Barcode != "" {
			keys = append(keys, "catalog:barcode:"+p.Barcode)
		}
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *CachedRepository) get(ctx context.Context, key string, dest interface{}) bool {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("catalog cache read failed")
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("catalog cache entry corrupt")
		return false
	}
	return true
}

func (r *CachedRepository) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("catalog cache write failed")
	}
}
