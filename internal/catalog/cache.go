package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"webshop/internal/model"
)

// ErrCacheMiss means the cache holds no usable product listing.
var ErrCacheMiss = errors.New("product cache miss")

// Cache mirrors the catalog for reads. It is never the source of truth.
type Cache interface {
	GetAll(ctx context.Context) ([]model.Product, error)
	PutAll(ctx context.Context, products []model.Product) error
	Put(ctx context.Context, p model.Product) error
}

// NopCache always misses.
type NopCache struct{}

func (NopCache) GetAll(context.Context) ([]model.Product, error) { return nil, ErrCacheMiss }
func (NopCache) PutAll(context.Context, []model.Product) error { return nil }
func (NopCache) Put(context.Context, model.Product) error { return nil }

const allProductIDsKey = "all_product_ids"

func productKey(id int64) string { return fmt.Sprintf("product:%d", id) }

// RedisCache stores one JSON value per product plus a set of all ids.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) GetAll(ctx context.Context) ([]model.Product, error) {
	ids, err := c.client.SMembers(ctx, allProductIDsKey).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("smembers: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrCacheMiss
	}
	keys := make([]string, 0, len(ids))
	for _, s := range ids {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad product id %q in cache: %w", s, err)
		}
		keys = append(keys, productKey(id))
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}
	products := make([]model.Product, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// expired or evicted entry; a partial listing is not served
			return nil, ErrCacheMiss
		}
		var p model.Product
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("decode cached product: %w", err)
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (c *RedisCache) PutAll(ctx context.Context, products []model.Product) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, allProductIDsKey)
	ids := make([]interface{}, 0, len(products))
	for _, p := range products {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode product %d: %w", p.ID, err)
		}
		pipe.Set(ctx, productKey(p.ID), b, c.ttl)
		ids = append(ids, p.ID)
	}
	if len(ids) > 0 {
		pipe.SAdd(ctx, allProductIDsKey, ids...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("populate product cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Put(ctx context.Context, p model.Product) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product %d: %w", p.ID, err)
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, productKey(p.ID), b, c.ttl)
	pipe.SAdd(ctx, allProductIDsKey, p.ID)
	_, err = pipe.Exec(ctx)
	return err
}
