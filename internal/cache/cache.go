/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/blnkfinance/conciliator/config"
	redis_db "github.com/blnkfinance/conciliator/internal/redis-db"
	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// Cache is a read-through store for lookups that rarely change, such as account resolution.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get decodes the cached value into data. A miss is not an error and leaves data untouched.
	Get(ctx context.Context, key string, data interface{}) error

	Delete(ctx context.Context, key string) error
}

const (
	localCacheSize = 10000
	localCacheTTL  = time.Minute
)

// RedisCache layers a local TinyLFU cache over redis.
type RedisCache struct {
	cache *cache.Cache
}

func NewCache(cnf config.RedisConfig) (Cache, error) {
	r, err := redis_db.NewRedisClient([]string{cnf.Dns}, cnf.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	return NewCacheFromClient(r.Client()), nil
}

func NewCacheFromClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{cache: cache.New(&cache.Options{
		Redis:      client,
		LocalCache: cache.NewTinyLFU(localCacheSize, localCacheTTL),
	})}
}

// Set stores data under key for ttl.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - key string: The cache key.
// - data interface{}: The value to store.
// - ttl time.Duration: How long the value lives.
//
// Returns:
// - error: An error if the value could not be stored.
func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

// Get reads key into data. A missing key is not an error and leaves data untouched.
func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) error {
	err := r.cache.Get(ctx, key, data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Delete removes key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	err := r.cache.Delete(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
