// Package cache provides redis-backed memoization for expensive scrape calls.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

var client *redis.Client

// Init connects the package-level redis client. Until Init is called,
// Memoize degrades to calling the wrapped function directly.
func Init(addr string) {
	client = redis.NewClient(&redis.Options{Addr: addr})
}

// Memoize caches a function result in Redis under the given key. Cache
// failures are ignored; the wrapped function is the source of truth.
func Memoize[T any](key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var result T
	if client == nil {
		return fn()
	}
	ctx := context.Background()

	cachedData, err := client.Get(ctx, key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(cachedData, &result); jsonErr == nil {
			return result, nil
		}
	}

	result, err = fn()
	if err != nil {
		return result, err
	}

	cacheData, _ := json.Marshal(result)
	client.Set(ctx, key, cacheData, ttl)

	return result, nil
}
