package utils

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

const (
	defaultCacheTTL = time.Hour
)

// CacheRecorder receives cache hit and miss events.
type CacheRecorder interface {
	RecordCacheHit(ctx context.Context, key string)
	RecordCacheMiss(ctx context.Context, key string)
}

var (
	cacheRecorder   CacheRecorder
	cacheRecorderMu sync.RWMutex
)

// SetCacheRecorder installs r as the sink for cache events. nil disables recording.
func SetCacheRecorder(r CacheRecorder) {
	cacheRecorderMu.Lock()
	cacheRecorder = r
	cacheRecorderMu.Unlock()
}

func recordCache(ctx context.Context, key string, hit bool) {
	cacheRecorderMu.RLock()
	r := cacheRecorder
	cacheRecorderMu.RUnlock()
	if r == nil {
		return
	}
	if hit {
		r.RecordCacheHit(ctx, cacheScope(key))
	} else {
		r.RecordCacheMiss(ctx, cacheScope(key))
	}
}

// cacheScope trims "cache:posts:list:page=1" down to "posts:list".
func cacheScope(key string) string {
	parts := strings.Split(strings.TrimPrefix(key, "cache:"), ":")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ":")
}

// CacheGetBytes returns cached bytes for a key from Redis.
func CacheGetBytes(key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		if Sugar != nil {
			Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		}
		recordCache(ctx, key, false)
		return nil, false
	}
	recordCache(ctx, key, true)
	return b, true
}

// CacheSetBytes stores bytes with default TTL.
func CacheSetBytes(key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		if Sugar != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
	}
}

// CacheSetJSON marshals v and stores JSON bytes.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	if GetRedis() == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	CacheSetBytes(key, b, ttl)
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func InvalidateByPrefix(prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // bounded rounds
		keys, cur, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			break
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			break
		}
	}
}
