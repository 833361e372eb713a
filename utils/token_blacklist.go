package utils

import (
	"context"
	"sync"
	"time"
)

const (
	blacklistKeyPrefix = "jwt:blacklist:"
	blacklistTimeout   = 2 * time.Second
)

// revokedTokens is the in-process fallback used when Redis is absent or failing.
// Entries are dropped lazily once their token would have expired anyway.
type revokedTokens struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

var localRevoked = &revokedTokens{expiry: map[string]time.Time{}}

func (r *revokedTokens) add(token string, until time.Time) {
	r.mu.Lock()
	r.expiry[token] = until
	r.mu.Unlock()
}

func (r *revokedTokens) has(token string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.expiry[token]
	if !ok {
		return false
	}
	if now.After(until) {
		delete(r.expiry, token)
		return false
	}
	return true
}

// BlacklistToken revokes a token until it expires, in Redis when configured
// and in memory otherwise.
func BlacklistToken(token string, expiresAt time.Time) {
	if rc := GetRedis(); rc != nil {
		ttl := time.Until(expiresAt)
		if ttl <= 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), blacklistTimeout)
		defer cancel()
		err := rc.Set(ctx, blacklistKeyPrefix+token, "1", ttl).Err()
		if err == nil {
			return
		}
		Sugar.Warnf("blacklist token in redis failed, keeping it in memory: %v", err)
	}
	localRevoked.add(token, expiresAt)
}

// IsTokenBlacklisted reports whether token was revoked before its natural expiry.
func IsTokenBlacklisted(token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), blacklistTimeout)
		defer cancel()
		if n, err := rc.Exists(ctx, blacklistKeyPrefix+token).Result(); err == nil {
			return n > 0
		}
	}
	return localRevoked.has(token, time.Now())
}
