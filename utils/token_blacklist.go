package utils

import (
	"context"
	"sync"
	"time"
)

var (
	revoked   = map[string]time.Time{}
	revokedMu sync.RWMutex
)

// BlacklistToken revokes a token id (jti) until its natural expiration.
func BlacklistToken(tokenID string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 || tokenID == "" {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, "jwt:blacklist:"+tokenID, "1", ttl).Err(); err == nil {
			return
		}
	}
	revokedMu.Lock()
	revoked[tokenID] = expiresAt
	revokedMu.Unlock()
}

// IsTokenBlacklisted checks if a token id was revoked before natural expiration.
func IsTokenBlacklisted(tokenID string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, "jwt:blacklist:"+tokenID).Result()
		if err == nil && n > 0 {
			return true
		}
	}

	revokedMu.RLock()
	exp, ok := revoked[tokenID]
	revokedMu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		revokedMu.Lock()
		delete(revoked, tokenID)
		revokedMu.Unlock()
		return false
	}
	return true
}
