package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"student-chat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Gate answers whether a credential was explicitly invalidated before its
// natural expiry. Lookups fail open: an unreachable store reports "not revoked".
type Gate struct {
	client    redis.Cmdable
	keyPrefix string
	timeout   time.Duration
}

func NewGate(client redis.Cmdable, keyPrefix string, timeout time.Duration) *Gate {
	return &Gate{
		client:    client,
		keyPrefix: keyPrefix,
		timeout:   timeout,
	}
}

func (g *Gate) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return g.keyPrefix + hex.EncodeToString(sum[:])
}

// IsRevoked reports whether token is blacklisted.
func (g *Gate) IsRevoked(ctx context.Context, token string) bool {
	if g.client == nil {
		return false
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	n, err := g.client.Exists(ctx, g.key(token)).Result()
	if err != nil {
		logger.Warn("Revocation lookup failed, treating credential as valid: %v", err)
		return false
	}
	return n == 1
}

// Revoke blacklists token until expiresAt. Tokens already past expiry are
// not stored.
func (g *Gate) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if g.client == nil {
		logger.Warn("Revocation store not configured, credential stays valid until expiry")
		return nil
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.client.Set(ctx, g.key(token), "logged_out", ttl).Err(); err != nil {
		return err
	}
	logger.Debug("Credential revoked for %s", ttl.Round(time.Second))
	return nil
}

func (g *Gate) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, g.timeout)
}

// withTimeout bounds a store call. A non-positive timeout means no bound.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
