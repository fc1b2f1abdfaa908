package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const (
	defaultRevocationPrefix = "revoked"
	// positiveTTL bounds cache entries filled from the durable store, whose
	// answer does not carry the token expiry.
	positiveTTL = 15 * time.Minute
)

// CachedRevocationStore is a read-through cache in front of a durable
// RevocationStore. Only positive answers are cached, so a revocation written
// by another instance is seen on the next lookup. Redis failures fall back to
// the durable store.
//
// Key format: revoked:<jti> = reason
type CachedRevocationStore struct {
	client *redis.Client
	next   ports.RevocationStore
	prefix string
	log    zerolog.Logger
}

var _ ports.RevocationStore = (*CachedRevocationStore)(nil)

func NewCachedRevocationStore(client *redis.Client, next ports.RevocationStore, log zerolog.Logger) *CachedRevocationStore {
	return &CachedRevocationStore{client: client, next: next, prefix: defaultRevocationPrefix, log: log}
}

// Revoke writes through: the durable store first, then the cache entry with a
// TTL matching the token's remaining lifetime.
func (c *CachedRevocationStore) Revoke(ctx context.Context, token domain.RevokedToken) error {
	if err := c.next.Revoke(ctx, token); err != nil {
		return err
	}
	ttl := token.ExpiresAt.Sub(token.RevokedAt)
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.key(token.JTI), string(token.Reason), ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("jti", token.JTI).Msg("revocation cache write failed")
	}
	return nil
}

func (c *CachedRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	start := time.Now()
	err := c.client.Get(ctx, c.key(jti)).Err()
	metrics.RevocationLookupDuration.WithLabelValues("cache").Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn().Err(err).Msg("revocation cache read failed")
	}

	start = time.Now()
	revoked, err := c.next.IsRevoked(ctx, jti)
	metrics.RevocationLookupDuration.WithLabelValues("store").Observe(time.Since(start).Seconds())
	if err != nil {
		return false, err
	}
	if revoked {
		if err := c.client.Set(ctx, c.key(jti), "1", positiveTTL).Err(); err != nil {
			c.log.Warn().Err(err).Msg("revocation cache fill failed")
		}
	}
	return revoked, nil
}

// PruneExpired delegates to the durable store; cache keys expire on their own.
func (c *CachedRevocationStore) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	return c.next.PruneExpired(ctx, before)
}

func (c *CachedRevocationStore) key(jti string) string {
	return fmt.Sprintf("%s:%s", c.prefix, jti)
}
