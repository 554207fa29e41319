package authcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const revokedKeyPrefix = "auth:revoked:"

// RevocationSet records tokens that must be rejected before their natural
// expiry (logout, refresh rotation). An in-memory front answers the hot
// path; Redis keeps the durable copy with a per-token TTL so revocations
// survive restarts and reach the worker process. Entries are monotonic:
// once added a token stays revoked until its own expiry, and expired
// entries are filtered on read so Exists never reports a dead token.
type RevocationSet struct {
	client *redis.Client
	front  *expirable.LRU[string, time.Time]
	now    func() time.Time
}

// NewRevocationSet constructs the set. maxTokenTTL bounds how long the
// in-memory front retains an entry and must be at least the longest token
// validity window handed to Add.
func NewRevocationSet(client *redis.Client, maxTokenTTL time.Duration) *RevocationSet {
	return &RevocationSet{
		client: client,
		front:  expirable.NewLRU[string, time.Time](0, nil, maxTokenTTL),
		now:    time.Now,
	}
}

// Add revokes a token until expiresAt. Idempotent; a token already past its
// expiry is dropped without touching storage.
func (s *RevocationSet) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	s.front.Add(token, expiresAt)
	if err := s.client.Set(ctx, revokedKeyPrefix+token, expiresAt.UTC().Format(time.RFC3339Nano), ttl).Err(); err != nil {
		return fmt.Errorf("authcache: revoke token: %w", errors.Join(shared.ErrBackingStoreUnavailable, err))
	}
	return nil
}

// Exists reports whether token is currently revoked. The in-memory front is
// authoritative for tokens revoked by this process; a miss falls through to
// Redis to pick up revocations issued elsewhere.
func (s *RevocationSet) Exists(ctx context.Context, token string) bool {
	if expiresAt, ok := s.front.Get(token); ok {
		return s.now().Before(expiresAt)
	}
	raw, err := s.client.Get(ctx, revokedKeyPrefix+token).Result()
	if err != nil {
		return false
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil || !s.now().Before(expiresAt) {
		return false
	}
	s.front.Add(token, expiresAt)
	return true
}

// RefreshAll merges every live revocation from Redis into the in-memory
// front. Merging (rather than swapping) is safe because the set is
// monotonic until expiry and reads filter expired values; a scan failure
// leaves the front as it was.
func (s *RevocationSet) RefreshAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, revokedKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("authcache: refresh revocations: %w", errors.Join(shared.ErrBackingStoreUnavailable, err))
		}
		expiresAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil || !s.now().Before(expiresAt) {
			continue
		}
		s.front.Add(key[len(revokedKeyPrefix):], expiresAt)
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("authcache: refresh revocations: %w", errors.Join(shared.ErrBackingStoreUnavailable, err))
	}
	return nil
}
