package consent

import (
	"context"
	"log/slog"
	"time"

	platformredis "kycvault/internal/platform/redis"
	id "kycvault/pkg/domain"
)

// livenessTTL caps how long a no-expiry grant may be served from cache.
const livenessTTL = 5 * time.Minute

// LivenessCache keeps recent positive CheckLive answers in Redis so
// boundary access checks do not hit the store on every call. Entries for
// expiring grants carry the grant's remaining lifetime as TTL; cache
// errors degrade to a store read, never to a denial.
type LivenessCache struct {
	client *platformredis.Client
	logger *slog.Logger
}

func NewLivenessCache(client *platformredis.Client, logger *slog.Logger) *LivenessCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &LivenessCache{client: client, logger: logger}
}

func livenessKey(consentID id.ConsentID) string {
	return "consent:live:" + consentID.String()
}

// Get returns (live, hit). A miss or an unavailable cache is (false, false).
func (c *LivenessCache) Get(ctx context.Context, consentID id.ConsentID) (bool, bool) {
	if c == nil || c.client == nil {
		return false, false
	}
	val, err := c.client.Get(ctx, livenessKey(consentID)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// Set records a positive liveness answer. The TTL never outlives the
// grant itself.
func (c *LivenessCache) Set(ctx context.Context, consentID id.ConsentID, expiresAt *time.Time, now time.Time) {
	if c == nil || c.client == nil {
		return
	}
	ttl := livenessTTL
	if expiresAt != nil {
		if remaining := expiresAt.Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, livenessKey(consentID), "1", ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "liveness cache write failed",
			slog.String("consent_id", consentID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Invalidate drops the cached answer, called on revocation so a revoked
// grant cannot be served live from cache.
func (c *LivenessCache) Invalidate(ctx context.Context, consentID id.ConsentID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, livenessKey(consentID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "liveness cache invalidation failed",
			slog.String("consent_id", consentID.String()),
			slog.String("error", err.Error()),
		)
	}
}
