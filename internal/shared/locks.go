package shared

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock keys for the scheduled sweeps. One worker at a time runs each.
const (
	TrialSweepLockKey = "locks:tenants:trial_sweep"
	CertScanLockKey   = "locks:compliance:cert_scan"
)

// Locker provides coarse mutual exclusion over Redis for scheduled
// jobs that must not run concurrently across workers.
type Locker struct {
	client *redis.Client
}

// NewLocker constructs a Locker.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Acquire claims the key with SET NX. Returns false when another holder
// already owns it. The ttl bounds how long a crashed holder blocks the
// next run.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

// Release frees the key so the next run can claim it.
func (l *Locker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}
