package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	_ "github.com/fleetgrid/fleetgrid/testing"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLocker(client), mr
}

func TestLockerMutualExclusion(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, TrialSweepLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A second worker cannot claim the held lock.
	ok, err = locker.Acquire(ctx, TrialSweepLockKey, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// Independent keys do not contend.
	ok, err = locker.Acquire(ctx, CertScanLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.Release(ctx, TrialSweepLockKey))
	ok, err = locker.Acquire(ctx, TrialSweepLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLockerTTLFreesCrashedHolder(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, TrialSweepLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = locker.Acquire(ctx, TrialSweepLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
