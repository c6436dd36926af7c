package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
)

const sweepLockTTL = 5 * time.Minute

// NewTrialSweepHandler expires trials whose window has closed. The sweep
// backs up lazy evaluation on read so notifications fire even for
// tenants nobody loads. A Redis lock keeps concurrent workers from
// running the sweep twice.
func NewTrialSweepHandler(svc *tenants.Service, locker *shared.Locker, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		ok, err := locker.Acquire(ctx, shared.TrialSweepLockKey, sweepLockTTL)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("trial sweep skipped, lock held")
			return nil
		}
		defer func() {
			if err := locker.Release(ctx, shared.TrialSweepLockKey); err != nil {
				logger.Warn("trial sweep", slog.Any("release_error", err))
			}
		}()

		expired, err := svc.ExpireTrials(ctx)
		if err != nil {
			logger.Error("trial sweep", slog.Any("error", err))
			return err
		}
		if expired > 0 {
			logger.Info("trial sweep", slog.Int("expired", expired))
		}
		return nil
	}
}
