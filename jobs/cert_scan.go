package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fleetgrid/fleetgrid/internal/compliance"
	"github.com/fleetgrid/fleetgrid/internal/shared"
)

// NewCertScanHandler opens certification expiry alerts for equipment
// whose certification lapses inside the lookahead window. A Redis lock
// keeps concurrent workers from scanning twice.
func NewCertScanHandler(svc *compliance.Service, locker *shared.Locker, lookahead time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		ok, err := locker.Acquire(ctx, shared.CertScanLockKey, sweepLockTTL)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("certification scan skipped, lock held")
			return nil
		}
		defer func() {
			if err := locker.Release(ctx, shared.CertScanLockKey); err != nil {
				logger.Warn("certification scan", slog.Any("release_error", err))
			}
		}()

		opened, err := svc.ScanCertifications(ctx, lookahead)
		if err != nil {
			logger.Error("certification scan", slog.Any("error", err))
			return err
		}
		if opened > 0 {
			logger.Info("certification scan", slog.Int("alerts_opened", opened))
		}
		return nil
	}
}
