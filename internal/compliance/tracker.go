package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fleetgrid/fleetgrid/internal/equipment"
	"github.com/fleetgrid/fleetgrid/internal/notifications"
	"github.com/fleetgrid/fleetgrid/internal/shared"
)

// SnapshotVersion is the persisted envelope version for equipment
// snapshots.
const SnapshotVersion = 1

// snapshot is the persisted previous-state record per equipment.
type snapshot struct {
	EquipmentID     int64      `json:"equipment_id"`
	LastMaintenance *time.Time `json:"last_maintenance"`
	NextMaintenance *time.Time `json:"next_maintenance"`
	ObservedAt      time.Time  `json:"observed_at"`
}

// Tracker observes equipment changes and derives maintenance updates.
// A change to last-maintenance yields a completed update; a change to
// next-maintenance yields a scheduled update. Each derived update emits
// one notification and completed updates auto-resolve open maintenance
// alerts.
type Tracker struct {
	snapshots *shared.BlobStore
	service   *Service
	notifier  NotifierPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewTracker constructs a Tracker.
func NewTracker(snapshots *shared.BlobStore, service *Service, notifier NotifierPort, logger *slog.Logger) *Tracker {
	return &Tracker{snapshots: snapshots, service: service, notifier: notifier, logger: logger, now: time.Now}
}

// WithNow overrides the tracker clock for testing.
func (t *Tracker) WithNow(fn func() time.Time) {
	if fn != nil {
		t.now = fn
	}
}

// EquipmentChanged diffs the equipment against its stored snapshot and
// records derived updates. The first observation only seeds the
// snapshot. A cleared snapshot store therefore re-seeds silently rather
// than re-notifying; an unreadable blob is treated the same as a
// missing one.
func (t *Tracker) EquipmentChanged(ctx context.Context, e equipment.Equipment) error {
	key := strconv.FormatInt(e.ID, 10)

	var prev snapshot
	err := t.snapshots.Get(ctx, key, &prev)
	first := false
	if err != nil {
		if !errors.Is(err, shared.ErrNoBlob) && t.logger != nil {
			t.logger.Warn("compliance: read snapshot", slog.Int64("equipment_id", e.ID), slog.Any("error", err))
		}
		first = true
	}

	if !first {
		if dateChanged(prev.LastMaintenance, e.LastMaintenance) {
			t.recordCompleted(ctx, e)
		}
		if dateChanged(prev.NextMaintenance, e.NextMaintenance) {
			t.recordScheduled(ctx, e)
		}
	}

	next := snapshot{
		EquipmentID:     e.ID,
		LastMaintenance: e.LastMaintenance,
		NextMaintenance: e.NextMaintenance,
		ObservedAt:      t.now(),
	}
	return t.snapshots.Put(ctx, key, next)
}

func (t *Tracker) recordCompleted(ctx context.Context, e equipment.Equipment) {
	update := MaintenanceUpdate{
		TenantID:    e.TenantID,
		EquipmentID: e.ID,
		Kind:        UpdateCompleted,
		Date:        *e.LastMaintenance,
		RecordedAt:  t.now(),
	}
	if _, err := t.service.repo.RecordUpdate(ctx, update); err != nil {
		if t.logger != nil {
			t.logger.Warn("compliance: record completed update", slog.Int64("equipment_id", e.ID), slog.Any("error", err))
		}
		return
	}
	note := fmt.Sprintf("Maintenance completed on %s", e.LastMaintenance.Format("2006-01-02"))
	if _, err := t.service.AutoResolveMaintenance(ctx, e.TenantID, e.ID, note); err != nil && t.logger != nil {
		t.logger.Warn("compliance: auto resolve after completion", slog.Int64("equipment_id", e.ID), slog.Any("error", err))
	}
	t.broadcast(ctx, e.TenantID, notifications.Notification{
		Type:     notifications.TypeMaintenanceCompleted,
		Priority: notifications.PriorityLow,
		Title:    fmt.Sprintf("Maintenance completed: %s", e.Name),
		Message:  note,
	})
}

func (t *Tracker) recordScheduled(ctx context.Context, e equipment.Equipment) {
	update := MaintenanceUpdate{
		TenantID:    e.TenantID,
		EquipmentID: e.ID,
		Kind:        UpdateScheduled,
		Date:        *e.NextMaintenance,
		RecordedAt:  t.now(),
	}
	if _, err := t.service.repo.RecordUpdate(ctx, update); err != nil {
		if t.logger != nil {
			t.logger.Warn("compliance: record scheduled update", slog.Int64("equipment_id", e.ID), slog.Any("error", err))
		}
		return
	}
	t.broadcast(ctx, e.TenantID, notifications.Notification{
		Type:     notifications.TypeMaintenanceScheduled,
		Priority: notifications.PriorityLow,
		Title:    fmt.Sprintf("Maintenance scheduled: %s", e.Name),
		Message:  fmt.Sprintf("Next maintenance scheduled for %s", e.NextMaintenance.Format("2006-01-02")),
	})
}

func (t *Tracker) broadcast(ctx context.Context, tenantID int64, n notifications.Notification) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Broadcast(ctx, tenantID, n); err != nil && t.logger != nil {
		t.logger.Warn("compliance: tracker broadcast", slog.String("type", string(n.Type)), slog.Any("error", err))
	}
}

// dateChanged compares two nullable dates. A transition to nil does not
// count as a maintenance event.
func dateChanged(prev, cur *time.Time) bool {
	if cur == nil {
		return false
	}
	if prev == nil {
		return true
	}
	return !prev.Equal(*cur)
}
