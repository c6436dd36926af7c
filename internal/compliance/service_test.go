package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fleetgrid/fleetgrid/internal/equipment"
	"github.com/fleetgrid/fleetgrid/internal/notifications"
	"github.com/fleetgrid/fleetgrid/internal/shared"
	_ "github.com/fleetgrid/fleetgrid/testing"
)

type memoryRepo struct {
	alerts  map[int64]Alert
	updates []MaintenanceUpdate
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{alerts: make(map[int64]Alert)}
}

func (r *memoryRepo) Get(ctx context.Context, tenantID, id int64) (Alert, error) {
	a, ok := r.alerts[id]
	if !ok || a.TenantID != tenantID {
		return Alert{}, ErrNotFound
	}
	return a, nil
}

func (r *memoryRepo) List(ctx context.Context, tenantID int64) ([]Alert, error) {
	var out []Alert
	for _, a := range r.alerts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListOpenByEquipment(ctx context.Context, tenantID, equipmentID int64, typ AlertType) ([]Alert, error) {
	var out []Alert
	for _, a := range r.alerts {
		if a.TenantID == tenantID && a.EquipmentID == equipmentID && a.Type == typ && a.Status == StatusOpen {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) HasOpenAlert(ctx context.Context, equipmentID int64, typ AlertType) (bool, error) {
	for _, a := range r.alerts {
		if a.EquipmentID == equipmentID && a.Type == typ && (a.Status == StatusOpen || a.Status == StatusAcknowledged) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) Create(ctx context.Context, a Alert) (Alert, error) {
	r.nextID++
	a.ID = r.nextID
	r.alerts[a.ID] = a
	return a, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, a Alert) error {
	if _, ok := r.alerts[a.ID]; !ok {
		return ErrNotFound
	}
	r.alerts[a.ID] = a
	return nil
}

func (r *memoryRepo) RecordUpdate(ctx context.Context, u MaintenanceUpdate) (MaintenanceUpdate, error) {
	r.nextID++
	u.ID = r.nextID
	r.updates = append(r.updates, u)
	return u, nil
}

func (r *memoryRepo) ListUpdates(ctx context.Context, tenantID int64, limit int) ([]MaintenanceUpdate, error) {
	var out []MaintenanceUpdate
	for _, u := range r.updates {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryCerts struct {
	items []equipment.Equipment
}

func (c *memoryCerts) ListExpiringCertifications(ctx context.Context, from, to time.Time) ([]equipment.Equipment, error) {
	var out []equipment.Equipment
	for _, item := range c.items {
		if item.CertificationExpiry == nil {
			continue
		}
		exp := *item.CertificationExpiry
		if !exp.Before(from) && !exp.After(to) {
			out = append(out, item)
		}
	}
	return out, nil
}

type recordingBroadcaster struct {
	sent []notifications.Notification
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, tenantID int64, n notifications.Notification) error {
	b.sent = append(b.sent, n)
	return nil
}

type countingMetrics struct {
	byKind map[string]int
}

func (m *countingMetrics) ObserveAlertResolved(kind string) {
	if m.byKind == nil {
		m.byKind = make(map[string]int)
	}
	m.byKind[kind]++
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusOpen, StatusAcknowledged, false))
	require.True(t, CanTransition(StatusAcknowledged, StatusResolved, false))
	require.True(t, CanTransition(StatusOpen, StatusResolved, true))

	// Users cannot skip acknowledgement; automation cannot resolve an
	// acknowledged alert.
	require.False(t, CanTransition(StatusOpen, StatusResolved, false))
	require.False(t, CanTransition(StatusOpen, StatusAcknowledged, true))
	require.False(t, CanTransition(StatusAcknowledged, StatusResolved, true))

	// No backward or repeated transitions.
	require.False(t, CanTransition(StatusResolved, StatusOpen, false))
	require.False(t, CanTransition(StatusResolved, StatusAcknowledged, true))
	require.False(t, CanTransition(StatusAcknowledged, StatusAcknowledged, false))
}

func TestAcknowledgeAndResolve(t *testing.T) {
	repo := newMemoryRepo()
	metrics := &countingMetrics{}
	svc := NewService(repo, &memoryCerts{}, nil, metrics, nil)

	created, err := svc.CreateAlert(context.Background(), Alert{TenantID: 1, EquipmentID: 10, Type: AlertInspection})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, created.Status)
	require.Equal(t, string(notifications.PriorityMedium), created.Priority)

	// Resolving before acknowledging is rejected.
	_, err = svc.Resolve(context.Background(), 1, created.ID, "done")
	require.ErrorIs(t, err, ErrInvalidTransition)

	acked, err := svc.Acknowledge(context.Background(), 1, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedAt)

	_, err = svc.Acknowledge(context.Background(), 1, created.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	resolved, err := svc.Resolve(context.Background(), 1, created.ID, "replaced filters")
	require.NoError(t, err)
	require.Equal(t, StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	require.Equal(t, "replaced filters", *resolved.ResolutionNote)
	require.Equal(t, 1, metrics.byKind["user"])

	// Tenant scoping.
	_, err = svc.Acknowledge(context.Background(), 2, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAutoResolveMaintenanceTenantScoped(t *testing.T) {
	repo := newMemoryRepo()
	metrics := &countingMetrics{}
	svc := NewService(repo, &memoryCerts{}, nil, metrics, nil)
	ctx := context.Background()

	mine, err := svc.CreateAlert(ctx, Alert{TenantID: 1, EquipmentID: 10, Type: AlertMaintenance})
	require.NoError(t, err)
	other, err := svc.CreateAlert(ctx, Alert{TenantID: 2, EquipmentID: 10, Type: AlertMaintenance})
	require.NoError(t, err)

	resolved, err := svc.AutoResolveMaintenance(ctx, 1, 10, "Maintenance completed on 2026-03-15")
	require.NoError(t, err)
	require.Equal(t, 1, resolved)
	require.Equal(t, StatusResolved, repo.alerts[mine.ID].Status)
	require.Equal(t, StatusOpen, repo.alerts[other.ID].Status, "another tenant's alert for the same equipment id stays open")
}

func TestScanCertificationsDedup(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	soon := now.AddDate(0, 0, 20)
	far := now.AddDate(0, 3, 0)

	repo := newMemoryRepo()
	broadcaster := &recordingBroadcaster{}
	certs := &memoryCerts{items: []equipment.Equipment{
		{ID: 10, TenantID: 1, Name: "Crane CR-80", CertificationExpiry: &soon},
		{ID: 11, TenantID: 1, Name: "Loader LD-15", CertificationExpiry: &far},
	}}
	svc := NewService(repo, certs, broadcaster, nil, nil)
	svc.WithNow(func() time.Time { return now })

	opened, err := svc.ScanCertifications(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, opened, "only certifications inside the window alert")
	require.Len(t, broadcaster.sent, 1)
	require.Equal(t, notifications.TypeCertificationExpiry, broadcaster.sent[0].Type)
	require.Equal(t, notifications.PriorityHigh, broadcaster.sent[0].Priority)

	// A second scan does not duplicate the open alert.
	opened, err = svc.ScanCertifications(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	require.Zero(t, opened)

	// An acknowledged alert still suppresses re-opening.
	var alertID int64
	for id := range repo.alerts {
		alertID = id
	}
	_, err = svc.Acknowledge(context.Background(), 1, alertID)
	require.NoError(t, err)
	opened, err = svc.ScanCertifications(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	require.Zero(t, opened)
}

func newTestTracker(t *testing.T, repo *memoryRepo, broadcaster *recordingBroadcaster, metrics *countingMetrics) *Tracker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	blobs := shared.NewBlobStore(client, "eqsnapshots", SnapshotVersion)
	svc := NewService(repo, &memoryCerts{}, broadcaster, metrics, nil)
	return NewTracker(blobs, svc, broadcaster, nil)
}

func TestTrackerScheduledUpdate(t *testing.T) {
	repo := newMemoryRepo()
	broadcaster := &recordingBroadcaster{}
	tracker := newTestTracker(t, repo, broadcaster, nil)
	ctx := context.Background()

	next := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	item := equipment.Equipment{ID: 10, TenantID: 1, Name: "Excavator EX-200"}

	// First observation only seeds the snapshot.
	require.NoError(t, tracker.EquipmentChanged(ctx, item))
	require.Empty(t, repo.updates)
	require.Empty(t, broadcaster.sent)

	item.NextMaintenance = &next
	require.NoError(t, tracker.EquipmentChanged(ctx, item))

	require.Len(t, repo.updates, 1)
	require.Equal(t, UpdateScheduled, repo.updates[0].Kind)
	require.Equal(t, next, repo.updates[0].Date)

	require.Len(t, broadcaster.sent, 1)
	require.Equal(t, notifications.TypeMaintenanceScheduled, broadcaster.sent[0].Type)
	require.Equal(t, notifications.PriorityLow, broadcaster.sent[0].Priority)

	// Same date again: no new event.
	require.NoError(t, tracker.EquipmentChanged(ctx, item))
	require.Len(t, repo.updates, 1)
	require.Len(t, broadcaster.sent, 1)
}

func TestTrackerCompletedAutoResolves(t *testing.T) {
	repo := newMemoryRepo()
	broadcaster := &recordingBroadcaster{}
	metrics := &countingMetrics{}
	tracker := newTestTracker(t, repo, broadcaster, metrics)
	ctx := context.Background()

	open, err := repo.Create(ctx, Alert{TenantID: 1, EquipmentID: 10, Type: AlertMaintenance, Status: StatusOpen})
	require.NoError(t, err)
	unrelated, err := repo.Create(ctx, Alert{TenantID: 1, EquipmentID: 10, Type: AlertCertification, Status: StatusOpen})
	require.NoError(t, err)

	item := equipment.Equipment{ID: 10, TenantID: 1, Name: "Excavator EX-200"}
	require.NoError(t, tracker.EquipmentChanged(ctx, item))

	done := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	item.LastMaintenance = &done
	require.NoError(t, tracker.EquipmentChanged(ctx, item))

	resolved := repo.alerts[open.ID]
	require.Equal(t, StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolutionNote)
	require.Equal(t, "Maintenance completed on 2026-03-15", *resolved.ResolutionNote)
	require.NotNil(t, resolved.ResolvedAt)
	require.Equal(t, 1, metrics.byKind["automatic"])

	// Alerts of other types stay open.
	require.Equal(t, StatusOpen, repo.alerts[unrelated.ID].Status)

	require.Len(t, repo.updates, 1)
	require.Equal(t, UpdateCompleted, repo.updates[0].Kind)
	require.Len(t, broadcaster.sent, 1)
	require.Equal(t, notifications.TypeMaintenanceCompleted, broadcaster.sent[0].Type)
}

func TestTrackerClearedDateIsNotAnEvent(t *testing.T) {
	repo := newMemoryRepo()
	broadcaster := &recordingBroadcaster{}
	tracker := newTestTracker(t, repo, broadcaster, nil)
	ctx := context.Background()

	next := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	item := equipment.Equipment{ID: 10, TenantID: 1, Name: "Excavator EX-200", NextMaintenance: &next}
	require.NoError(t, tracker.EquipmentChanged(ctx, item))

	item.NextMaintenance = nil
	require.NoError(t, tracker.EquipmentChanged(ctx, item))
	require.Empty(t, repo.updates)
	require.Empty(t, broadcaster.sent)
}
