package equipment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetgrid/fleetgrid/internal/features"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
	_ "github.com/fleetgrid/fleetgrid/testing"
)

type memoryRepo struct {
	items  map[int64]Equipment
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Equipment)}
}

func (r *memoryRepo) Get(ctx context.Context, tenantID, id int64) (Equipment, error) {
	e, ok := r.items[id]
	if !ok || e.TenantID != tenantID {
		return Equipment{}, ErrNotFound
	}
	return e, nil
}

func (r *memoryRepo) List(ctx context.Context, tenantID int64) ([]Equipment, error) {
	var out []Equipment
	for _, e := range r.items {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) Count(ctx context.Context, tenantID int64) (int, error) {
	count := 0
	for _, e := range r.items {
		if e.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) Create(ctx context.Context, e Equipment) (Equipment, error) {
	for _, existing := range r.items {
		if existing.TenantID == e.TenantID && existing.Serial == e.Serial {
			return Equipment{}, ErrDuplicateSerial
		}
	}
	r.nextID++
	e.ID = r.nextID
	r.items[e.ID] = e
	return e, nil
}

func (r *memoryRepo) Update(ctx context.Context, e Equipment) (Equipment, error) {
	if _, ok := r.items[e.ID]; !ok {
		return Equipment{}, ErrNotFound
	}
	r.items[e.ID] = e
	return e, nil
}

func (r *memoryRepo) ListExpiringCertifications(ctx context.Context, from, to time.Time) ([]Equipment, error) {
	return nil, nil
}

type staticTenants struct {
	tenant tenants.Tenant
}

func (s *staticTenants) Get(ctx context.Context, id int64) (tenants.Tenant, error) {
	return s.tenant, nil
}

type staticLimits struct {
	limits features.Limits
}

func (s *staticLimits) Limits(tenant tenants.Tenant) features.Limits {
	return s.limits
}

type recordingObserver struct {
	changes []Equipment
}

func (o *recordingObserver) EquipmentChanged(ctx context.Context, e Equipment) error {
	o.changes = append(o.changes, e)
	return nil
}

func newTestService(maxAssets int) (*Service, *memoryRepo, *recordingObserver) {
	repo := newMemoryRepo()
	observer := &recordingObserver{}
	svc := NewService(repo,
		&staticTenants{tenant: tenants.Tenant{ID: 1, Tier: tenants.TierBasic, Status: tenants.StatusActive}},
		&staticLimits{limits: features.Limits{MaxAssets: maxAssets, MaxUsers: 5}},
		observer, nil)
	return svc, repo, observer
}

func TestCreateEnforcesAssetLimit(t *testing.T) {
	svc, _, observer := newTestService(2)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateInput{Name: "Excavator", Serial: "EX-1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{Name: "Crane", Serial: "CR-1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, CreateInput{Name: "Loader", Serial: "LD-1"})
	require.ErrorIs(t, err, ErrAssetLimit)
	require.Len(t, observer.changes, 2)
}

func TestCreateUnlimited(t *testing.T) {
	svc, _, _ := newTestService(features.Unlimited)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		_, err := svc.Create(ctx, 1, CreateInput{Name: "Item", Serial: fmt.Sprintf("SN-%03d", i)})
		require.NoError(t, err)
	}
}

func TestCreateDuplicateSerial(t *testing.T) {
	svc, _, _ := newTestService(10)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateInput{Name: "Excavator", Serial: "EX-1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{Name: "Other", Serial: "EX-1"})
	require.ErrorIs(t, err, ErrDuplicateSerial)
}

func TestUpdateMergesAndObserves(t *testing.T) {
	svc, repo, observer := newTestService(10)
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateInput{Name: "Excavator", Serial: "EX-1", Category: "excavator"})
	require.NoError(t, err)

	last := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	updated, err := svc.Update(ctx, 1, created.ID, UpdateInput{LastMaintenance: &last})
	require.NoError(t, err)

	require.Equal(t, "Excavator", updated.Name, "unset fields keep their value")
	require.Equal(t, "excavator", updated.Category)
	require.Equal(t, &last, updated.LastMaintenance)
	require.Equal(t, updated, repo.items[created.ID])

	require.Len(t, observer.changes, 2)
	require.Equal(t, &last, observer.changes[1].LastMaintenance)
}

func TestUpdateTenantScoped(t *testing.T) {
	svc, _, _ := newTestService(10)
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateInput{Name: "Excavator", Serial: "EX-1"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, 2, created.ID, UpdateInput{Name: "Stolen"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAssignRelease(t *testing.T) {
	svc, _, _ := newTestService(10)
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateInput{Name: "Excavator", Serial: "EX-1"})
	require.NoError(t, err)

	assigned, err := svc.Assign(ctx, 1, created.ID, 99)
	require.NoError(t, err)
	require.Equal(t, StatusAssigned, assigned.Status)
	require.Equal(t, int64(99), *assigned.ProjectID)

	released, err := svc.Release(ctx, 1, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, released.Status)
	require.Nil(t, released.ProjectID)
}
