package tenants

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetgrid/fleetgrid/internal/shared"
	_ "github.com/fleetgrid/fleetgrid/testing"
)

type memoryRepo struct {
	tenants       map[int64]Tenant
	nextID        int64
	upgradeAudits []shared.AuditLog
	failUpgrade   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{tenants: make(map[int64]Tenant)}
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Tenant, error) {
	t, ok := r.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (r *memoryRepo) Create(ctx context.Context, name string) (Tenant, error) {
	r.nextID++
	t := Tenant{ID: r.nextID, Name: name, Tier: TierBasic, Status: StatusInactive, Theme: "default"}
	r.tenants[t.ID] = t
	return t, nil
}

func (r *memoryRepo) UpdateSubscription(ctx context.Context, id int64, tier Tier, status Status, trialEndsAt *time.Time) error {
	t, ok := r.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.Tier = tier
	t.Status = status
	t.TrialEndsAt = trialEndsAt
	r.tenants[id] = t
	return nil
}

func (r *memoryRepo) ApplyUpgrade(ctx context.Context, id int64, tier Tier, log shared.AuditLog) error {
	if r.failUpgrade != nil {
		return r.failUpgrade
	}
	t, ok := r.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.Tier = tier
	t.Status = StatusActive
	t.TrialEndsAt = nil
	r.tenants[id] = t
	r.upgradeAudits = append(r.upgradeAudits, log)
	return nil
}

func (r *memoryRepo) UpdateSettings(ctx context.Context, id int64, features []string, theme string) error {
	t, ok := r.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.Features = features
	t.Theme = theme
	r.tenants[id] = t
	return nil
}

func (r *memoryRepo) ListTrialing(ctx context.Context, cutoff time.Time) ([]Tenant, error) {
	var out []Tenant
	for _, t := range r.tenants {
		if t.Status == StatusTrialing && t.TrialEndsAt != nil && !t.TrialEndsAt.After(cutoff) {
			out = append(out, t)
		}
	}
	return out, nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

type recordingNotifier struct {
	announcements []string
}

func (n *recordingNotifier) Announce(ctx context.Context, tenantID int64, kind, message string) error {
	n.announcements = append(n.announcements, kind+": "+message)
	return nil
}

type countingMetrics struct {
	expired int
}

func (m *countingMetrics) ObserveTrialExpired() { m.expired++ }

func newTestService(t *testing.T) (*Service, *memoryRepo, *recordingNotifier, *countingMetrics) {
	t.Helper()
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	metrics := &countingMetrics{}
	svc := NewService(repo, &memoryIdempotency{}, nil, notifier, metrics, nil, 7*24*time.Hour)
	return svc, repo, notifier, metrics
}

func TestStartTrial(t *testing.T) {
	svc, repo, notifier, _ := newTestService(t)
	tenant, err := svc.Create(context.Background(), "Acme")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return base })

	started, err := svc.StartTrial(context.Background(), tenant.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusTrialing, started.Status)
	require.Equal(t, TierPremium, started.Tier)
	require.NotNil(t, started.TrialEndsAt)
	require.Equal(t, base.Add(7*24*time.Hour), *started.TrialEndsAt)
	require.Contains(t, notifier.announcements, "subscription: Premium trial started")

	// A second trial while one is running is rejected.
	_, err = svc.StartTrial(context.Background(), tenant.ID, 1)
	require.ErrorIs(t, err, ErrTrialNotAllowed)

	stored := repo.tenants[tenant.ID]
	require.Equal(t, StatusTrialing, stored.Status)
}

func TestTrialExpiryBoundary(t *testing.T) {
	svc, _, _, metrics := newTestService(t)
	tenant, err := svc.Create(context.Background(), "Acme")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return base })
	_, err = svc.StartTrial(context.Background(), tenant.ID, 1)
	require.NoError(t, err)

	ends := base.Add(7 * 24 * time.Hour)

	// One nanosecond before the boundary the trial is still open.
	svc.WithNow(func() time.Time { return ends.Add(-time.Nanosecond) })
	got, err := svc.Get(context.Background(), tenant.ID)
	require.NoError(t, err)
	require.Equal(t, StatusTrialing, got.Status)
	require.Equal(t, TierPremium, got.EffectiveTier(ends.Add(-time.Nanosecond)))

	// At exactly the boundary the trial is over.
	svc.WithNow(func() time.Time { return ends })
	got, err = svc.Get(context.Background(), tenant.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, got.Status)
	require.Equal(t, TierBasic, got.Tier)
	require.Nil(t, got.TrialEndsAt)
	require.Equal(t, 1, metrics.expired)

	// Re-reading an expired tenant does not transition again.
	got, err = svc.Get(context.Background(), tenant.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, got.Status)
	require.Equal(t, 1, metrics.expired)
}

func TestConfirmUpgradeIdempotent(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	tenant, err := svc.Create(context.Background(), "Acme")
	require.NoError(t, err)

	upgraded, err := svc.ConfirmUpgrade(context.Background(), tenant.ID, TierPremium, "pay_123", 1)
	require.NoError(t, err)
	require.Equal(t, TierPremium, upgraded.Tier)
	require.Equal(t, StatusActive, upgraded.Status)

	// Replaying the same payment reference returns current state without
	// a second transition.
	repeat, err := svc.ConfirmUpgrade(context.Background(), tenant.ID, TierEnterprise, "pay_123", 1)
	require.NoError(t, err)
	require.Equal(t, TierPremium, repeat.Tier)
	require.Equal(t, TierPremium, repo.tenants[tenant.ID].Tier)
}

func TestConfirmUpgradeAuditRidesTransition(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	tenant, err := svc.Create(context.Background(), "Acme")
	require.NoError(t, err)

	_, err = svc.ConfirmUpgrade(context.Background(), tenant.ID, TierPremium, "pay_atomic", 7)
	require.NoError(t, err)

	require.Len(t, repo.upgradeAudits, 1)
	audit := repo.upgradeAudits[0]
	require.Equal(t, "SUBSCRIPTION_UPGRADE", audit.Action)
	require.Equal(t, int64(7), audit.ActorID)
	require.Equal(t, "pay_atomic", audit.Meta["payment_ref"])
}

func TestConfirmUpgradeFailureReleasesPaymentRef(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	tenant, err := svc.Create(context.Background(), "Acme")
	require.NoError(t, err)

	repo.failUpgrade = errors.New("connection reset")
	_, err = svc.ConfirmUpgrade(context.Background(), tenant.ID, TierPremium, "pay_retry", 1)
	require.Error(t, err)
	require.Equal(t, StatusInactive, repo.tenants[tenant.ID].Status)

	// The payment reference must stay usable for the retry.
	repo.failUpgrade = nil
	upgraded, err := svc.ConfirmUpgrade(context.Background(), tenant.ID, TierPremium, "pay_retry", 1)
	require.NoError(t, err)
	require.Equal(t, StatusActive, upgraded.Status)
	require.Len(t, repo.upgradeAudits, 1)
}

func TestConfirmUpgradeValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	tenant, err := svc.Create(context.Background(), "Acme")
	require.NoError(t, err)

	_, err = svc.ConfirmUpgrade(context.Background(), tenant.ID, Tier("gold"), "pay_1", 1)
	require.Error(t, err)

	_, err = svc.ConfirmUpgrade(context.Background(), tenant.ID, TierPremium, "", 1)
	require.Error(t, err)
}

func TestExpireTrialsSweep(t *testing.T) {
	svc, repo, notifier, metrics := newTestService(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return base })

	for i := 0; i < 3; i++ {
		tenant, err := svc.Create(context.Background(), "Tenant")
		require.NoError(t, err)
		_, err = svc.StartTrial(context.Background(), tenant.ID, 1)
		require.NoError(t, err)
	}
	active, err := svc.Create(context.Background(), "Paid")
	require.NoError(t, err)
	_, err = svc.ConfirmUpgrade(context.Background(), active.ID, TierStandard, "pay_sweep", 1)
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return base.Add(8 * 24 * time.Hour) })
	expired, err := svc.ExpireTrials(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, expired)
	require.Equal(t, 3, metrics.expired)
	require.Equal(t, StatusActive, repo.tenants[active.ID].Status)

	count := 0
	for _, msg := range notifier.announcements {
		if msg == "subscription: Premium trial expired" {
			count++
		}
	}
	require.Equal(t, 3, count)

	// A second sweep finds nothing.
	expired, err = svc.ExpireTrials(context.Background())
	require.NoError(t, err)
	require.Zero(t, expired)
}

func TestEffectiveTierDuringTrial(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ends := now.Add(24 * time.Hour)

	trialing := Tenant{Tier: TierBasic, Status: StatusTrialing, TrialEndsAt: &ends}
	require.Equal(t, TierPremium, trialing.EffectiveTier(now))

	// A stored tier above premium is not downgraded by the trial.
	enterprise := Tenant{Tier: TierEnterprise, Status: StatusTrialing, TrialEndsAt: &ends}
	require.Equal(t, TierEnterprise, enterprise.EffectiveTier(now))

	// Closed trial falls back to the stored tier.
	require.Equal(t, TierBasic, trialing.EffectiveTier(ends))
}
