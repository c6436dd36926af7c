package users

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetgrid/fleetgrid/internal/features"
	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
	_ "github.com/fleetgrid/fleetgrid/testing"
)

type memoryRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User)}
}

func (r *memoryRepo) Get(ctx context.Context, tenantID, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok || u.TenantID != tenantID {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, tenantID int64) ([]User, error) {
	var out []User
	for _, u := range r.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryRepo) Count(ctx context.Context, tenantID int64) (int, error) {
	count := 0
	for _, u := range r.users {
		if u.TenantID == tenantID && u.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) CountByRole(ctx context.Context, tenantID int64, role roles.Role) (int, error) {
	count := 0
	for _, u := range r.users {
		if u.TenantID == tenantID && u.Role == role && u.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) Create(ctx context.Context, u User) (User, error) {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return User{}, ErrDuplicateEmail
		}
	}
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryRepo) UpdateRole(ctx context.Context, tenantID, id int64, role roles.Role) (User, error) {
	u, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return User{}, err
	}
	u.Role = role
	r.users[id] = u
	return u, nil
}

func (r *memoryRepo) SetActive(ctx context.Context, tenantID, id int64, active bool) (User, error) {
	u, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return User{}, err
	}
	u.IsActive = active
	r.users[id] = u
	return u, nil
}

type staticTenants struct{}

func (staticTenants) Get(ctx context.Context, id int64) (tenants.Tenant, error) {
	return tenants.Tenant{ID: id, Tier: tenants.TierBasic, Status: tenants.StatusActive}, nil
}

type staticLimits struct {
	limits features.Limits
}

func (s *staticLimits) Limits(tenant tenants.Tenant) features.Limits {
	return s.limits
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService(maxUsers int) (*Service, *memoryRepo, *recordingAudit) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, staticTenants{}, &staticLimits{limits: features.Limits{MaxUsers: maxUsers, MaxAssets: 50}}, audit, nil)
	return svc, repo, audit
}

func seedAdmin(t *testing.T, repo *memoryRepo) User {
	t.Helper()
	admin, err := repo.Create(context.Background(), User{
		TenantID: 1, Email: "admin@northfield.test", Name: "Admin",
		Role: roles.RoleAdmin, IsActive: true,
	})
	require.NoError(t, err)
	return admin
}

func TestInviteDefaultsToViewer(t *testing.T) {
	svc, repo, audit := newTestService(5)
	admin := seedAdmin(t, repo)
	ctx := context.Background()

	created, err := svc.Invite(ctx, 1, admin.ID, InviteInput{
		Email:    "new@northfield.test",
		Name:     "New Member",
		Password: "changeme123",
		Role:     roles.Role("contractor"),
	})
	require.NoError(t, err)
	require.Equal(t, roles.RoleViewer, created.Role)
	require.True(t, created.IsActive)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("changeme123")))

	require.Len(t, audit.logs, 1)
	require.Equal(t, "user.invite", audit.logs[0].Action)
	require.Equal(t, admin.ID, audit.logs[0].ActorID)
}

func TestInviteSeatLimit(t *testing.T) {
	svc, repo, _ := newTestService(2)
	admin := seedAdmin(t, repo)
	ctx := context.Background()

	_, err := svc.Invite(ctx, 1, admin.ID, InviteInput{Email: "b@northfield.test", Password: "changeme123"})
	require.NoError(t, err)

	_, err = svc.Invite(ctx, 1, admin.ID, InviteInput{Email: "c@northfield.test", Password: "changeme123"})
	require.ErrorIs(t, err, ErrUserLimit)
}

func TestInviteUnlimitedSeats(t *testing.T) {
	svc, repo, _ := newTestService(features.Unlimited)
	admin := seedAdmin(t, repo)
	ctx := context.Background()

	for _, email := range []string{"a@n.test", "b@n.test", "c@n.test", "d@n.test"} {
		_, err := svc.Invite(ctx, 1, admin.ID, InviteInput{Email: email, Password: "changeme123"})
		require.NoError(t, err)
	}
}

func TestChangeRoleLastAdminGuard(t *testing.T) {
	svc, repo, audit := newTestService(10)
	admin := seedAdmin(t, repo)
	ctx := context.Background()

	_, err := svc.ChangeRole(ctx, 1, admin.ID, admin.ID, roles.RoleViewer)
	require.ErrorIs(t, err, ErrLastAdmin)

	second, err := svc.Invite(ctx, 1, admin.ID, InviteInput{
		Email: "second@northfield.test", Password: "changeme123", Role: roles.RoleAdmin,
	})
	require.NoError(t, err)

	demoted, err := svc.ChangeRole(ctx, 1, second.ID, admin.ID, roles.RoleManager)
	require.NoError(t, err)
	require.Equal(t, roles.RoleManager, demoted.Role)

	last := audit.logs[len(audit.logs)-1]
	require.Equal(t, "user.role_change", last.Action)
	require.Equal(t, "admin", last.Meta["from"])
	require.Equal(t, "manager", last.Meta["to"])
}

func TestChangeRolePromotionSkipsGuard(t *testing.T) {
	svc, repo, _ := newTestService(10)
	admin := seedAdmin(t, repo)
	ctx := context.Background()

	viewer, err := svc.Invite(ctx, 1, admin.ID, InviteInput{Email: "v@northfield.test", Password: "changeme123"})
	require.NoError(t, err)

	promoted, err := svc.ChangeRole(ctx, 1, admin.ID, viewer.ID, roles.RoleOperator)
	require.NoError(t, err)
	require.Equal(t, roles.RoleOperator, promoted.Role)
}

func TestChangeRoleRejectsUnknown(t *testing.T) {
	svc, repo, _ := newTestService(10)
	admin := seedAdmin(t, repo)

	_, err := svc.ChangeRole(context.Background(), 1, admin.ID, admin.ID, roles.Role("root"))
	require.Error(t, err)
}

func TestDeactivateLastAdmin(t *testing.T) {
	svc, repo, _ := newTestService(10)
	admin := seedAdmin(t, repo)
	ctx := context.Background()

	_, err := svc.Deactivate(ctx, 1, admin.ID, admin.ID)
	require.ErrorIs(t, err, ErrLastAdmin)

	viewer, err := svc.Invite(ctx, 1, admin.ID, InviteInput{Email: "v@northfield.test", Password: "changeme123"})
	require.NoError(t, err)

	disabled, err := svc.Deactivate(ctx, 1, admin.ID, viewer.ID)
	require.NoError(t, err)
	require.False(t, disabled.IsActive)
}

func TestReactivateHonorsSeatLimit(t *testing.T) {
	svc, repo, _ := newTestService(2)
	admin := seedAdmin(t, repo)
	ctx := context.Background()

	viewer, err := svc.Invite(ctx, 1, admin.ID, InviteInput{Email: "v@northfield.test", Password: "changeme123"})
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, 1, admin.ID, viewer.ID)
	require.NoError(t, err)

	// Deactivated seats free up capacity again.
	other, err := svc.Invite(ctx, 1, admin.ID, InviteInput{Email: "o@northfield.test", Password: "changeme123"})
	require.NoError(t, err)

	_, err = svc.Reactivate(ctx, 1, admin.ID, viewer.ID)
	require.ErrorIs(t, err, ErrUserLimit)

	_, err = svc.Deactivate(ctx, 1, admin.ID, other.ID)
	require.NoError(t, err)
	restored, err := svc.Reactivate(ctx, 1, admin.ID, viewer.ID)
	require.NoError(t, err)
	require.True(t, restored.IsActive)
}
