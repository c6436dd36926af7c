package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/users"
	_ "github.com/fleetgrid/fleetgrid/testing"
)

type stubUsers struct {
	byEmail map[string]users.User
}

func (s *stubUsers) FindByEmail(ctx context.Context, email string) (users.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

type stubSessions struct {
	created []string
	deleted []string
}

func (s *stubSessions) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.created = append(s.created, id)
	return nil
}

func (s *stubSessions) DeleteSession(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func newTestService(t *testing.T, active bool) (*Service, *stubSessions) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("changeme123"), bcrypt.MinCost)
	require.NoError(t, err)
	source := &stubUsers{byEmail: map[string]users.User{
		"admin@northfield.test": {
			ID: 1, TenantID: 1, Email: "admin@northfield.test",
			PasswordHash: string(hash), Role: roles.RoleAdmin, IsActive: active,
		},
	}}
	sessions := &stubSessions{}
	return NewService(source, sessions), sessions
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "admin@northfield.test", "changeme123")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
	require.Equal(t, roles.RoleAdmin, user.Role)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc, _ := newTestService(t, true)

	_, err := svc.Authenticate(context.Background(), "admin@northfield.test", "nope")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc, _ := newTestService(t, true)

	_, err := svc.Authenticate(context.Background(), "ghost@northfield.test", "changeme123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	svc, _ := newTestService(t, false)

	_, err := svc.Authenticate(context.Background(), "admin@northfield.test", "changeme123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	svc, sessions := newTestService(t, true)
	ctx := context.Background()

	require.NoError(t, svc.RegisterSession(ctx, "sess-1", 1, time.Now().Add(time.Hour), "10.0.0.1", "cli"))
	require.NoError(t, svc.RemoveSession(ctx, "sess-1"))
	require.Equal(t, []string{"sess-1"}, sessions.created)
	require.Equal(t, []string{"sess-1"}, sessions.deleted)
}
