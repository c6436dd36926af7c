package roles

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fleetgrid/fleetgrid/internal/shared"
	_ "github.com/fleetgrid/fleetgrid/testing"
)

type fakeDirectory struct {
	mu      sync.Mutex
	binding Binding
	err     error
	lookups int
}

func (d *fakeDirectory) Lookup(ctx context.Context, userID int64) (Binding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if d.err != nil {
		return Binding{}, d.err
	}
	return d.binding, nil
}

type fakeSaver struct {
	mu    sync.Mutex
	saves int
}

func (s *fakeSaver) Save(ctx context.Context, sess *shared.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return nil
}

func newTestSession(t *testing.T, userID, metaRole string) *shared.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser(userID)
	if metaRole != "" {
		sess.Set(shared.RoleKey, metaRole)
	}
	return sess
}

func TestResolveDurableStoreWins(t *testing.T) {
	dir := &fakeDirectory{binding: Binding{UserID: 42, Email: "ops@example.com", Role: RoleManager}}
	saver := &fakeSaver{}
	resolver := NewResolver(dir, nil, saver, nil)

	sess := newTestSession(t, "42", "viewer")
	role := resolver.Resolve(context.Background(), sess)

	require.Equal(t, RoleManager, role)
	require.Equal(t, "manager", sess.Get(shared.RoleKey), "metadata copy rewritten")
	require.Equal(t, 1, saver.saves)
}

func TestResolveNoRewriteWhenConsistent(t *testing.T) {
	dir := &fakeDirectory{binding: Binding{UserID: 42, Email: "ops@example.com", Role: RoleViewer}}
	saver := &fakeSaver{}
	resolver := NewResolver(dir, nil, saver, nil)

	sess := newTestSession(t, "42", "viewer")
	role := resolver.Resolve(context.Background(), sess)

	require.Equal(t, RoleViewer, role)
	require.Zero(t, saver.saves)
}

func TestResolveFallsBackOnLookupError(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("db down")}
	resolver := NewResolver(dir, nil, &fakeSaver{}, nil)

	sess := newTestSession(t, "42", "editor")
	role := resolver.Resolve(context.Background(), sess)

	require.Equal(t, RoleEditor, role)
}

func TestResolveAnonymous(t *testing.T) {
	resolver := NewResolver(&fakeDirectory{}, nil, nil, nil)
	require.Equal(t, RoleNone, resolver.Resolve(context.Background(), nil))

	sess := newTestSession(t, "", "")
	require.Equal(t, RoleNone, resolver.Resolve(context.Background(), sess))
}

func TestConfigOverride(t *testing.T) {
	overrides := NewConfigOverride("Smoke@Example.com=superadmin, bad-entry, x@y.z=notarole")
	dir := &fakeDirectory{binding: Binding{UserID: 7, Email: "smoke@example.com", Role: RoleViewer}}
	resolver := NewResolver(dir, overrides, &fakeSaver{}, nil)

	sess := newTestSession(t, "7", "viewer")
	role := resolver.Resolve(context.Background(), sess)

	require.Equal(t, RoleSuperadmin, role)
	require.Equal(t, "superadmin", sess.Get(shared.RoleKey))
}

func TestConfigOverrideSkipsUnlisted(t *testing.T) {
	overrides := NewConfigOverride("smoke@example.com=superadmin")
	role, ok := overrides.Override(Binding{Email: "regular@example.com", Role: RoleViewer})
	require.False(t, ok)
	require.Equal(t, RoleNone, role)
}
