package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fleetgrid/fleetgrid/internal/features"
	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, tenantID int64) ([]User, error)
	Count(ctx context.Context, tenantID int64) (int, error)
	CountByRole(ctx context.Context, tenantID int64, role roles.Role) (int, error)
	Create(ctx context.Context, u User) (User, error)
	UpdateRole(ctx context.Context, tenantID, id int64, role roles.Role) (User, error)
	SetActive(ctx context.Context, tenantID, id int64, active bool) (User, error)
}

// TenantSource loads the tenant record for seat limit checks.
type TenantSource interface {
	Get(ctx context.Context, id int64) (tenants.Tenant, error)
}

// LimitPort resolves plan limits for a tenant.
type LimitPort interface {
	Limits(tenant tenants.Tenant) features.Limits
}

// AuditPort records administrative actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles member management.
type Service struct {
	repo    RepositoryPort
	tenants TenantSource
	limits  LimitPort
	audit   AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, tenantSource TenantSource, limits LimitPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, tenants: tenantSource, limits: limits, audit: audit, logger: logger, now: time.Now}
}

// Get fetches a member.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (User, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns the tenant's members.
func (s *Service) List(ctx context.Context, tenantID int64) ([]User, error) {
	return s.repo.List(ctx, tenantID)
}

// InviteInput describes a new member.
type InviteInput struct {
	Email    string
	Name     string
	Password string
	Role     roles.Role
}

// Invite creates a member account. The role defaults to viewer and the
// tenant's plan seat ceiling is enforced before insertion.
func (s *Service) Invite(ctx context.Context, tenantID, actorID int64, input InviteInput) (User, error) {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return User{}, err
	}
	count, err := s.repo.Count(ctx, tenantID)
	if err != nil {
		return User{}, err
	}
	if !features.WithinLimit(count, s.limits.Limits(tenant).MaxUsers) {
		return User{}, ErrUserLimit
	}
	role := input.Role
	if !role.Valid() {
		role = roles.RoleViewer
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	created, err := s.repo.Create(ctx, User{
		TenantID:     tenantID,
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, tenantID, "user.invite", created.ID, map[string]any{"role": string(created.Role)})
	return created, nil
}

// ChangeRole updates a member's role. Demoting the tenant's last active
// admin is rejected.
func (s *Service) ChangeRole(ctx context.Context, tenantID, actorID, id int64, role roles.Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("users: unknown role %q", role)
	}
	current, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return User{}, err
	}
	if current.Role.AtLeast(roles.RoleAdmin) && !role.AtLeast(roles.RoleAdmin) {
		admins, err := s.repo.CountByRole(ctx, tenantID, roles.RoleAdmin)
		if err != nil {
			return User{}, err
		}
		if admins <= 1 {
			return User{}, ErrLastAdmin
		}
	}
	updated, err := s.repo.UpdateRole(ctx, tenantID, id, role)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, tenantID, "user.role_change", id, map[string]any{
		"from": string(current.Role),
		"to":   string(role),
	})
	return updated, nil
}

// Deactivate disables a member account. The last active admin cannot be
// deactivated.
func (s *Service) Deactivate(ctx context.Context, tenantID, actorID, id int64) (User, error) {
	current, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return User{}, err
	}
	if current.Role.AtLeast(roles.RoleAdmin) {
		admins, err := s.repo.CountByRole(ctx, tenantID, roles.RoleAdmin)
		if err != nil {
			return User{}, err
		}
		if admins <= 1 {
			return User{}, ErrLastAdmin
		}
	}
	updated, err := s.repo.SetActive(ctx, tenantID, id, false)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, tenantID, "user.deactivate", id, nil)
	return updated, nil
}

// Reactivate restores a disabled member account subject to the seat
// ceiling.
func (s *Service) Reactivate(ctx context.Context, tenantID, actorID, id int64) (User, error) {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return User{}, err
	}
	count, err := s.repo.Count(ctx, tenantID)
	if err != nil {
		return User{}, err
	}
	if !features.WithinLimit(count, s.limits.Limits(tenant).MaxUsers) {
		return User{}, ErrUserLimit
	}
	updated, err := s.repo.SetActive(ctx, tenantID, id, true)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, tenantID, "user.reactivate", id, nil)
	return updated, nil
}

func (s *Service) record(ctx context.Context, actorID, tenantID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		TenantID: tenantID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("users: audit", slog.Any("error", err))
	}
}
