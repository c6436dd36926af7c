package equipment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetgrid/fleetgrid/internal/features"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID, id int64) (Equipment, error)
	List(ctx context.Context, tenantID int64) ([]Equipment, error)
	Count(ctx context.Context, tenantID int64) (int, error)
	Create(ctx context.Context, e Equipment) (Equipment, error)
	Update(ctx context.Context, e Equipment) (Equipment, error)
	ListExpiringCertifications(ctx context.Context, from, to time.Time) ([]Equipment, error)
}

// TenantSource loads the owning tenant for limit checks.
type TenantSource interface {
	Get(ctx context.Context, id int64) (tenants.Tenant, error)
}

// LimitPort exposes tier limits for the tenant.
type LimitPort interface {
	Limits(tenant tenants.Tenant) features.Limits
}

// Observer is notified after equipment data changes. The compliance
// tracker hangs off this.
type Observer interface {
	EquipmentChanged(ctx context.Context, e Equipment) error
}

// Service handles equipment business logic.
type Service struct {
	repo     RepositoryPort
	tenants  TenantSource
	limits   LimitPort
	observer Observer
	logger   *slog.Logger
}

// NewService builds a Service instance. observer may be nil.
func NewService(repo RepositoryPort, tenantSource TenantSource, limits LimitPort, observer Observer, logger *slog.Logger) *Service {
	return &Service{repo: repo, tenants: tenantSource, limits: limits, observer: observer, logger: logger}
}

// CreateInput describes a new equipment registration.
type CreateInput struct {
	Name                string
	Serial              string
	Category            string
	NextMaintenance     *time.Time
	CertificationExpiry *time.Time
}

// Create registers equipment, enforcing the tenant's tier asset ceiling.
func (s *Service) Create(ctx context.Context, tenantID int64, input CreateInput) (Equipment, error) {
	if input.Name == "" || input.Serial == "" {
		return Equipment{}, fmt.Errorf("equipment: name and serial required")
	}
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return Equipment{}, err
	}
	count, err := s.repo.Count(ctx, tenantID)
	if err != nil {
		return Equipment{}, err
	}
	if !features.WithinLimit(count, s.limits.Limits(tenant).MaxAssets) {
		return Equipment{}, ErrAssetLimit
	}
	created, err := s.repo.Create(ctx, Equipment{
		TenantID:            tenantID,
		Name:                input.Name,
		Serial:              input.Serial,
		Category:            input.Category,
		Status:              StatusAvailable,
		NextMaintenance:     input.NextMaintenance,
		CertificationExpiry: input.CertificationExpiry,
	})
	if err != nil {
		return Equipment{}, err
	}
	s.observe(ctx, created)
	return created, nil
}

// UpdateInput describes a mutable-field update. Zero values and nil
// pointers leave the current field untouched.
type UpdateInput struct {
	Name                string
	Category            string
	Status              Status
	LastMaintenance     *time.Time
	NextMaintenance     *time.Time
	CertificationExpiry *time.Time
}

// Update persists changes and feeds the result to the change observer,
// which derives maintenance updates and resolves alerts.
func (s *Service) Update(ctx context.Context, tenantID, id int64, input UpdateInput) (Equipment, error) {
	current, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return Equipment{}, err
	}
	if input.Name != "" {
		current.Name = input.Name
	}
	if input.Category != "" {
		current.Category = input.Category
	}
	if input.Status != "" {
		current.Status = input.Status
	}
	if input.LastMaintenance != nil {
		current.LastMaintenance = input.LastMaintenance
	}
	if input.NextMaintenance != nil {
		current.NextMaintenance = input.NextMaintenance
	}
	if input.CertificationExpiry != nil {
		current.CertificationExpiry = input.CertificationExpiry
	}
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return Equipment{}, err
	}
	s.observe(ctx, updated)
	return updated, nil
}

// Get fetches a single item scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (Equipment, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns the tenant's fleet.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Equipment, error) {
	return s.repo.List(ctx, tenantID)
}

// Assign attaches equipment to a project.
func (s *Service) Assign(ctx context.Context, tenantID, id, projectID int64) (Equipment, error) {
	current, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return Equipment{}, err
	}
	current.ProjectID = &projectID
	current.Status = StatusAssigned
	return s.repo.Update(ctx, current)
}

// Release detaches equipment from its project.
func (s *Service) Release(ctx context.Context, tenantID, id int64) (Equipment, error) {
	current, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return Equipment{}, err
	}
	current.ProjectID = nil
	current.Status = StatusAvailable
	return s.repo.Update(ctx, current)
}

func (s *Service) observe(ctx context.Context, e Equipment) {
	if s.observer == nil {
		return
	}
	if err := s.observer.EquipmentChanged(ctx, e); err != nil && s.logger != nil {
		s.logger.Warn("equipment: change observer", slog.Int64("equipment_id", e.ID), slog.Any("error", err))
	}
}
