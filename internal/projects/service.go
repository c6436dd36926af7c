package projects

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetgrid/fleetgrid/internal/equipment"
)

// RepositoryPort defines data access methods for projects.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID, id int64) (Project, error)
	List(ctx context.Context, tenantID int64) ([]Project, error)
	Create(ctx context.Context, p Project) (Project, error)
	UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error
}

// EquipmentPort exposes the equipment assignment integration.
type EquipmentPort interface {
	Assign(ctx context.Context, tenantID, id, projectID int64) (equipment.Equipment, error)
	Release(ctx context.Context, tenantID, id int64) (equipment.Equipment, error)
}

// Notifier surfaces assignment events.
type Notifier interface {
	Announce(ctx context.Context, tenantID int64, kind, message string) error
}

// Service handles project business logic.
type Service struct {
	repo      RepositoryPort
	equipment EquipmentPort
	notifier  Notifier
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, equipmentPort EquipmentPort, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, equipment: equipmentPort, notifier: notifier, logger: logger}
}

// CreateInput describes a new project.
type CreateInput struct {
	Name     string
	Site     string
	StartsAt *time.Time
	EndsAt   *time.Time
}

// Create registers a project in planned status.
func (s *Service) Create(ctx context.Context, tenantID int64, input CreateInput) (Project, error) {
	if input.Name == "" {
		return Project{}, fmt.Errorf("projects: name required")
	}
	return s.repo.Create(ctx, Project{
		TenantID: tenantID,
		Name:     input.Name,
		Site:     input.Site,
		Status:   StatusPlanned,
		StartsAt: input.StartsAt,
		EndsAt:   input.EndsAt,
	})
}

// Get fetches a project.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (Project, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns the tenant's projects.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Project, error) {
	return s.repo.List(ctx, tenantID)
}

// SetStatus updates the project status.
func (s *Service) SetStatus(ctx context.Context, tenantID, id int64, status Status) error {
	return s.repo.UpdateStatus(ctx, tenantID, id, status)
}

// AssignEquipment attaches equipment to the project and announces it.
func (s *Service) AssignEquipment(ctx context.Context, tenantID, projectID, equipmentID int64) (equipment.Equipment, error) {
	project, err := s.repo.Get(ctx, tenantID, projectID)
	if err != nil {
		return equipment.Equipment{}, err
	}
	item, err := s.equipment.Assign(ctx, tenantID, equipmentID, projectID)
	if err != nil {
		return equipment.Equipment{}, err
	}
	s.announce(ctx, tenantID, fmt.Sprintf("%s assigned to project %s", item.Name, project.Name))
	return item, nil
}

// ReleaseEquipment detaches equipment from its project.
func (s *Service) ReleaseEquipment(ctx context.Context, tenantID, equipmentID int64) (equipment.Equipment, error) {
	return s.equipment.Release(ctx, tenantID, equipmentID)
}

func (s *Service) announce(ctx context.Context, tenantID int64, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Announce(ctx, tenantID, "project", message); err != nil && s.logger != nil {
		s.logger.Warn("projects: announce", slog.Any("error", err))
	}
}
