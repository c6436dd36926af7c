package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetgrid/fleetgrid/internal/equipment"
	"github.com/fleetgrid/fleetgrid/internal/notifications"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID, id int64) (Alert, error)
	List(ctx context.Context, tenantID int64) ([]Alert, error)
	ListOpenByEquipment(ctx context.Context, tenantID, equipmentID int64, typ AlertType) ([]Alert, error)
	HasOpenAlert(ctx context.Context, equipmentID int64, typ AlertType) (bool, error)
	Create(ctx context.Context, a Alert) (Alert, error)
	UpdateStatus(ctx context.Context, a Alert) error
	RecordUpdate(ctx context.Context, u MaintenanceUpdate) (MaintenanceUpdate, error)
	ListUpdates(ctx context.Context, tenantID int64, limit int) ([]MaintenanceUpdate, error)
}

// NotifierPort fans compliance events out to tenant members.
type NotifierPort interface {
	Broadcast(ctx context.Context, tenantID int64, n notifications.Notification) error
}

// CertificationSource lists equipment with expiring certifications.
type CertificationSource interface {
	ListExpiringCertifications(ctx context.Context, from, to time.Time) ([]equipment.Equipment, error)
}

// MetricsPort counts resolved alerts.
type MetricsPort interface {
	ObserveAlertResolved(kind string)
}

// Service owns the compliance alert lifecycle.
type Service struct {
	repo     RepositoryPort
	certs    CertificationSource
	notifier NotifierPort
	metrics  MetricsPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the compliance service.
func NewService(repo RepositoryPort, certs CertificationSource, notifier NotifierPort, metrics MetricsPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, certs: certs, notifier: notifier, metrics: metrics, logger: logger, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// List returns the tenant's alerts.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Alert, error) {
	return s.repo.List(ctx, tenantID)
}

// ListUpdates returns derived maintenance updates.
func (s *Service) ListUpdates(ctx context.Context, tenantID int64, limit int) ([]MaintenanceUpdate, error) {
	return s.repo.ListUpdates(ctx, tenantID, limit)
}

// Acknowledge moves an open alert forward by user action.
func (s *Service) Acknowledge(ctx context.Context, tenantID, id int64) (Alert, error) {
	alert, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return Alert{}, err
	}
	if !CanTransition(alert.Status, StatusAcknowledged, false) {
		return Alert{}, ErrInvalidTransition
	}
	now := s.now()
	alert.Status = StatusAcknowledged
	alert.AcknowledgedAt = &now
	if err := s.repo.UpdateStatus(ctx, alert); err != nil {
		return Alert{}, err
	}
	return alert, nil
}

// Resolve closes an acknowledged alert by user action.
func (s *Service) Resolve(ctx context.Context, tenantID, id int64, note string) (Alert, error) {
	alert, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return Alert{}, err
	}
	if !CanTransition(alert.Status, StatusResolved, false) {
		return Alert{}, ErrInvalidTransition
	}
	now := s.now()
	alert.Status = StatusResolved
	alert.ResolvedAt = &now
	if note != "" {
		alert.ResolutionNote = &note
	}
	if err := s.repo.UpdateStatus(ctx, alert); err != nil {
		return Alert{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveAlertResolved("user")
	}
	return alert, nil
}

// AutoResolveMaintenance closes every open maintenance alert for the
// equipment, stamping the resolution note. Only maintenance alerts may
// resolve without user interaction.
func (s *Service) AutoResolveMaintenance(ctx context.Context, tenantID, equipmentID int64, note string) (int, error) {
	open, err := s.repo.ListOpenByEquipment(ctx, tenantID, equipmentID, AlertMaintenance)
	if err != nil {
		return 0, err
	}
	resolved := 0
	now := s.now()
	for _, alert := range open {
		if !CanTransition(alert.Status, StatusResolved, true) {
			continue
		}
		alert.Status = StatusResolved
		alert.ResolvedAt = &now
		alert.ResolutionNote = &note
		if err := s.repo.UpdateStatus(ctx, alert); err != nil {
			if s.logger != nil {
				s.logger.Warn("compliance: auto resolve", slog.Int64("alert_id", alert.ID), slog.Any("error", err))
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.ObserveAlertResolved("automatic")
		}
		resolved++
	}
	return resolved, nil
}

// CreateAlert opens a new alert and notifies the tenant.
func (s *Service) CreateAlert(ctx context.Context, a Alert) (Alert, error) {
	if a.TenantID == 0 || a.EquipmentID == 0 {
		return Alert{}, fmt.Errorf("compliance: tenant and equipment required")
	}
	a.Status = StatusOpen
	a.CreatedAt = s.now()
	if a.Priority == "" {
		a.Priority = string(notifications.PriorityMedium)
	}
	created, err := s.repo.Create(ctx, a)
	if err != nil {
		return Alert{}, err
	}
	return created, nil
}

// ScanCertifications opens certification alerts for equipment expiring
// inside the lookahead window. Equipment with an alert already open or
// acknowledged is skipped, so repeated scans do not duplicate.
// Certification alerts always need explicit user resolution.
func (s *Service) ScanCertifications(ctx context.Context, lookahead time.Duration) (int, error) {
	now := s.now()
	expiring, err := s.certs.ListExpiringCertifications(ctx, now, now.Add(lookahead))
	if err != nil {
		return 0, err
	}
	opened := 0
	for _, item := range expiring {
		exists, err := s.repo.HasOpenAlert(ctx, item.ID, AlertCertification)
		if err != nil {
			return opened, err
		}
		if exists {
			continue
		}
		alert := Alert{
			TenantID:    item.TenantID,
			EquipmentID: item.ID,
			Type:        AlertCertification,
			Priority:    string(notifications.PriorityHigh),
			DueDate:     item.CertificationExpiry,
			CreatedAt:   now,
			Status:      StatusOpen,
		}
		if _, err := s.repo.Create(ctx, alert); err != nil {
			if s.logger != nil {
				s.logger.Warn("compliance: create certification alert", slog.Int64("equipment_id", item.ID), slog.Any("error", err))
			}
			continue
		}
		opened++
		s.broadcast(ctx, item.TenantID, notifications.Notification{
			Type:     notifications.TypeCertificationExpiry,
			Priority: notifications.PriorityHigh,
			Title:    fmt.Sprintf("Certification expiring: %s", item.Name),
			Message:  fmt.Sprintf("Certification for %s expires on %s", item.Name, item.CertificationExpiry.Format("2006-01-02")),
		})
	}
	return opened, nil
}

func (s *Service) broadcast(ctx context.Context, tenantID int64, n notifications.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Broadcast(ctx, tenantID, n); err != nil && s.logger != nil {
		s.logger.Warn("compliance: broadcast", slog.String("type", string(n.Type)), slog.Any("error", err))
	}
}
