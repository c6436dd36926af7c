package compliance

import (
	"errors"
	"time"
)

// AlertType identifies the compliance concern.
type AlertType string

const (
	AlertMaintenance   AlertType = "maintenance"
	AlertCertification AlertType = "certification"
	AlertInspection    AlertType = "inspection"
)

// AlertStatus is the alert lifecycle state. Transitions move forward
// only: open -> acknowledged -> resolved, with an automatic
// open -> resolved jump reserved for maintenance alerts.
type AlertStatus string

const (
	StatusOpen         AlertStatus = "open"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// Alert represents an equipment compliance concern.
type Alert struct {
	ID             int64
	TenantID       int64
	EquipmentID    int64
	Type           AlertType
	Priority       string
	Status         AlertStatus
	DueDate        *time.Time
	ResolutionNote *string
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
	CreatedAt      time.Time
}

// MaintenanceUpdateKind distinguishes derived maintenance events.
type MaintenanceUpdateKind string

const (
	// UpdateCompleted records a change to the last-maintenance date.
	UpdateCompleted MaintenanceUpdateKind = "completed"
	// UpdateScheduled records a change to the next-maintenance date.
	UpdateScheduled MaintenanceUpdateKind = "scheduled"
)

// MaintenanceUpdate is a derived record of an observed maintenance
// date change.
type MaintenanceUpdate struct {
	ID          int64
	TenantID    int64
	EquipmentID int64
	Kind        MaintenanceUpdateKind
	Date        time.Time
	RecordedAt  time.Time
}

var (
	// ErrNotFound indicates the alert does not exist in the tenant.
	ErrNotFound = errors.New("compliance: alert not found")
	// ErrInvalidTransition indicates a backward or repeated transition.
	ErrInvalidTransition = errors.New("compliance: invalid status transition")
)

// CanTransition validates a status change. Automatic transitions may
// jump open -> resolved; user-driven ones step forward one state at a
// time.
func CanTransition(from, to AlertStatus, automatic bool) bool {
	switch {
	case from == StatusOpen && to == StatusAcknowledged:
		return !automatic
	case from == StatusAcknowledged && to == StatusResolved:
		return !automatic
	case from == StatusOpen && to == StatusResolved:
		return automatic
	default:
		return false
	}
}
