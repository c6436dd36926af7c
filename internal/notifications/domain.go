package notifications

import (
	"errors"
	"time"
)

// Type identifies a notification kind.
type Type string

const (
	TypeMaintenanceDue       Type = "maintenance_due"
	TypeMaintenanceScheduled Type = "maintenance_scheduled"
	TypeMaintenanceCompleted Type = "maintenance_completed"
	TypeCertificationExpiry  Type = "certification_expiry"
	TypeInspectionDue        Type = "inspection_due"
	TypeProjectAssignment    Type = "project_assignment"
	TypeSubscription         Type = "subscription"
	TypeUpgrade              Type = "upgrade"
	TypeSystem               Type = "system"
)

// Category groups types for bulk toggling.
type Category string

const (
	CategoryMaintenance Category = "maintenance"
	CategoryCompliance  Category = "compliance"
	CategoryProjects    Category = "projects"
	CategoryBilling     Category = "billing"
	CategorySystem      Category = "system"
)

// categories maps each category to its member types.
var categories = map[Category][]Type{
	CategoryMaintenance: {TypeMaintenanceDue, TypeMaintenanceScheduled, TypeMaintenanceCompleted},
	CategoryCompliance:  {TypeCertificationExpiry, TypeInspectionDue},
	CategoryProjects:    {TypeProjectAssignment},
	CategoryBilling:     {TypeSubscription, TypeUpgrade},
	CategorySystem:      {TypeSystem},
}

// TypesIn lists the member types of a category.
func TypesIn(cat Category) []Type {
	return append([]Type(nil), categories[cat]...)
}

// Channel is a delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ErrInAppRequired enforces that the in-app channel stays on while a
// type is enabled.
var ErrInAppRequired = errors.New("notifications: in-app channel cannot be disabled for an enabled type")

// Preference is the per-type delivery setting.
type Preference struct {
	Type     Type      `json:"type"`
	Enabled  bool      `json:"enabled"`
	Channels []Channel `json:"channels"`
}

// Priority orders notifications for display.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notification is an in-app notification record.
type Notification struct {
	ID        int64
	UserID    int64
	TenantID  int64
	Type      Type
	Priority  Priority
	Title     string
	Message   string
	Read      bool
	CreatedAt time.Time
}
