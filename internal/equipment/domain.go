package equipment

import (
	"errors"
	"time"
)

// Equipment lifecycle statuses.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusAssigned    Status = "assigned"
	StatusMaintenance Status = "maintenance"
	StatusRetired     Status = "retired"
)

// Equipment domain model.
type Equipment struct {
	ID                  int64
	TenantID            int64
	Name                string
	Serial              string
	Category            string
	Status              Status
	ProjectID           *int64
	LastMaintenance     *time.Time
	NextMaintenance     *time.Time
	CertificationExpiry *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

var (
	// ErrNotFound indicates the equipment does not exist in the tenant.
	ErrNotFound = errors.New("equipment: not found")
	// ErrDuplicateSerial indicates the serial is already registered.
	ErrDuplicateSerial = errors.New("equipment: serial already registered")
	// ErrAssetLimit indicates the tenant's tier asset ceiling is reached.
	ErrAssetLimit = errors.New("equipment: asset limit reached for current plan")
)
