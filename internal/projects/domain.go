package projects

import (
	"errors"
	"time"
)

// Project lifecycle statuses.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Project groups equipment assignments for a tenant.
type Project struct {
	ID        int64
	TenantID  int64
	Name      string
	Site      string
	Status    Status
	StartsAt  *time.Time
	EndsAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrNotFound indicates the project does not exist in the tenant.
var ErrNotFound = errors.New("projects: not found")

// Template is a predefined project blueprint offered to premium tenants.
type Template struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DurationDay int    `json:"duration_days"`
}

// Templates returns the built-in project blueprints.
func Templates() []Template {
	return []Template{
		{Slug: "site-prep", Name: "Site Preparation", Description: "Clearing, grading and utility staking", DurationDay: 14},
		{Slug: "road-maintenance", Name: "Road Maintenance", Description: "Resurfacing and drainage repair cycle", DurationDay: 30},
		{Slug: "seasonal-shutdown", Name: "Seasonal Shutdown", Description: "Winterization and storage of idle fleet", DurationDay: 7},
	}
}
