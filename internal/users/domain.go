package users

import (
	"errors"
	"time"

	"github.com/fleetgrid/fleetgrid/internal/roles"
)

// User is a tenant member account.
type User struct {
	ID           int64
	TenantID     int64
	Email        string
	Name         string
	PasswordHash string
	Role         roles.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("users: email already registered")
	// ErrUserLimit indicates the tenant hit its plan seat ceiling.
	ErrUserLimit = errors.New("users: plan user limit reached")
	// ErrLastAdmin indicates the change would leave the tenant without an admin.
	ErrLastAdmin = errors.New("users: tenant requires at least one admin")
)
