package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/users"
)

// UserSource looks up accounts by email. The users repository satisfies
// this.
type UserSource interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
}

// SessionRepository persists login session records for auditing.
type SessionRepository interface {
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// Service wraps authentication business rules.
type Service struct {
	source   UserSource
	sessions SessionRepository
}

// NewService constructs a new Service.
func NewService(source UserSource, sessions SessionRepository) *Service {
	return &Service{source: source, sessions: sessions}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.source.FindByEmail(ctx, email)
	if err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.sessions.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.sessions.DeleteSession(ctx, id)
}
