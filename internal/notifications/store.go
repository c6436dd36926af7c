package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/fleetgrid/fleetgrid/internal/shared"
)

// PrefStoreVersion is the persisted envelope version for preference
// blobs.
const PrefStoreVersion = 1

// PrefStore persists per-user preference sets as versioned blobs.
type PrefStore struct {
	blobs  *shared.BlobStore
	logger *slog.Logger
}

// NewPrefStore constructs a PrefStore.
func NewPrefStore(blobs *shared.BlobStore, logger *slog.Logger) *PrefStore {
	return &PrefStore{blobs: blobs, logger: logger}
}

// Load returns the stored preference set. A missing or unreadable blob
// yields defaults; the failure is logged, not surfaced.
func (s *PrefStore) Load(ctx context.Context, userID int64) *PrefSet {
	prefs := NewPrefSet()
	err := s.blobs.Get(ctx, strconv.FormatInt(userID, 10), prefs)
	if err != nil && !errors.Is(err, shared.ErrNoBlob) {
		if s.logger != nil {
			s.logger.Warn("notifications: load prefs", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return NewPrefSet()
	}
	if prefs.Prefs == nil {
		prefs.Prefs = make(map[Type]Preference)
	}
	return prefs
}

// Save persists the preference set.
func (s *PrefStore) Save(ctx context.Context, userID int64, prefs *PrefSet) error {
	return s.blobs.Put(ctx, strconv.FormatInt(userID, 10), prefs)
}
