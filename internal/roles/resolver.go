package roles

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/fleetgrid/fleetgrid/internal/shared"
)

// Binding associates a user with their durable role record.
type Binding struct {
	UserID int64
	Email  string
	Role   Role
}

// Directory looks up the durable user-role binding. The users repository
// satisfies this.
type Directory interface {
	Lookup(ctx context.Context, userID int64) (Binding, error)
}

// OverridePolicy may substitute a resolved role for designated accounts.
// The default implementation never overrides; seed fixtures plug in here
// instead of leaking into resolution control flow.
type OverridePolicy interface {
	Override(binding Binding) (Role, bool)
}

// NoOverride is the default OverridePolicy.
type NoOverride struct{}

// Override never substitutes.
func (NoOverride) Override(Binding) (Role, bool) { return RoleNone, false }

// ConfigOverride elevates accounts listed in configuration as
// "email=role" pairs.
type ConfigOverride struct {
	byEmail map[string]Role
}

// NewConfigOverride parses a comma separated list of email=role pairs.
// Malformed entries are skipped.
func NewConfigOverride(raw string) *ConfigOverride {
	byEmail := make(map[string]Role)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		role, err := Parse(parts[1])
		if err != nil {
			continue
		}
		byEmail[strings.ToLower(strings.TrimSpace(parts[0]))] = role
	}
	return &ConfigOverride{byEmail: byEmail}
}

// Override returns the configured role for the account, if any.
func (c *ConfigOverride) Override(binding Binding) (Role, bool) {
	if c == nil || len(c.byEmail) == 0 {
		return RoleNone, false
	}
	role, ok := c.byEmail[strings.ToLower(binding.Email)]
	return role, ok
}

// SessionSaver persists session metadata rewrites. shared.SessionManager
// satisfies this.
type SessionSaver interface {
	Save(ctx context.Context, sess *shared.Session) error
}

// Resolver reconciles the durable role record against the session
// metadata copy. The durable store wins; the metadata copy is rewritten
// on divergence.
type Resolver struct {
	directory Directory
	overrides OverridePolicy
	sessions  SessionSaver
	logger    *slog.Logger
	group     singleflight.Group
}

// NewResolver constructs a Resolver. A nil override policy defaults to
// NoOverride.
func NewResolver(directory Directory, overrides OverridePolicy, sessions SessionSaver, logger *slog.Logger) *Resolver {
	if overrides == nil {
		overrides = NoOverride{}
	}
	return &Resolver{directory: directory, overrides: overrides, sessions: sessions, logger: logger}
}

// Resolve determines the effective role for the session. Concurrent
// resolutions for the same user collapse into one directory read, so
// overlapping refreshes cannot interleave divergent writes.
func (r *Resolver) Resolve(ctx context.Context, sess *shared.Session) Role {
	if sess == nil || sess.User() == "" {
		return RoleNone
	}
	metaRole, _ := Parse(sess.Get(shared.RoleKey))

	userID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("roles: parse session user id", slog.String("value", sess.User()))
		}
		return metaRole
	}

	result, err, _ := r.group.Do(sess.User(), func() (any, error) {
		return r.directory.Lookup(ctx, userID)
	})
	if err != nil {
		// Durable store failure falls back to the metadata copy.
		if r.logger != nil {
			r.logger.Warn("roles: directory lookup", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return metaRole
	}

	binding := result.(Binding)
	effective := binding.Role
	if override, ok := r.overrides.Override(binding); ok {
		effective = override
	}
	if !effective.Valid() {
		return metaRole
	}

	if effective != metaRole {
		sess.Set(shared.RoleKey, string(effective))
		if r.sessions != nil {
			if err := r.sessions.Save(ctx, sess); err != nil && r.logger != nil {
				r.logger.Warn("roles: rewrite session metadata", slog.Int64("user_id", userID), slog.Any("error", err))
			}
		}
	}
	return effective
}
