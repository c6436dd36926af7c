package features

import (
	"context"
	"log/slog"
	"time"

	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
)

// Notifier surfaces upgrade prompts as in-app notifications.
type Notifier interface {
	Announce(ctx context.Context, tenantID int64, kind, message string) error
}

// Gate combines role and subscription tier into feature-access
// decisions.
type Gate struct {
	adminBypass bool
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

// NewGate constructs a Gate. adminBypass lets admin-level roles skip the
// tier allow-list; it is configuration, not a hard-coded rule.
func NewGate(adminBypass bool, notifier Notifier, logger *slog.Logger) *Gate {
	return &Gate{adminBypass: adminBypass, notifier: notifier, logger: logger, now: time.Now}
}

// WithNow overrides the gate clock for testing.
func (g *Gate) WithNow(fn func() time.Time) {
	if fn != nil {
		g.now = fn
	}
}

// CanAccess decides whether a named feature is usable for the role and
// tenant. Unknown keys deny silently.
func (g *Gate) CanAccess(role roles.Role, tenant tenants.Tenant, key Key) bool {
	if g.adminBypass && role.AtLeast(roles.RoleAdmin) {
		return true
	}
	min, ok := minTierFor[key]
	if !ok {
		return false
	}
	return tenant.EffectiveTier(g.now()).AtLeast(min)
}

// HasTier reports whether the tenant's effective tier meets min. An open
// trial counts as premium.
func (g *Gate) HasTier(tenant tenants.Tenant, min tenants.Tier) bool {
	return tenant.EffectiveTier(g.now()).AtLeast(min)
}

// Limits returns the numeric ceilings for the tenant's effective tier.
func (g *Gate) Limits(tenant tenants.Tenant) Limits {
	return LimitsFor(tenant.EffectiveTier(g.now()))
}

// PromptUpgrade returns the static upgrade prompt for a feature and
// emits it as a notification. It performs no access decision.
func (g *Gate) PromptUpgrade(ctx context.Context, tenantID int64, key Key) (Prompt, bool) {
	prompt, ok := prompts[key]
	if !ok {
		return Prompt{}, false
	}
	if g.notifier != nil {
		if err := g.notifier.Announce(ctx, tenantID, "upgrade", prompt.Message); err != nil && g.logger != nil {
			g.logger.Warn("features: upgrade prompt", slog.String("feature", string(key)), slog.Any("error", err))
		}
	}
	return prompt, true
}
