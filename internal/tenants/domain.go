package tenants

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tier is a subscription level with a feature allow-list and limits.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierStandard   Tier = "standard"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

var tierRanks = map[Tier]int{
	TierBasic:      1,
	TierStandard:   2,
	TierPremium:    3,
	TierEnterprise: 4,
}

// ParseTier validates a raw tier string.
func ParseTier(raw string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := tierRanks[tier]; !ok {
		return "", fmt.Errorf("tenants: unknown tier %q", raw)
	}
	return tier, nil
}

// Rank returns the tier's position in the upgrade ladder, 0 for unknown.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// AtLeast reports whether the tier ranks at or above min.
func (t Tier) AtLeast(min Tier) bool {
	if t.Rank() == 0 || min.Rank() == 0 {
		return false
	}
	return t.Rank() >= min.Rank()
}

// Status is the subscription lifecycle state.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
)

// Subscription state machine errors.
var (
	ErrNotFound          = errors.New("tenants: not found")
	ErrTrialNotAllowed   = errors.New("tenants: subscription already active or trialing")
	ErrInvalidTransition = errors.New("tenants: invalid subscription transition")
)

// Tenant represents an organization.
type Tenant struct {
	ID          int64
	Name        string
	Tier        Tier
	Status      Status
	TrialEndsAt *time.Time
	Features    []string
	Theme       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TrialActive reports whether a trial window is currently open. The
// boundary is strict: a trial ending exactly now is already over.
func (t Tenant) TrialActive(now time.Time) bool {
	return t.Status == StatusTrialing && t.TrialEndsAt != nil && t.TrialEndsAt.After(now)
}

// EffectiveTier is the tier used for gating. An open trial counts as
// premium regardless of the stored tier, unless the stored tier already
// ranks higher.
func (t Tenant) EffectiveTier(now time.Time) Tier {
	if t.TrialActive(now) && !t.Tier.AtLeast(TierPremium) {
		return TierPremium
	}
	return t.Tier
}
