package features

import "github.com/fleetgrid/fleetgrid/internal/tenants"

// Key identifies a gated feature. The set is closed; an unknown key is
// denied rather than rejected, so a typo fails closed.
type Key string

const (
	KeyBasicAIAssistant      Key = "basic_ai_assistant"
	KeyMaintenanceScheduling Key = "maintenance_scheduling"
	KeyGPSTracking           Key = "gps_tracking"
	KeyProjectTemplates      Key = "project_templates"
	KeyComplianceReports     Key = "compliance_reports"
	KeyAdvancedAnalytics     Key = "advanced_analytics"
	KeySMSAlerts             Key = "sms_alerts"
	KeyAPIAccess             Key = "api_access"
	KeyCustomBranding        Key = "custom_branding"
)

// tierFeatures is the per-tier allow-list. Each tier includes everything
// below it.
var tierFeatures = map[tenants.Tier][]Key{
	tenants.TierBasic: {
		KeyBasicAIAssistant,
		KeyMaintenanceScheduling,
	},
	tenants.TierStandard: {
		KeyGPSTracking,
		KeyProjectTemplates,
		KeyComplianceReports,
	},
	tenants.TierPremium: {
		KeyAdvancedAnalytics,
		KeySMSAlerts,
		KeyAPIAccess,
	},
	tenants.TierEnterprise: {
		KeyCustomBranding,
	},
}

// minTierFor maps each key to the lowest tier that carries it.
var minTierFor = buildMinTiers()

func buildMinTiers() map[Key]tenants.Tier {
	out := make(map[Key]tenants.Tier)
	for _, tier := range []tenants.Tier{tenants.TierBasic, tenants.TierStandard, tenants.TierPremium, tenants.TierEnterprise} {
		for _, key := range tierFeatures[tier] {
			out[key] = tier
		}
	}
	return out
}

// Unlimited is the sentinel ceiling for tiers without numeric limits.
const Unlimited = -1

// Limits holds per-tier numeric ceilings.
type Limits struct {
	MaxAssets int
	MaxUsers  int
}

var tierLimits = map[tenants.Tier]Limits{
	tenants.TierBasic:      {MaxAssets: 50, MaxUsers: 5},
	tenants.TierStandard:   {MaxAssets: 250, MaxUsers: 25},
	tenants.TierPremium:    {MaxAssets: 1000, MaxUsers: 100},
	tenants.TierEnterprise: {MaxAssets: Unlimited, MaxUsers: Unlimited},
}

// LimitsFor returns the ceilings configured for a tier.
func LimitsFor(tier tenants.Tier) Limits {
	limits, ok := tierLimits[tier]
	if !ok {
		return tierLimits[tenants.TierBasic]
	}
	return limits
}

// WithinLimit reports whether adding one more unit stays under the
// ceiling. Unlimited always passes.
func WithinLimit(current, ceiling int) bool {
	if ceiling == Unlimited {
		return true
	}
	return current < ceiling
}

// Prompt is the static upgrade message shown when a feature is gated.
type Prompt struct {
	Feature Key    `json:"feature"`
	Message string `json:"message"`
	Tier    string `json:"tier"`
}

var prompts = map[Key]Prompt{
	KeyGPSTracking:       {Feature: KeyGPSTracking, Message: "Live GPS tracking requires the Standard plan.", Tier: string(tenants.TierStandard)},
	KeyProjectTemplates:  {Feature: KeyProjectTemplates, Message: "Project templates require the Standard plan.", Tier: string(tenants.TierStandard)},
	KeyComplianceReports: {Feature: KeyComplianceReports, Message: "Compliance reports require the Standard plan.", Tier: string(tenants.TierStandard)},
	KeyAdvancedAnalytics: {Feature: KeyAdvancedAnalytics, Message: "Advanced analytics requires the Premium plan.", Tier: string(tenants.TierPremium)},
	KeySMSAlerts:         {Feature: KeySMSAlerts, Message: "SMS alerts require the Premium plan.", Tier: string(tenants.TierPremium)},
	KeyAPIAccess:         {Feature: KeyAPIAccess, Message: "API access requires the Premium plan.", Tier: string(tenants.TierPremium)},
	KeyCustomBranding:    {Feature: KeyCustomBranding, Message: "Custom branding requires the Enterprise plan.", Tier: string(tenants.TierEnterprise)},
}
