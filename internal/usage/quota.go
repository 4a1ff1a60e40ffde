package usage

import (
	"myautowhiz-backend/internal/models"
)

const (
	// UnlimitedAnalyses is the sentinel limit for uncapped accounts.
	UnlimitedAnalyses = 9999
	// FreeTierAnalyses is the monthly allowance without an active subscription.
	FreeTierAnalyses = 2
)

var unlimitedRoles = map[string]bool{
	models.RoleAdmin:      true,
	models.RoleSuperAdmin: true,
	models.RoleEnterprise: true,
}

// ResolveQuota returns the monthly analysis limit for a profile and its subscription.
// It never fails: missing data falls through to the free tier.
func ResolveQuota(profile *models.Profile, sub *models.Subscription) int {
	if profile != nil && unlimitedRoles[profile.Role] {
		return UnlimitedAnalyses
	}
	if sub.IsActive() && sub.Plan != nil {
		if sub.Plan.AnalysesPerMonth == nil {
			return UnlimitedAnalyses
		}
		return *sub.Plan.AnalysesPerMonth
	}
	return FreeTierAnalyses
}

// IsUnlimited reports whether limit is the unbounded sentinel.
func IsUnlimited(limit int) bool {
	return limit >= UnlimitedAnalyses
}
