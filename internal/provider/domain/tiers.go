package domain

// planTiers maps provider price identifiers to internal plan tiers.
// Kept static on purpose: a price id the code does not know about is a
// deployment mistake, not data to guess at.
var planTiers = map[string]string{
	"price_starter_monthly": "starter",
	"price_starter_yearly":  "starter",
	"price_growth_monthly":  "growth",
	"price_growth_yearly":   "growth",
	"price_scale_monthly":   "scale",
	"price_scale_yearly":    "scale",
}

// TierForPrice resolves a provider price id to an internal plan tier.
func TierForPrice(priceID string) (string, bool) {
	tier, ok := planTiers[priceID]
	return tier, ok
}
