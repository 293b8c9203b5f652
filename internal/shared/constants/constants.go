// Package constants defines shared application constants.
package constants

// Environment names.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Database table names.
const (
	TableEntitlements     = "entitlements"
	TablePoolAddresses    = "pool_addresses"
	TableProcessedEvents  = "processed_events"
	TablePromoCodes       = "promo_codes"
	TablePromoRedemptions = "promo_redemptions"
)

// Named distributed mutex keys. Each key has at most one holder system-wide.
const (
	LockGrantSequence   = "maxnet:lock:grant"
	LockExpirySweep     = "maxnet:lock:expiry-sweep"
	LockReminderSweep   = "maxnet:lock:reminder-sweep"
	LockPromoRedemption = "maxnet:lock:promo-redemption"
)
