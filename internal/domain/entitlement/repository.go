package entitlement

import (
	"context"
	"time"
)

// Repository defines the persistence operations for entitlements. The
// ledger is the source of truth for which subjects have access and until
// when.
type Repository interface {
	// Create inserts a new entitlement and assigns its ID.
	Create(ctx context.Context, e *Entitlement) error

	// Update persists in-place mutations (renewal, deactivation).
	Update(ctx context.Context, e *Entitlement) error

	// Delete physically removes an entitlement row. The only deletion path.
	Delete(ctx context.Context, id uint) error

	// GetByID retrieves an entitlement by ID, active or not.
	GetByID(ctx context.Context, id uint) (*Entitlement, error)

	// FindCurrentSubscription returns the latest active, unexpired
	// entitlement matching the subscription correlation keys, or
	// ErrEntitlementNotFound.
	FindCurrentSubscription(ctx context.Context, externalUserID, periodID, channelID int64) (*Entitlement, error)

	// FindLatestDonation returns the most recent entitlement matching the
	// donation correlation keys regardless of state, or
	// ErrEntitlementNotFound.
	FindLatestDonation(ctx context.Context, externalUserID, externalSubscriptionID int64) (*Entitlement, error)

	// FindActiveByScope returns all active entitlements in a cancellation
	// scope.
	FindActiveByScope(ctx context.Context, scope Scope) ([]*Entitlement, error)

	// FindCurrentBySubject returns all active, unexpired entitlements of a
	// subject, newest expiry first.
	FindCurrentBySubject(ctx context.Context, subjectID int64) ([]*Entitlement, error)

	// FindLatestCurrentBySubject returns the subject's active unexpired
	// entitlement with the latest expiry, or ErrEntitlementNotFound.
	FindLatestCurrentBySubject(ctx context.Context, subjectID int64) (*Entitlement, error)

	// FindExpired returns all entitlements still flagged active whose
	// expiry has passed.
	FindExpired(ctx context.Context) ([]*Entitlement, error)

	// FindExpiringBetween returns active entitlements whose expiry falls
	// within (from, to]. Used by the reminder job.
	FindExpiringBetween(ctx context.Context, from, to time.Time) ([]*Entitlement, error)

	// ListRecent returns the most recently created entitlements.
	ListRecent(ctx context.Context, limit int) ([]*Entitlement, error)

	// CountActiveByAddress returns how many active entitlements hold the
	// given address. Used by the pool consistency check.
	CountActiveByAddress(ctx context.Context, address string) (int64, error)
}

// PromoCodeRepository defines the persistence operations for promo codes
// and their redemption trail.
type PromoCodeRepository interface {
	// Create inserts a new promo code and assigns its ID.
	Create(ctx context.Context, p *PromoCode) error

	// Update persists in-place mutations (use count, deactivation).
	Update(ctx context.Context, p *PromoCode) error

	// GetByCode retrieves a promo code by its normalized value, or
	// ErrPromoCodeNotFound.
	GetByCode(ctx context.Context, code string) (*PromoCode, error)

	// ListActive returns all active promo codes, newest first.
	ListActive(ctx context.Context) ([]*PromoCode, error)

	// CountRedemptionsBySubject returns how many times the subject has
	// redeemed the code.
	CountRedemptionsBySubject(ctx context.Context, promoCodeID uint, subjectID int64) (int, error)

	// RecordRedemption appends one redemption to the trail.
	RecordRedemption(ctx context.Context, promoCodeID uint, subjectID int64, entitlementID uint) error
}
