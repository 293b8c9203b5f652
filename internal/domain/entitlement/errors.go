package entitlement

import "errors"

var (
	// ErrEntitlementNotFound is returned when an entitlement is not found.
	ErrEntitlementNotFound = errors.New("entitlement not found")

	// ErrEntitlementInactive is returned when an operation requires an
	// active entitlement.
	ErrEntitlementInactive = errors.New("entitlement inactive")

	// ErrEntitlementActive is returned when an operation requires an
	// inactive entitlement.
	ErrEntitlementActive = errors.New("entitlement active")

	// ErrPoolExhausted is returned when the address pool has no free entry.
	ErrPoolExhausted = errors.New("address pool exhausted")

	// ErrControlPlaneUnavailable is returned when the peer daemon control
	// operation failed or timed out.
	ErrControlPlaneUnavailable = errors.New("peer daemon control plane unavailable")

	// ErrAddressUnavailable is returned when reactivation cannot reclaim
	// the entitlement's stored address because another holder owns it.
	ErrAddressUnavailable = errors.New("address no longer available")

	// ErrDuplicateEvent signals that an external event was already handled.
	// It is the designed idempotency outcome of at-least-once redelivery,
	// not a fault.
	ErrDuplicateEvent = errors.New("event already processed")

	// ErrPromoCodeNotFound is returned when no promo code matches the
	// entered value.
	ErrPromoCodeNotFound = errors.New("promo code not found")

	// ErrPromoCodeNotRedeemable is returned when a promo code exists but
	// is disabled, outside its validity window or reserved for someone
	// else.
	ErrPromoCodeNotRedeemable = errors.New("promo code not redeemable")

	// ErrPromoCodeExhausted is returned when a promo code's overall or
	// per-subject use limit is spent.
	ErrPromoCodeExhausted = errors.New("promo code exhausted")
)
