package entitlement

// GrantKind identifies the origin of a grant-new event and selects the
// duplicate-matching rule applied to it.
type GrantKind string

const (
	// GrantKindSubscription matches existing entitlements on
	// (external user, period, channel).
	GrantKindSubscription GrantKind = "subscription"
	// GrantKindDonation matches existing entitlements on
	// (external user, external subscription).
	GrantKindDonation GrantKind = "donation"
	// GrantKindManual never matches; a manual issuance always creates a
	// new entitlement.
	GrantKindManual GrantKind = "manual"
)

// IsValid checks if the grant kind is valid.
func (k GrantKind) IsValid() bool {
	switch k {
	case GrantKindSubscription, GrantKindDonation, GrantKindManual:
		return true
	}
	return false
}

func (k GrantKind) String() string {
	return string(k)
}

// EventKind records the most recent transition cause on an entitlement.
type EventKind string

const (
	EventNewSubscription EventKind = "new_subscription"
	EventNewDonation     EventKind = "new_donation"
	EventManualGrant     EventKind = "manual_grant"
	EventRenewed         EventKind = "renewed"
	EventCancelled       EventKind = "cancelled"
	EventExpired         EventKind = "expired"
	EventReplaced        EventKind = "replaced"
	EventAdminDeactivate EventKind = "admin_deactivate"
	EventAdminActivate   EventKind = "admin_activate"
	EventPromoRedeemed   EventKind = "promo_redeemed"
)

// IsValid checks if the event kind is valid.
func (e EventKind) IsValid() bool {
	switch e {
	case EventNewSubscription, EventNewDonation, EventManualGrant,
		EventRenewed, EventCancelled, EventExpired, EventReplaced,
		EventAdminDeactivate, EventAdminActivate, EventPromoRedeemed:
		return true
	}
	return false
}

func (e EventKind) String() string {
	return string(e)
}

// GrantEvent selects the EventKind recorded when a grant of the given kind
// creates a new entitlement.
func (k GrantKind) GrantEvent() EventKind {
	switch k {
	case GrantKindDonation:
		return EventNewDonation
	case GrantKindManual:
		return EventManualGrant
	default:
		return EventNewSubscription
	}
}

// Scope is the correlation tuple a cancellation applies to: every active
// entitlement of the external user on the given period and channel.
type Scope struct {
	ExternalUserID int64
	PeriodID       int64
	ChannelID      int64
}

// KeyPair is the credential material held by an entitlement. The private key
// is retained only so the credential artifact can be re-delivered to the
// subject.
type KeyPair struct {
	PrivateKey string
	PublicKey  string
}
