package entitlement

import (
	"fmt"
	"time"
)

// Entitlement is the aggregate root for one grant lifecycle instance: a
// time-bounded grant of VPN access tied to a subject, its origin and an
// allocated address plus key pair. Rows are mutated in place on renewal and
// deactivation and physically removed only by administrative deletion.
type Entitlement struct {
	id                     uint
	externalUserID         int64 // correlation key from the payment provider, 0 for manual grants
	externalSubscriptionID int64
	periodID               int64
	periodLabel            string
	channelID              int64
	channelLabel           string
	subjectID              int64 // the principal receiving access
	subjectLabel           string
	address                string
	keys                   KeyPair
	createdAt              time.Time
	expiresAt              time.Time
	active                 bool
	lastEvent              EventKind
}

// NewEntitlement creates a new active entitlement. The address must already
// be claimed in the pool before the entitlement is constructed.
func NewEntitlement(
	externalUserID int64,
	externalSubscriptionID int64,
	periodID int64,
	periodLabel string,
	channelID int64,
	channelLabel string,
	subjectID int64,
	subjectLabel string,
	address string,
	keys KeyPair,
	expiresAt time.Time,
	event EventKind,
) (*Entitlement, error) {
	if subjectID == 0 {
		return nil, fmt.Errorf("subject ID is required")
	}
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if keys.PublicKey == "" {
		return nil, fmt.Errorf("public key is required")
	}
	if expiresAt.IsZero() {
		return nil, fmt.Errorf("expiry time is required")
	}
	if !event.IsValid() {
		return nil, fmt.Errorf("invalid event kind: %s", event)
	}

	return &Entitlement{
		externalUserID:         externalUserID,
		externalSubscriptionID: externalSubscriptionID,
		periodID:               periodID,
		periodLabel:            periodLabel,
		channelID:              channelID,
		channelLabel:           channelLabel,
		subjectID:              subjectID,
		subjectLabel:           subjectLabel,
		address:                address,
		keys:                   keys,
		createdAt:              time.Now().UTC(),
		expiresAt:              expiresAt.UTC(),
		active:                 true,
		lastEvent:              event,
	}, nil
}

// ReconstructEntitlement rebuilds an entitlement from persistence.
func ReconstructEntitlement(
	id uint,
	externalUserID int64,
	externalSubscriptionID int64,
	periodID int64,
	periodLabel string,
	channelID int64,
	channelLabel string,
	subjectID int64,
	subjectLabel string,
	address string,
	keys KeyPair,
	createdAt time.Time,
	expiresAt time.Time,
	active bool,
	lastEvent EventKind,
) (*Entitlement, error) {
	if id == 0 {
		return nil, fmt.Errorf("entitlement ID cannot be zero")
	}
	if subjectID == 0 {
		return nil, fmt.Errorf("subject ID is required")
	}
	if !lastEvent.IsValid() {
		return nil, fmt.Errorf("invalid event kind: %s", lastEvent)
	}

	return &Entitlement{
		id:                     id,
		externalUserID:         externalUserID,
		externalSubscriptionID: externalSubscriptionID,
		periodID:               periodID,
		periodLabel:            periodLabel,
		channelID:              channelID,
		channelLabel:           channelLabel,
		subjectID:              subjectID,
		subjectLabel:           subjectLabel,
		address:                address,
		keys:                   keys,
		createdAt:              createdAt,
		expiresAt:              expiresAt,
		active:                 active,
		lastEvent:              lastEvent,
	}, nil
}

func (e *Entitlement) ID() uint { return e.id }

func (e *Entitlement) ExternalUserID() int64 { return e.externalUserID }

func (e *Entitlement) ExternalSubscriptionID() int64 { return e.externalSubscriptionID }

func (e *Entitlement) PeriodID() int64 { return e.periodID }

func (e *Entitlement) PeriodLabel() string { return e.periodLabel }

func (e *Entitlement) ChannelID() int64 { return e.channelID }

func (e *Entitlement) ChannelLabel() string { return e.channelLabel }

func (e *Entitlement) SubjectID() int64 { return e.subjectID }

func (e *Entitlement) SubjectLabel() string { return e.subjectLabel }

func (e *Entitlement) Address() string { return e.address }

func (e *Entitlement) Keys() KeyPair { return e.keys }

func (e *Entitlement) CreatedAt() time.Time { return e.createdAt }

func (e *Entitlement) ExpiresAt() time.Time { return e.expiresAt }

func (e *Entitlement) Active() bool { return e.active }

func (e *Entitlement) LastEvent() EventKind { return e.lastEvent }

// SetID sets the entitlement ID after the persistence layer assigned one.
func (e *Entitlement) SetID(id uint) error {
	if e.id != 0 {
		return fmt.Errorf("entitlement ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("entitlement ID cannot be zero")
	}
	e.id = id
	return nil
}

// Scope returns the cancellation scope this entitlement belongs to.
func (e *Entitlement) Scope() Scope {
	return Scope{
		ExternalUserID: e.externalUserID,
		PeriodID:       e.periodID,
		ChannelID:      e.channelID,
	}
}

// Renew extends the expiry of an active entitlement. The address and key
// pair never change on renewal, and the expiry must strictly increase.
func (e *Entitlement) Renew(expiresAt time.Time, event EventKind) error {
	if !e.active {
		return ErrEntitlementInactive
	}
	if !expiresAt.After(e.expiresAt) {
		return fmt.Errorf("renewal expiry %s does not extend current expiry %s",
			expiresAt.Format(time.RFC3339), e.expiresAt.Format(time.RFC3339))
	}
	if !event.IsValid() {
		return fmt.Errorf("invalid event kind: %s", event)
	}
	e.expiresAt = expiresAt.UTC()
	e.lastEvent = event
	return nil
}

// Deactivate flips the entitlement inactive. Deactivating an already
// inactive entitlement is a no-op.
func (e *Entitlement) Deactivate(event EventKind) error {
	if !event.IsValid() {
		return fmt.Errorf("invalid event kind: %s", event)
	}
	if !e.active {
		return nil
	}
	e.active = false
	e.lastEvent = event
	return nil
}

// Activate re-enables a deactivated entitlement. The stored address and key
// pair are reused; the caller is responsible for reinstalling the peer.
func (e *Entitlement) Activate(event EventKind) error {
	if !event.IsValid() {
		return fmt.Errorf("invalid event kind: %s", event)
	}
	if e.active {
		return ErrEntitlementActive
	}
	e.active = true
	e.lastEvent = event
	return nil
}

// IsExpired reports whether the expiry time has passed.
func (e *Entitlement) IsExpired() bool {
	return time.Now().After(e.expiresAt)
}

// IsCurrent reports whether the entitlement is active and not expired.
func (e *Entitlement) IsCurrent() bool {
	return e.active && !e.IsExpired()
}
