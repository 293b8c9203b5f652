package usecases

import (
	"context"
	"time"

	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
)

// PeerManager applies and retracts credentials on the network daemon and its
// persisted configuration.
type PeerManager interface {
	// InstallPeer adds the peer to the live daemon and persists it. A
	// control-plane failure aborts before any file edit.
	InstallPeer(ctx context.Context, publicKey, allowedAddress, ownerLabel string) error
	// RemovePeer retracts the peer. Removing a peer that is not installed
	// is a no-op.
	RemovePeer(ctx context.Context, publicKey string) error
}

// KeyGenerator produces a fresh credential key pair.
type KeyGenerator interface {
	Generate() (entitlement.KeyPair, error)
}

// CredentialRenderer renders the artifact delivered to a subject and derives
// the daemon-side allowed address for a pool address.
type CredentialRenderer interface {
	Build(privateKey, address string) string
	AllowedAddress(address string) string
}

// EventRegistry is the idempotency gate for externally-delivered events.
// Register returns entitlement.ErrDuplicateEvent when the (provider,
// eventID) pair was already accepted.
type EventRegistry interface {
	Register(ctx context.Context, provider, eventID string) error
}

// Transactor runs fn atomically against the datastore. Repository calls
// made with the context fn receives join the same transaction; an error
// from fn rolls every write back.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker provides named mutual exclusion across all deployment instances.
type Locker interface {
	// Acquire blocks until the named lock is held or ctx is done.
	Acquire(ctx context.Context, name string) (release func(), err error)
	// TryAcquire attempts a single non-blocking acquisition.
	TryAcquire(ctx context.Context, name string) (release func(), acquired bool, err error)
}

// SubjectNotifier delivers messages to subjects. Implementations must never
// hold an allocation or file lock while sending; all calls are best-effort
// from the caller's point of view.
type SubjectNotifier interface {
	DeliverCredential(ctx context.Context, subjectID int64, configText string, expiresAt time.Time) error
	NotifyRenewal(ctx context.Context, subjectID int64, expiresAt time.Time) error
	NotifyCancelled(ctx context.Context, subjectID int64) error
	NotifyExpired(ctx context.Context, subjectID int64) error
	NotifyExpiring(ctx context.Context, subjectID int64, expiresAt time.Time) error
}

// ReminderMarker deduplicates nearing-expiry reminders so a subject is
// messaged once per expiry window, not once per job cycle.
type ReminderMarker interface {
	// TryMark returns true if no reminder was sent for the entitlement
	// within the TTL window and atomically records this one.
	TryMark(ctx context.Context, entitlementID uint, ttl time.Duration) (bool, error)
}
