// Package addralloc defines the address allocation port used by the grant
// and expiry usecases. The pool is a derived index of the ledger: it is
// claimed pessimistically before a ledger row exists so concurrent grants
// can never collide on an address.
package addralloc

import "context"

// PoolStats describes the pool and its consistency against the ledger.
// OrphanAllocations counts pool rows allocated without a matching active
// entitlement; MissingPoolEntries counts active entitlements whose address
// is not allocated in the pool. Both are reported, never auto-repaired.
type PoolStats struct {
	Total              int64 `json:"total"`
	Allocated          int64 `json:"allocated"`
	Free               int64 `json:"free"`
	OrphanAllocations  int64 `json:"orphan_allocations"`
	MissingPoolEntries int64 `json:"missing_pool_entries"`
}

// ConsistencyFaults returns the combined drift count.
func (s *PoolStats) ConsistencyFaults() int64 {
	return s.OrphanAllocations + s.MissingPoolEntries
}

// Allocator hands out addresses from the managed pool.
type Allocator interface {
	// Allocate claims one free address atomically. Concurrent callers
	// never receive the same address. Returns
	// entitlement.ErrPoolExhausted when no free address exists.
	Allocate(ctx context.Context) (string, error)

	// Claim marks a specific address allocated. Used on reactivation,
	// where the stored address must be reclaimed rather than a fresh one
	// drawn. Returns entitlement.ErrAddressUnavailable when the address
	// is already held or not part of the pool.
	Claim(ctx context.Context, address string) error

	// Release marks an address free again. Releasing an address that is
	// not allocated is a no-op, which keeps cleanup after partial
	// failures idempotent.
	Release(ctx context.Context, address string) error

	// Stats reports pool occupancy and ledger consistency.
	Stats(ctx context.Context) (*PoolStats, error)
}
