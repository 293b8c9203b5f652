package usecases

import (
	"context"
	"fmt"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/addralloc"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// ExpireEntitlementsUseCase converges ledger, pool and daemon state for
// time-expired entitlements. Single-flight across instances is enforced by
// the scheduler, which skips the cycle when the sweep lock is held.
type ExpireEntitlementsUseCase struct {
	entitlementRepo entitlement.Repository
	allocator       addralloc.Allocator
	peers           PeerManager
	notifier        SubjectNotifier
	tx              Transactor
	logger          logger.Interface
}

// NewExpireEntitlementsUseCase creates a new ExpireEntitlementsUseCase.
func NewExpireEntitlementsUseCase(
	entitlementRepo entitlement.Repository,
	allocator addralloc.Allocator,
	peers PeerManager,
	notifier SubjectNotifier,
	tx Transactor,
	log logger.Interface,
) *ExpireEntitlementsUseCase {
	return &ExpireEntitlementsUseCase{
		entitlementRepo: entitlementRepo,
		allocator:       allocator,
		peers:           peers,
		notifier:        notifier,
		tx:              tx,
		logger:          log,
	}
}

// Execute deactivates every active entitlement whose expiry has passed.
// A failure on one row is logged and the sweep continues to the next.
// Returns the number of entitlements expired.
func (uc *ExpireEntitlementsUseCase) Execute(ctx context.Context) (int, error) {
	expired, err := uc.entitlementRepo.FindExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired entitlements: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	uc.logger.Infow("found expired entitlements to process", "count", len(expired))

	processed := 0
	for _, ent := range expired {
		if err := ent.Deactivate(entitlement.EventExpired); err != nil {
			uc.logger.Warnw("failed to mark entitlement expired",
				"entitlement_id", ent.ID(), "error", err)
			continue
		}

		// The ledger update and the pool release commit together; a
		// failed row stays active and is retried on the next sweep.
		err := uc.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
			if err := uc.entitlementRepo.Update(txCtx, ent); err != nil {
				return fmt.Errorf("failed to persist expiry: %w", err)
			}
			if err := uc.allocator.Release(txCtx, ent.Address()); err != nil {
				return fmt.Errorf("failed to release address: %w", err)
			}
			return nil
		})
		if err != nil {
			uc.logger.Errorw("failed to expire entitlement",
				"entitlement_id", ent.ID(), "address", ent.Address(), "error", err)
			continue
		}

		if err := uc.peers.RemovePeer(ctx, ent.Keys().PublicKey); err != nil {
			uc.logger.Errorw("failed to remove expired peer",
				"entitlement_id", ent.ID(),
				"public_key", ent.Keys().PublicKey,
				"error", err)
		}

		if err := uc.notifier.NotifyExpired(ctx, ent.SubjectID()); err != nil {
			uc.logger.Warnw("failed to notify subject of expiry",
				"subject_id", ent.SubjectID(), "error", err)
		}

		processed++
		uc.logger.Debugw("entitlement expired",
			"entitlement_id", ent.ID(), "subject_id", ent.SubjectID())
	}

	return processed, nil
}
