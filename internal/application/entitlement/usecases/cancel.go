package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/addralloc"
	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/dto"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// CancelCommand is the normalized upstream-cancellation event. The scope
// tuple selects every active entitlement of the external user on the given
// period and channel.
type CancelCommand struct {
	Provider       string
	EventID        string
	ExternalUserID int64
	PeriodID       int64
	ChannelID      int64
}

// CancelUseCase deactivates every active entitlement in a cancellation
// scope. The ledger is the authority for access, so a daemon-side removal
// failure never blocks the deactivation.
type CancelUseCase struct {
	entitlementRepo entitlement.Repository
	events          EventRegistry
	allocator       addralloc.Allocator
	peers           PeerManager
	notifier        SubjectNotifier
	tx              Transactor
	logger          logger.Interface
}

// NewCancelUseCase creates a new CancelUseCase.
func NewCancelUseCase(
	entitlementRepo entitlement.Repository,
	events EventRegistry,
	allocator addralloc.Allocator,
	peers PeerManager,
	notifier SubjectNotifier,
	tx Transactor,
	log logger.Interface,
) *CancelUseCase {
	return &CancelUseCase{
		entitlementRepo: entitlementRepo,
		events:          events,
		allocator:       allocator,
		peers:           peers,
		notifier:        notifier,
		tx:              tx,
		logger:          log,
	}
}

// Execute deactivates all active entitlements in the scope and returns
// their summaries. A redelivered cancellation returns an empty list without
// re-running side effects.
func (uc *CancelUseCase) Execute(ctx context.Context, cmd CancelCommand) ([]*dto.EntitlementDTO, error) {
	if err := uc.events.Register(ctx, cmd.Provider, cmd.EventID); err != nil {
		if errors.Is(err, entitlement.ErrDuplicateEvent) {
			uc.logger.Infow("cancellation already handled",
				"provider", cmd.Provider, "event_id", cmd.EventID)
			return []*dto.EntitlementDTO{}, nil
		}
		return nil, err
	}

	scope := entitlement.Scope{
		ExternalUserID: cmd.ExternalUserID,
		PeriodID:       cmd.PeriodID,
		ChannelID:      cmd.ChannelID,
	}

	active, err := uc.entitlementRepo.FindActiveByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to find entitlements in scope: %w", err)
	}
	if len(active) == 0 {
		uc.logger.Infow("cancellation scope has no active entitlements",
			"external_user_id", cmd.ExternalUserID,
			"period_id", cmd.PeriodID,
			"channel_id", cmd.ChannelID)
		return []*dto.EntitlementDTO{}, nil
	}

	deactivated := make([]*dto.EntitlementDTO, 0, len(active))
	for _, ent := range active {
		if err := uc.deactivateOne(ctx, ent); err != nil {
			uc.logger.Errorw("failed to deactivate entitlement, continuing",
				"entitlement_id", ent.ID(), "error", err)
			continue
		}
		deactivated = append(deactivated, dto.ToEntitlementDTO(ent))

		if err := uc.notifier.NotifyCancelled(ctx, ent.SubjectID()); err != nil {
			uc.logger.Warnw("failed to notify subject of cancellation",
				"subject_id", ent.SubjectID(), "error", err)
		}
	}

	uc.logger.Infow("cancellation processed",
		"external_user_id", cmd.ExternalUserID,
		"deactivated", len(deactivated))

	return deactivated, nil
}

// deactivateOne commits the ledger update and the pool release in one
// transaction, so a cancelled row can never keep its address claimed.
func (uc *CancelUseCase) deactivateOne(ctx context.Context, ent *entitlement.Entitlement) error {
	if err := ent.Deactivate(entitlement.EventCancelled); err != nil {
		return err
	}

	err := uc.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.entitlementRepo.Update(txCtx, ent); err != nil {
			return fmt.Errorf("failed to persist deactivation: %w", err)
		}
		if err := uc.allocator.Release(txCtx, ent.Address()); err != nil {
			return fmt.Errorf("failed to release address: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Best effort: a daemon-side fault must not keep the ledger stuck.
	if err := uc.peers.RemovePeer(ctx, ent.Keys().PublicKey); err != nil {
		uc.logger.Errorw("failed to remove peer on cancellation",
			"entitlement_id", ent.ID(),
			"public_key", ent.Keys().PublicKey,
			"error", err)
	}

	return nil
}
