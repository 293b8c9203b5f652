package usecases

import (
	"context"
	"fmt"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/addralloc"
	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/dto"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// AdminDeleteUseCase physically removes an entitlement row. This is the
// only deletion path in the system.
type AdminDeleteUseCase struct {
	entitlementRepo entitlement.Repository
	allocator       addralloc.Allocator
	peers           PeerManager
	logger          logger.Interface
}

// NewAdminDeleteUseCase creates a new AdminDeleteUseCase.
func NewAdminDeleteUseCase(
	entitlementRepo entitlement.Repository,
	allocator addralloc.Allocator,
	peers PeerManager,
	log logger.Interface,
) *AdminDeleteUseCase {
	return &AdminDeleteUseCase{
		entitlementRepo: entitlementRepo,
		allocator:       allocator,
		peers:           peers,
		logger:          log,
	}
}

// Execute attempts peer removal, releases the address if the entitlement
// was still active, then deletes the ledger row. Peer removal is attempted
// even for inactive entitlements so a lingering daemon-side peer is cleaned
// up.
func (uc *AdminDeleteUseCase) Execute(ctx context.Context, id uint) (*dto.EntitlementDTO, error) {
	ent, err := uc.entitlementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := uc.peers.RemovePeer(ctx, ent.Keys().PublicKey); err != nil {
		uc.logger.Errorw("failed to remove peer on deletion",
			"entitlement_id", id,
			"public_key", ent.Keys().PublicKey,
			"error", err)
	}

	if ent.Active() {
		if err := uc.allocator.Release(ctx, ent.Address()); err != nil {
			uc.logger.Errorw("failed to release address on deletion",
				"entitlement_id", id, "address", ent.Address(), "error", err)
		}
	}

	if err := uc.entitlementRepo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete entitlement: %w", err)
	}

	uc.logger.Infow("entitlement deleted by admin", "entitlement_id", id)
	return dto.ToEntitlementDTO(ent), nil
}
