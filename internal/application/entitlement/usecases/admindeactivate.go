package usecases

import (
	"context"
	"fmt"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/addralloc"
	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/dto"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// AdminDeactivateUseCase turns off a single entitlement by identifier.
type AdminDeactivateUseCase struct {
	entitlementRepo entitlement.Repository
	allocator       addralloc.Allocator
	peers           PeerManager
	logger          logger.Interface
}

// NewAdminDeactivateUseCase creates a new AdminDeactivateUseCase.
func NewAdminDeactivateUseCase(
	entitlementRepo entitlement.Repository,
	allocator addralloc.Allocator,
	peers PeerManager,
	log logger.Interface,
) *AdminDeactivateUseCase {
	return &AdminDeactivateUseCase{
		entitlementRepo: entitlementRepo,
		allocator:       allocator,
		peers:           peers,
		logger:          log,
	}
}

// Execute deactivates the entitlement, releases its address and attempts
// peer removal. Deactivating an already-inactive entitlement is a no-op.
func (uc *AdminDeactivateUseCase) Execute(ctx context.Context, id uint) (*dto.EntitlementDTO, error) {
	ent, err := uc.entitlementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wasActive := ent.Active()
	if err := ent.Deactivate(entitlement.EventAdminDeactivate); err != nil {
		return nil, err
	}
	if wasActive {
		if err := uc.entitlementRepo.Update(ctx, ent); err != nil {
			return nil, fmt.Errorf("failed to persist deactivation: %w", err)
		}
		if err := uc.allocator.Release(ctx, ent.Address()); err != nil {
			uc.logger.Errorw("failed to release address on admin deactivation",
				"entitlement_id", id, "address", ent.Address(), "error", err)
		}
		if err := uc.peers.RemovePeer(ctx, ent.Keys().PublicKey); err != nil {
			uc.logger.Errorw("failed to remove peer on admin deactivation",
				"entitlement_id", id, "error", err)
		}
		uc.logger.Infow("entitlement deactivated by admin", "entitlement_id", id)
	}

	return dto.ToEntitlementDTO(ent), nil
}
