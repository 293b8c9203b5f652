package usecases

import (
	"context"
	"fmt"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/addralloc"
	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/dto"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// AdminActivateUseCase re-enables a deactivated entitlement, reusing its
// stored address and key pair.
type AdminActivateUseCase struct {
	entitlementRepo entitlement.Repository
	allocator       addralloc.Allocator
	peers           PeerManager
	renderer        CredentialRenderer
	logger          logger.Interface
}

// NewAdminActivateUseCase creates a new AdminActivateUseCase.
func NewAdminActivateUseCase(
	entitlementRepo entitlement.Repository,
	allocator addralloc.Allocator,
	peers PeerManager,
	renderer CredentialRenderer,
	log logger.Interface,
) *AdminActivateUseCase {
	return &AdminActivateUseCase{
		entitlementRepo: entitlementRepo,
		allocator:       allocator,
		peers:           peers,
		renderer:        renderer,
		logger:          log,
	}
}

// Execute reclaims the stored address, reinstalls the peer, then flips the
// ledger row active. A control-plane failure aborts the activation and the
// reclaimed address is released again.
func (uc *AdminActivateUseCase) Execute(ctx context.Context, id uint) (*dto.EntitlementDTO, error) {
	ent, err := uc.entitlementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ent.Active() {
		return nil, entitlement.ErrEntitlementActive
	}

	// The stored address may have been handed to someone else since the
	// deactivation. An active holder makes the reactivation impossible.
	holders, err := uc.entitlementRepo.CountActiveByAddress(ctx, ent.Address())
	if err != nil {
		return nil, err
	}
	if holders > 0 {
		return nil, fmt.Errorf("%w: %s held by an active entitlement",
			entitlement.ErrAddressUnavailable, ent.Address())
	}

	if err := uc.allocator.Claim(ctx, ent.Address()); err != nil {
		return nil, err
	}

	allowed := uc.renderer.AllowedAddress(ent.Address())
	if err := uc.peers.InstallPeer(ctx, ent.Keys().PublicKey, allowed, ent.SubjectLabel()); err != nil {
		if relErr := uc.allocator.Release(ctx, ent.Address()); relErr != nil {
			uc.logger.Errorw("failed to release address after activation failure",
				"entitlement_id", id, "address", ent.Address(), "error", relErr)
		}
		return nil, err
	}

	if err := ent.Activate(entitlement.EventAdminActivate); err != nil {
		return nil, err
	}
	if err := uc.entitlementRepo.Update(ctx, ent); err != nil {
		return nil, fmt.Errorf("failed to persist activation: %w", err)
	}

	uc.logger.Infow("entitlement reactivated by admin",
		"entitlement_id", id,
		"address", ent.Address())

	return dto.ToEntitlementDTO(ent), nil
}
