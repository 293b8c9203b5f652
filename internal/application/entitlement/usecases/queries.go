package usecases

import (
	"context"
	"fmt"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/addralloc"
	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/dto"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
)

// GetEntitlementUseCase reads one entitlement by ID.
type GetEntitlementUseCase struct {
	entitlementRepo entitlement.Repository
}

func NewGetEntitlementUseCase(entitlementRepo entitlement.Repository) *GetEntitlementUseCase {
	return &GetEntitlementUseCase{entitlementRepo: entitlementRepo}
}

func (uc *GetEntitlementUseCase) Execute(ctx context.Context, id uint) (*dto.EntitlementDTO, error) {
	ent, err := uc.entitlementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.ToEntitlementDTO(ent), nil
}

// ListRecentUseCase reads the most recently created entitlements.
type ListRecentUseCase struct {
	entitlementRepo entitlement.Repository
}

func NewListRecentUseCase(entitlementRepo entitlement.Repository) *ListRecentUseCase {
	return &ListRecentUseCase{entitlementRepo: entitlementRepo}
}

func (uc *ListRecentUseCase) Execute(ctx context.Context, limit int) ([]*dto.EntitlementDTO, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := uc.entitlementRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}
	return dto.ToEntitlementDTOList(list), nil
}

// GetLatestActiveForSubjectUseCase reads the subject's current entitlement
// with the latest expiry.
type GetLatestActiveForSubjectUseCase struct {
	entitlementRepo entitlement.Repository
}

func NewGetLatestActiveForSubjectUseCase(entitlementRepo entitlement.Repository) *GetLatestActiveForSubjectUseCase {
	return &GetLatestActiveForSubjectUseCase{entitlementRepo: entitlementRepo}
}

func (uc *GetLatestActiveForSubjectUseCase) Execute(ctx context.Context, subjectID int64) (*dto.EntitlementDTO, error) {
	ent, err := uc.entitlementRepo.FindLatestCurrentBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return dto.ToEntitlementDTO(ent), nil
}

// PoolStatsUseCase reports pool occupancy and consistency.
type PoolStatsUseCase struct {
	allocator addralloc.Allocator
}

func NewPoolStatsUseCase(allocator addralloc.Allocator) *PoolStatsUseCase {
	return &PoolStatsUseCase{allocator: allocator}
}

func (uc *PoolStatsUseCase) Execute(ctx context.Context) (*addralloc.PoolStats, error) {
	return uc.allocator.Stats(ctx)
}
