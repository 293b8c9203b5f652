package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/dto"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/constants"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// RedeemPromoCommand applies a code to the subject's current entitlement.
type RedeemPromoCommand struct {
	SubjectID int64
	Code      string
}

// RedeemPromoUseCase extends the expiry of a subject's current entitlement
// by the code's extra days. Concurrent redemptions are serialized under one
// named lock so a code's use limits cannot be oversubscribed; the ledger
// update, the use count and the redemption trail commit in one transaction.
type RedeemPromoUseCase struct {
	entitlementRepo entitlement.Repository
	promoRepo       entitlement.PromoCodeRepository
	locker          Locker
	notifier        SubjectNotifier
	tx              Transactor
	logger          logger.Interface
}

// NewRedeemPromoUseCase creates a new RedeemPromoUseCase.
func NewRedeemPromoUseCase(
	entitlementRepo entitlement.Repository,
	promoRepo entitlement.PromoCodeRepository,
	locker Locker,
	notifier SubjectNotifier,
	tx Transactor,
	log logger.Interface,
) *RedeemPromoUseCase {
	return &RedeemPromoUseCase{
		entitlementRepo: entitlementRepo,
		promoRepo:       promoRepo,
		locker:          locker,
		notifier:        notifier,
		tx:              tx,
		logger:          log,
	}
}

// Execute validates and applies the code. The renewal notice goes out after
// the lock is dropped.
func (uc *RedeemPromoUseCase) Execute(ctx context.Context, cmd RedeemPromoCommand) (*dto.RedemptionResultDTO, error) {
	if cmd.SubjectID == 0 {
		return nil, fmt.Errorf("subject ID is required")
	}
	normalized := entitlement.NormalizePromoCode(cmd.Code)
	if normalized == "" {
		return nil, fmt.Errorf("promo code value is required")
	}

	release, err := uc.locker.Acquire(ctx, constants.LockPromoRedemption)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize redemption: %w", err)
	}

	result, ent, err := uc.redeemLocked(ctx, cmd.SubjectID, normalized)
	release()
	if err != nil {
		return nil, err
	}

	if err := uc.notifier.NotifyRenewal(ctx, ent.SubjectID(), ent.ExpiresAt()); err != nil {
		uc.logger.Warnw("failed to notify subject of promo extension",
			"subject_id", ent.SubjectID(), "error", err)
	}

	return result, nil
}

func (uc *RedeemPromoUseCase) redeemLocked(ctx context.Context, subjectID int64, code string) (*dto.RedemptionResultDTO, *entitlement.Entitlement, error) {
	promo, err := uc.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	priorUses, err := uc.promoRepo.CountRedemptionsBySubject(ctx, promo.ID(), subjectID)
	if err != nil {
		return nil, nil, err
	}
	if err := promo.RedeemableBy(subjectID, priorUses, time.Now().UTC()); err != nil {
		return nil, nil, err
	}

	ent, err := uc.entitlementRepo.FindLatestCurrentBySubject(ctx, subjectID)
	if err != nil {
		return nil, nil, err
	}

	newExpiry := ent.ExpiresAt().AddDate(0, 0, promo.ExtraDays())
	if err := ent.Renew(newExpiry, entitlement.EventPromoRedeemed); err != nil {
		return nil, nil, fmt.Errorf("failed to extend entitlement %d: %w", ent.ID(), err)
	}
	promo.MarkRedeemed()

	err = uc.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.entitlementRepo.Update(txCtx, ent); err != nil {
			return fmt.Errorf("failed to persist extension: %w", err)
		}
		if err := uc.promoRepo.Update(txCtx, promo); err != nil {
			return err
		}
		return uc.promoRepo.RecordRedemption(txCtx, promo.ID(), subjectID, ent.ID())
	})
	if err != nil {
		return nil, nil, err
	}

	uc.logger.Infow("promo code redeemed",
		"code", promo.Code(),
		"subject_id", subjectID,
		"entitlement_id", ent.ID(),
		"extra_days", promo.ExtraDays(),
		"expires_at", ent.ExpiresAt())

	return &dto.RedemptionResultDTO{
		Code:        promo.Code(),
		ExtraDays:   promo.ExtraDays(),
		Entitlement: dto.ToEntitlementDTO(ent),
	}, ent, nil
}
