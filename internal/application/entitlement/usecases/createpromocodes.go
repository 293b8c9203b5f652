package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/dto"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// CreatePromoCodesCommand describes a batch of codes to issue. A multi-use
// batch is one operator-named code; a one-shot batch is Count random codes,
// each limited to a single redemption.
type CreatePromoCodesCommand struct {
	ExtraDays        int
	MultiUse         bool
	ManualCode       string
	Count            int
	ValidDays        int // 0 means no end of validity
	MaxUses          int // multi-use only, 0 means unlimited
	PerUserLimit     int // multi-use only
	AllowedSubjectID int64
	Comment          string
	CreatedBy        string
}

// CreatePromoCodesUseCase issues promo codes for later redemption.
type CreatePromoCodesUseCase struct {
	promoRepo entitlement.PromoCodeRepository
	logger    logger.Interface
}

// NewCreatePromoCodesUseCase creates a new CreatePromoCodesUseCase.
func NewCreatePromoCodesUseCase(promoRepo entitlement.PromoCodeRepository, log logger.Interface) *CreatePromoCodesUseCase {
	return &CreatePromoCodesUseCase{promoRepo: promoRepo, logger: log}
}

// Execute creates the batch and returns the stored codes.
func (uc *CreatePromoCodesUseCase) Execute(ctx context.Context, cmd CreatePromoCodesCommand) ([]*dto.PromoCodeDTO, error) {
	if cmd.ExtraDays <= 0 {
		return nil, fmt.Errorf("extra days must be positive")
	}

	var validUntil time.Time
	if cmd.ValidDays > 0 {
		validUntil = time.Now().UTC().AddDate(0, 0, cmd.ValidDays)
	}

	var codes []*entitlement.PromoCode
	if cmd.MultiUse {
		if cmd.ManualCode == "" {
			return nil, fmt.Errorf("a multi-use batch requires a code value")
		}
		perUser := cmd.PerUserLimit
		if perUser <= 0 {
			perUser = 1
		}
		code, err := entitlement.NewPromoCode(
			cmd.ManualCode, cmd.ExtraDays, true, cmd.MaxUses, perUser,
			validUntil, cmd.AllowedSubjectID, cmd.Comment, cmd.CreatedBy,
		)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	} else {
		if cmd.Count <= 0 {
			return nil, fmt.Errorf("a one-shot batch requires a positive count")
		}
		for i := 0; i < cmd.Count; i++ {
			value, err := entitlement.GeneratePromoCode(entitlement.DefaultPromoCodeLength)
			if err != nil {
				return nil, err
			}
			code, err := entitlement.NewPromoCode(
				value, cmd.ExtraDays, false, 1, 1,
				validUntil, cmd.AllowedSubjectID, cmd.Comment, cmd.CreatedBy,
			)
			if err != nil {
				return nil, err
			}
			codes = append(codes, code)
		}
	}

	for _, code := range codes {
		if err := uc.promoRepo.Create(ctx, code); err != nil {
			return nil, err
		}
	}

	uc.logger.Infow("promo codes issued",
		"count", len(codes),
		"extra_days", cmd.ExtraDays,
		"multi_use", cmd.MultiUse)

	out := make([]*dto.PromoCodeDTO, 0, len(codes))
	for _, code := range codes {
		out = append(out, dto.ToPromoCodeDTO(code))
	}
	return out, nil
}

// ListPromoCodesUseCase returns all active promo codes.
type ListPromoCodesUseCase struct {
	promoRepo entitlement.PromoCodeRepository
}

// NewListPromoCodesUseCase creates a new ListPromoCodesUseCase.
func NewListPromoCodesUseCase(promoRepo entitlement.PromoCodeRepository) *ListPromoCodesUseCase {
	return &ListPromoCodesUseCase{promoRepo: promoRepo}
}

// Execute lists the active codes, newest first.
func (uc *ListPromoCodesUseCase) Execute(ctx context.Context) ([]*dto.PromoCodeDTO, error) {
	codes, err := uc.promoRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return dto.ToPromoCodeDTOList(codes), nil
}
