package dto

import (
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/mapper"
)

// ToEntitlementDTO converts an entitlement aggregate to its read projection.
func ToEntitlementDTO(e *entitlement.Entitlement) *EntitlementDTO {
	if e == nil {
		return nil
	}

	return &EntitlementDTO{
		ID:                     e.ID(),
		ExternalUserID:         e.ExternalUserID(),
		ExternalSubscriptionID: e.ExternalSubscriptionID(),
		PeriodID:               e.PeriodID(),
		PeriodLabel:            e.PeriodLabel(),
		ChannelID:              e.ChannelID(),
		ChannelLabel:           e.ChannelLabel(),
		SubjectID:              e.SubjectID(),
		SubjectLabel:           e.SubjectLabel(),
		Address:                e.Address(),
		PublicKey:              e.Keys().PublicKey,
		CreatedAt:              e.CreatedAt(),
		ExpiresAt:              e.ExpiresAt(),
		Active:                 e.Active(),
		LastEvent:              e.LastEvent().String(),
	}
}

// ToEntitlementDTOList converts a slice of entitlements, skipping nils.
func ToEntitlementDTOList(list []*entitlement.Entitlement) []*EntitlementDTO {
	return mapper.MapSlicePtrSkipNil(list, ToEntitlementDTO)
}

// ToPromoCodeDTO converts a promo code aggregate to its read projection.
func ToPromoCodeDTO(p *entitlement.PromoCode) *PromoCodeDTO {
	if p == nil {
		return nil
	}

	return &PromoCodeDTO{
		ID:               p.ID(),
		Code:             p.Code(),
		ExtraDays:        p.ExtraDays(),
		MultiUse:         p.MultiUse(),
		MaxUses:          p.MaxUses(),
		PerUserLimit:     p.PerUserLimit(),
		UsedCount:        p.UsedCount(),
		ValidFrom:        p.ValidFrom(),
		ValidUntil:       p.ValidUntil(),
		AllowedSubjectID: p.AllowedSubjectID(),
		Active:           p.Active(),
		Comment:          p.Comment(),
		CreatedAt:        p.CreatedAt(),
	}
}

// ToPromoCodeDTOList converts a slice of promo codes, skipping nils.
func ToPromoCodeDTOList(list []*entitlement.PromoCode) []*PromoCodeDTO {
	return mapper.MapSlicePtrSkipNil(list, ToPromoCodeDTO)
}
