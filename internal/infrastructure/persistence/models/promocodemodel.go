package models

import (
	"time"

	"github.com/maxnet-vpn/maxnet/internal/shared/constants"
)

// PromoCodeModel is one redeemable code. MaxUses zero means no overall
// limit; ValidUntil nil means the code never lapses by date.
type PromoCodeModel struct {
	ID               uint       `gorm:"primarykey"`
	Code             string     `gorm:"not null;size:64;uniqueIndex:idx_promo_code"`
	ExtraDays        int        `gorm:"not null"`
	MultiUse         bool       `gorm:"not null;default:false"`
	MaxUses          int        `gorm:"not null;default:0"`
	PerUserLimit     int        `gorm:"not null;default:1"`
	UsedCount        int        `gorm:"not null;default:0"`
	ValidFrom        time.Time  `gorm:"not null"`
	ValidUntil       *time.Time `gorm:""`
	AllowedSubjectID int64      `gorm:"not null;default:0"`
	Active           bool       `gorm:"not null;default:true;index:idx_promo_active"`
	Comment          string     `gorm:"type:text"`
	CreatedBy        string     `gorm:"size:255"`
	CreatedAt        time.Time
}

// TableName specifies the table name for GORM.
func (PromoCodeModel) TableName() string {
	return constants.TablePromoCodes
}

// PromoRedemptionModel is one redemption of a code by a subject. Rows are
// append-only; the per-subject count backs the per-user limit.
type PromoRedemptionModel struct {
	ID            uint  `gorm:"primarykey"`
	PromoCodeID   uint  `gorm:"not null;index:idx_redemption_code_subject,priority:1"`
	SubjectID     int64 `gorm:"not null;index:idx_redemption_code_subject,priority:2"`
	EntitlementID uint  `gorm:"not null"`
	CreatedAt     time.Time
}

// TableName specifies the table name for GORM.
func (PromoRedemptionModel) TableName() string {
	return constants.TablePromoRedemptions
}
