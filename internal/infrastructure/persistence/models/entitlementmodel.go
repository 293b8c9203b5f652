// Package models contains the database persistence models. They form the
// anti-corruption layer between the domain aggregates and the schema.
package models

import (
	"time"

	"github.com/maxnet-vpn/maxnet/internal/shared/constants"
)

// EntitlementModel is the ledger row for one grant lifecycle instance.
// A partial unique index guarantees at most one active row per address.
type EntitlementModel struct {
	ID                     uint   `gorm:"primarykey"`
	ExternalUserID         int64  `gorm:"not null;default:0;index:idx_sub_scope,priority:1;index:idx_donation,priority:1"`
	ExternalSubscriptionID int64  `gorm:"not null;default:0;index:idx_donation,priority:2"`
	PeriodID               int64  `gorm:"not null;default:0;index:idx_sub_scope,priority:2"`
	PeriodLabel            string `gorm:"size:64"`
	ChannelID              int64  `gorm:"not null;default:0;index:idx_sub_scope,priority:3"`
	ChannelLabel           string `gorm:"size:255"`
	SubjectID              int64  `gorm:"not null;index:idx_subject"`
	SubjectLabel           string `gorm:"size:255"`
	Address                string `gorm:"not null;size:64;index:idx_address"`
	PrivateKey             string `gorm:"not null;type:text"`
	PublicKey              string `gorm:"not null;type:text"`
	CreatedAt              time.Time
	ExpiresAt              time.Time `gorm:"not null;index:idx_active_expires,priority:2"`
	Active                 bool      `gorm:"not null;default:true;index:idx_active_expires,priority:1"`
	LastEvent              string    `gorm:"not null;size:64"`
}

// TableName specifies the table name for GORM.
func (EntitlementModel) TableName() string {
	return constants.TableEntitlements
}
