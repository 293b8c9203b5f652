package models

import (
	"time"

	"github.com/maxnet-vpn/maxnet/internal/shared/constants"
)

// PoolAddressModel is one address in the managed range. Rows are seeded once
// at bootstrap for the whole range and flipped allocated/free afterwards,
// never deleted.
type PoolAddressModel struct {
	ID          uint       `gorm:"primarykey"`
	Address     string     `gorm:"not null;size:64;uniqueIndex:idx_pool_address"`
	Allocated   bool       `gorm:"not null;default:false;index:idx_pool_allocated"`
	AllocatedAt *time.Time `gorm:""`
	CreatedAt   time.Time
}

// TableName specifies the table name for GORM.
func (PoolAddressModel) TableName() string {
	return constants.TablePoolAddresses
}
