package migration

import (
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/persistence/models"
)

// AutoMigrateModels returns every persistence model the GORM auto-migrate
// strategy manages.
func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.EntitlementModel{},
		&models.PoolAddressModel{},
		&models.ProcessedEventModel{},
		&models.PromoCodeModel{},
		&models.PromoRedemptionModel{},
	}
}
