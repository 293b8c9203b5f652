package ipam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/addralloc"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/persistence/models"
	"github.com/maxnet-vpn/maxnet/internal/shared/constants"
	"github.com/maxnet-vpn/maxnet/internal/shared/db"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// PoolAllocator allocates addresses from the pool_addresses table. The
// candidate query and the claiming update run in one transaction; SKIP
// LOCKED makes concurrent transactions pass over rows another claim is
// holding instead of blocking behind them.
type PoolAllocator struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewPoolAllocator creates a new pool allocator.
func NewPoolAllocator(database *gorm.DB, log logger.Interface) *PoolAllocator {
	return &PoolAllocator{
		db:     database,
		logger: log,
	}
}

var _ addralloc.Allocator = (*PoolAllocator)(nil)

// Allocate claims one free address. The allocation runs in its own
// transaction so the claim is durable before any ledger row exists.
func (a *PoolAllocator) Allocate(ctx context.Context) (string, error) {
	var claimed string

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.PoolAddressModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("allocated = ?", false).
			Order("id").
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return entitlement.ErrPoolExhausted
			}
			return fmt.Errorf("failed to select free address: %w", err)
		}

		now := time.Now().UTC()
		result := tx.Model(&models.PoolAddressModel{}).
			Where("id = ?", row.ID).
			Updates(map[string]interface{}{
				"allocated":    true,
				"allocated_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to claim address %s: %w", row.Address, result.Error)
		}

		claimed = row.Address
		return nil
	})
	if err != nil {
		return "", err
	}

	a.logger.Infow("address allocated", "address", claimed)
	return claimed, nil
}

// Claim marks a specific address allocated. Reactivation reclaims the
// entitlement's stored address with this instead of drawing a fresh one.
// Claim joins a transaction carried in ctx.
func (a *PoolAllocator) Claim(ctx context.Context, address string) error {
	now := time.Now().UTC()
	result := db.GetTxFromContext(ctx, a.db).
		Model(&models.PoolAddressModel{}).
		Where("address = ? AND allocated = ?", address, false).
		Updates(map[string]interface{}{
			"allocated":    true,
			"allocated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to claim address %s: %w", address, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", entitlement.ErrAddressUnavailable, address)
	}

	a.logger.Infow("address reclaimed", "address", address)
	return nil
}

// Release marks an address free. Releasing an already-free or unknown
// address is a no-op. Release joins a transaction carried in ctx, so a
// deactivation and its release commit together.
func (a *PoolAllocator) Release(ctx context.Context, address string) error {
	result := db.GetTxFromContext(ctx, a.db).
		Model(&models.PoolAddressModel{}).
		Where("address = ? AND allocated = ?", address, true).
		Updates(map[string]interface{}{
			"allocated":    false,
			"allocated_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release address %s: %w", address, result.Error)
	}

	if result.RowsAffected > 0 {
		a.logger.Infow("address released", "address", address)
	}
	return nil
}

// Stats reports pool occupancy plus the two drift counters: pool rows
// allocated without an active entitlement and active entitlements whose
// address is missing or unallocated in the pool. Drift is surfaced here and
// in logs, never repaired automatically.
func (a *PoolAllocator) Stats(ctx context.Context) (*addralloc.PoolStats, error) {
	stats := &addralloc.PoolStats{}
	database := a.db.WithContext(ctx)

	if err := database.Model(&models.PoolAddressModel{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count pool: %w", err)
	}
	if err := database.Model(&models.PoolAddressModel{}).
		Where("allocated = ?", true).
		Count(&stats.Allocated).Error; err != nil {
		return nil, fmt.Errorf("failed to count allocated addresses: %w", err)
	}
	stats.Free = stats.Total - stats.Allocated

	activeAddresses := database.Session(&gorm.Session{NewDB: true}).
		Model(&models.EntitlementModel{}).
		Select("address").
		Where("active = ?", true)

	if err := database.Model(&models.PoolAddressModel{}).
		Where("allocated = ? AND address NOT IN (?)", true, activeAddresses).
		Count(&stats.OrphanAllocations).Error; err != nil {
		return nil, fmt.Errorf("failed to count orphan allocations: %w", err)
	}

	allocatedAddresses := database.Session(&gorm.Session{NewDB: true}).
		Model(&models.PoolAddressModel{}).
		Select("address").
		Where("allocated = ?", true)

	if err := database.Model(&models.EntitlementModel{}).
		Where("active = ? AND address NOT IN (?)", true, allocatedAddresses).
		Count(&stats.MissingPoolEntries).Error; err != nil {
		return nil, fmt.Errorf("failed to count missing pool entries: %w", err)
	}

	if faults := stats.ConsistencyFaults(); faults > 0 {
		a.logger.Warnw("pool and ledger have drifted",
			"orphan_allocations", stats.OrphanAllocations,
			"missing_pool_entries", stats.MissingPoolEntries)
	}

	return stats, nil
}

// Seed inserts pool rows for every usable host address in the client
// network, excluding the server's own tunnel address. Existing rows are left
// untouched, so seeding is idempotent and never resets allocation state.
func (a *PoolAllocator) Seed(ctx context.Context, clientNetwork, serverAddress string) (int, error) {
	addresses, err := HostAddresses(clientNetwork, serverAddress)
	if err != nil {
		return 0, err
	}
	if len(addresses) == 0 {
		return 0, fmt.Errorf("client network %s has no usable host addresses", clientNetwork)
	}

	rows := make([]models.PoolAddressModel, len(addresses))
	for i, addr := range addresses {
		rows[i] = models.PoolAddressModel{Address: addr}
	}

	result := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).
		CreateInBatches(rows, 200)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to seed pool table %s: %w", constants.TablePoolAddresses, result.Error)
	}

	a.logger.Infow("address pool seeded",
		"network", clientNetwork,
		"addresses", len(addresses),
		"inserted", result.RowsAffected)

	return int(result.RowsAffected), nil
}
