// Package repository contains the GORM-backed implementations of the domain
// repository interfaces.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/persistence/models"
	"github.com/maxnet-vpn/maxnet/internal/shared/db"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// EntitlementRepositoryImpl implements the entitlement.Repository interface.
type EntitlementRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewEntitlementRepository creates a new entitlement repository instance.
func NewEntitlementRepository(database *gorm.DB, log logger.Interface) entitlement.Repository {
	return &EntitlementRepositoryImpl{
		db:     database,
		logger: log,
	}
}

// Create inserts a new ledger row and assigns the entitlement ID.
func (r *EntitlementRepositoryImpl) Create(ctx context.Context, e *entitlement.Entitlement) error {
	model := toEntitlementModel(e)

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create entitlement",
			"subject_id", e.SubjectID(),
			"address", e.Address(),
			"error", err)
		return fmt.Errorf("failed to create entitlement: %w", err)
	}

	if err := e.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set entitlement ID: %w", err)
	}

	r.logger.Infow("entitlement created",
		"id", model.ID,
		"subject_id", model.SubjectID,
		"address", model.Address,
		"expires_at", model.ExpiresAt)

	return nil
}

// Update persists in-place mutations of an existing row.
func (r *EntitlementRepositoryImpl) Update(ctx context.Context, e *entitlement.Entitlement) error {
	if e.ID() == 0 {
		return fmt.Errorf("cannot update entitlement without ID")
	}

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.EntitlementModel{}).
		Where("id = ?", e.ID()).
		Updates(map[string]interface{}{
			"expires_at": e.ExpiresAt(),
			"active":     e.Active(),
			"last_event": e.LastEvent().String(),
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update entitlement", "id", e.ID(), "error", result.Error)
		return fmt.Errorf("failed to update entitlement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entitlement.ErrEntitlementNotFound
	}

	return nil
}

// Delete physically removes a ledger row.
func (r *EntitlementRepositoryImpl) Delete(ctx context.Context, id uint) error {
	result := db.GetTxFromContext(ctx, r.db).Delete(&models.EntitlementModel{}, id)
	if result.Error != nil {
		r.logger.Errorw("failed to delete entitlement", "id", id, "error", result.Error)
		return fmt.Errorf("failed to delete entitlement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entitlement.ErrEntitlementNotFound
	}

	r.logger.Infow("entitlement deleted", "id", id)
	return nil
}

// GetByID retrieves an entitlement by ID, active or not.
func (r *EntitlementRepositoryImpl) GetByID(ctx context.Context, id uint) (*entitlement.Entitlement, error) {
	var model models.EntitlementModel
	err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrEntitlementNotFound
		}
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	return toEntitlementDomain(&model)
}

// FindCurrentSubscription returns the latest active unexpired entitlement
// matching the subscription correlation keys.
func (r *EntitlementRepositoryImpl) FindCurrentSubscription(ctx context.Context, externalUserID, periodID, channelID int64) (*entitlement.Entitlement, error) {
	var model models.EntitlementModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("external_user_id = ? AND period_id = ? AND channel_id = ? AND active = ? AND expires_at > ?",
			externalUserID, periodID, channelID, true, time.Now()).
		Order("expires_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrEntitlementNotFound
		}
		return nil, fmt.Errorf("failed to find subscription entitlement: %w", err)
	}
	return toEntitlementDomain(&model)
}

// FindLatestDonation returns the most recent entitlement matching the
// donation correlation keys regardless of state.
func (r *EntitlementRepositoryImpl) FindLatestDonation(ctx context.Context, externalUserID, externalSubscriptionID int64) (*entitlement.Entitlement, error) {
	var model models.EntitlementModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("external_user_id = ? AND external_subscription_id = ?",
			externalUserID, externalSubscriptionID).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrEntitlementNotFound
		}
		return nil, fmt.Errorf("failed to find donation entitlement: %w", err)
	}
	return toEntitlementDomain(&model)
}

// FindActiveByScope returns all active entitlements in a cancellation scope.
func (r *EntitlementRepositoryImpl) FindActiveByScope(ctx context.Context, scope entitlement.Scope) ([]*entitlement.Entitlement, error) {
	var rows []models.EntitlementModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("external_user_id = ? AND period_id = ? AND channel_id = ? AND active = ?",
			scope.ExternalUserID, scope.PeriodID, scope.ChannelID, true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find entitlements by scope: %w", err)
	}
	return toEntitlementDomainList(rows)
}

// FindCurrentBySubject returns all active unexpired entitlements of a
// subject, newest expiry first.
func (r *EntitlementRepositoryImpl) FindCurrentBySubject(ctx context.Context, subjectID int64) ([]*entitlement.Entitlement, error) {
	var rows []models.EntitlementModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("subject_id = ? AND active = ? AND expires_at > ?", subjectID, true, time.Now()).
		Order("expires_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find entitlements by subject: %w", err)
	}
	return toEntitlementDomainList(rows)
}

// FindLatestCurrentBySubject returns the subject's active unexpired
// entitlement with the latest expiry.
func (r *EntitlementRepositoryImpl) FindLatestCurrentBySubject(ctx context.Context, subjectID int64) (*entitlement.Entitlement, error) {
	var model models.EntitlementModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("subject_id = ? AND active = ? AND expires_at > ?", subjectID, true, time.Now()).
		Order("expires_at DESC, id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrEntitlementNotFound
		}
		return nil, fmt.Errorf("failed to find latest entitlement for subject: %w", err)
	}
	return toEntitlementDomain(&model)
}

// FindExpired returns all entitlements still flagged active whose expiry has
// passed.
func (r *EntitlementRepositoryImpl) FindExpired(ctx context.Context) ([]*entitlement.Entitlement, error) {
	var rows []models.EntitlementModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("active = ? AND expires_at <= ?", true, time.Now()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired entitlements: %w", err)
	}
	return toEntitlementDomainList(rows)
}

// FindExpiringBetween returns active entitlements whose expiry falls within
// (from, to].
func (r *EntitlementRepositoryImpl) FindExpiringBetween(ctx context.Context, from, to time.Time) ([]*entitlement.Entitlement, error) {
	var rows []models.EntitlementModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("active = ? AND expires_at > ? AND expires_at <= ?", true, from, to).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expiring entitlements: %w", err)
	}
	return toEntitlementDomainList(rows)
}

// ListRecent returns the most recently created entitlements.
func (r *EntitlementRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*entitlement.Entitlement, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.EntitlementModel
	err := db.GetTxFromContext(ctx, r.db).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent entitlements: %w", err)
	}
	return toEntitlementDomainList(rows)
}

// CountActiveByAddress returns how many active entitlements hold the given
// address.
func (r *EntitlementRepositoryImpl) CountActiveByAddress(ctx context.Context, address string) (int64, error) {
	var count int64
	err := db.GetTxFromContext(ctx, r.db).
		Model(&models.EntitlementModel{}).
		Where("address = ? AND active = ?", address, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count entitlements by address: %w", err)
	}
	return count, nil
}

func toEntitlementModel(e *entitlement.Entitlement) *models.EntitlementModel {
	return &models.EntitlementModel{
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
		PrivateKey:             e.Keys().PrivateKey,
		PublicKey:              e.Keys().PublicKey,
		CreatedAt:              e.CreatedAt(),
		ExpiresAt:              e.ExpiresAt(),
		Active:                 e.Active(),
		LastEvent:              e.LastEvent().String(),
	}
}

func toEntitlementDomain(m *models.EntitlementModel) (*entitlement.Entitlement, error) {
	e, err := entitlement.ReconstructEntitlement(
		m.ID,
		m.ExternalUserID,
		m.ExternalSubscriptionID,
		m.PeriodID,
		m.PeriodLabel,
		m.ChannelID,
		m.ChannelLabel,
		m.SubjectID,
		m.SubjectLabel,
		m.Address,
		entitlement.KeyPair{PrivateKey: m.PrivateKey, PublicKey: m.PublicKey},
		m.CreatedAt,
		m.ExpiresAt,
		m.Active,
		entitlement.EventKind(m.LastEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct entitlement %d: %w", m.ID, err)
	}
	return e, nil
}

func toEntitlementDomainList(rows []models.EntitlementModel) ([]*entitlement.Entitlement, error) {
	out := make([]*entitlement.Entitlement, 0, len(rows))
	for i := range rows {
		e, err := toEntitlementDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
