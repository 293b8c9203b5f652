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

// PromoCodeRepositoryImpl implements the entitlement.PromoCodeRepository
// interface.
type PromoCodeRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewPromoCodeRepository creates a new promo code repository instance.
func NewPromoCodeRepository(database *gorm.DB, log logger.Interface) entitlement.PromoCodeRepository {
	return &PromoCodeRepositoryImpl{
		db:     database,
		logger: log,
	}
}

// Create inserts a new promo code and assigns its ID.
func (r *PromoCodeRepositoryImpl) Create(ctx context.Context, p *entitlement.PromoCode) error {
	model := toPromoCodeModel(p)

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create promo code", "code", p.Code(), "error", err)
		return fmt.Errorf("failed to create promo code: %w", err)
	}

	if err := p.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set promo code ID: %w", err)
	}

	r.logger.Infow("promo code created",
		"id", model.ID,
		"code", model.Code,
		"extra_days", model.ExtraDays,
		"multi_use", model.MultiUse)

	return nil
}

// Update persists the mutable promo code fields.
func (r *PromoCodeRepositoryImpl) Update(ctx context.Context, p *entitlement.PromoCode) error {
	if p.ID() == 0 {
		return fmt.Errorf("cannot update promo code without ID")
	}

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.PromoCodeModel{}).
		Where("id = ?", p.ID()).
		Updates(map[string]interface{}{
			"used_count": p.UsedCount(),
			"active":     p.Active(),
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update promo code", "id", p.ID(), "error", result.Error)
		return fmt.Errorf("failed to update promo code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entitlement.ErrPromoCodeNotFound
	}

	return nil
}

// GetByCode retrieves a promo code by its normalized value.
func (r *PromoCodeRepositoryImpl) GetByCode(ctx context.Context, code string) (*entitlement.PromoCode, error) {
	var model models.PromoCodeModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("code = ?", code).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("failed to find promo code: %w", err)
	}
	return toPromoCodeDomain(&model)
}

// ListActive returns all active promo codes, newest first.
func (r *PromoCodeRepositoryImpl) ListActive(ctx context.Context) ([]*entitlement.PromoCode, error) {
	var rows []models.PromoCodeModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("active = ?", true).
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}

	out := make([]*entitlement.PromoCode, 0, len(rows))
	for i := range rows {
		p, err := toPromoCodeDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// CountRedemptionsBySubject returns how many times the subject redeemed
// the code.
func (r *PromoCodeRepositoryImpl) CountRedemptionsBySubject(ctx context.Context, promoCodeID uint, subjectID int64) (int, error) {
	var count int64
	err := db.GetTxFromContext(ctx, r.db).
		Model(&models.PromoRedemptionModel{}).
		Where("promo_code_id = ? AND subject_id = ?", promoCodeID, subjectID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count promo redemptions: %w", err)
	}
	return int(count), nil
}

// RecordRedemption appends one redemption to the trail.
func (r *PromoCodeRepositoryImpl) RecordRedemption(ctx context.Context, promoCodeID uint, subjectID int64, entitlementID uint) error {
	model := &models.PromoRedemptionModel{
		PromoCodeID:   promoCodeID,
		SubjectID:     subjectID,
		EntitlementID: entitlementID,
	}
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to record promo redemption",
			"promo_code_id", promoCodeID,
			"subject_id", subjectID,
			"error", err)
		return fmt.Errorf("failed to record promo redemption: %w", err)
	}
	return nil
}

func toPromoCodeModel(p *entitlement.PromoCode) *models.PromoCodeModel {
	var validUntil *time.Time
	if until := p.ValidUntil(); !until.IsZero() {
		validUntil = &until
	}
	return &models.PromoCodeModel{
		ID:               p.ID(),
		Code:             p.Code(),
		ExtraDays:        p.ExtraDays(),
		MultiUse:         p.MultiUse(),
		MaxUses:          p.MaxUses(),
		PerUserLimit:     p.PerUserLimit(),
		UsedCount:        p.UsedCount(),
		ValidFrom:        p.ValidFrom(),
		ValidUntil:       validUntil,
		AllowedSubjectID: p.AllowedSubjectID(),
		Active:           p.Active(),
		Comment:          p.Comment(),
		CreatedBy:        p.CreatedBy(),
		CreatedAt:        p.CreatedAt(),
	}
}

func toPromoCodeDomain(m *models.PromoCodeModel) (*entitlement.PromoCode, error) {
	var validUntil time.Time
	if m.ValidUntil != nil {
		validUntil = *m.ValidUntil
	}
	return entitlement.ReconstructPromoCode(
		m.ID,
		m.Code,
		m.ExtraDays,
		m.MultiUse,
		m.MaxUses,
		m.PerUserLimit,
		m.UsedCount,
		m.ValidFrom,
		validUntil,
		m.AllowedSubjectID,
		m.Active,
		m.Comment,
		m.CreatedBy,
		m.CreatedAt,
	)
}
