package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/persistence/models"
	"github.com/maxnet-vpn/maxnet/internal/shared/db"
	"github.com/maxnet-vpn/maxnet/internal/shared/errors"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// ProcessedEventRepositoryImpl records externally-delivered idempotency keys.
type ProcessedEventRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewProcessedEventRepository creates a new processed-event repository.
func NewProcessedEventRepository(database *gorm.DB, log logger.Interface) *ProcessedEventRepositoryImpl {
	return &ProcessedEventRepositoryImpl{
		db:     database,
		logger: log,
	}
}

// Register inserts the (provider, eventID) pair. The unique index is the
// idempotency gate: a duplicate insert returns ErrDuplicateEvent and the
// caller must skip all side effects.
func (r *ProcessedEventRepositoryImpl) Register(ctx context.Context, provider, eventID string) error {
	model := &models.ProcessedEventModel{
		Provider: provider,
		EventID:  eventID,
	}

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			r.logger.Debugw("duplicate event delivery detected",
				"provider", provider,
				"event_id", eventID)
			return entitlement.ErrDuplicateEvent
		}
		r.logger.Errorw("failed to register processed event",
			"provider", provider,
			"event_id", eventID,
			"error", err)
		return fmt.Errorf("failed to register processed event: %w", err)
	}

	return nil
}
