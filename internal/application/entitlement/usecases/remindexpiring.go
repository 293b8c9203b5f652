package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// RemindExpiringUseCase sends nearing-expiry reminders. It only reads the
// ledger and never mutates ledger or pool state.
type RemindExpiringUseCase struct {
	entitlementRepo entitlement.Repository
	marker          ReminderMarker
	notifier        SubjectNotifier
	leadTime        time.Duration
	logger          logger.Interface
}

// NewRemindExpiringUseCase creates a new RemindExpiringUseCase. leadTime is
// how far ahead of expiry subjects are warned.
func NewRemindExpiringUseCase(
	entitlementRepo entitlement.Repository,
	marker ReminderMarker,
	notifier SubjectNotifier,
	leadTime time.Duration,
	log logger.Interface,
) *RemindExpiringUseCase {
	return &RemindExpiringUseCase{
		entitlementRepo: entitlementRepo,
		marker:          marker,
		notifier:        notifier,
		leadTime:        leadTime,
		logger:          log,
	}
}

// Execute reminds subjects whose entitlements expire within the lead time.
// Each entitlement is reminded once per window, deduplicated through the
// marker. Returns the number of reminders sent.
func (uc *RemindExpiringUseCase) Execute(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expiring, err := uc.entitlementRepo.FindExpiringBetween(ctx, now, now.Add(uc.leadTime))
	if err != nil {
		return 0, fmt.Errorf("failed to find expiring entitlements: %w", err)
	}
	if len(expiring) == 0 {
		return 0, nil
	}

	sent := 0
	for _, ent := range expiring {
		fresh, err := uc.marker.TryMark(ctx, ent.ID(), uc.leadTime)
		if err != nil {
			uc.logger.Warnw("failed to check reminder marker",
				"entitlement_id", ent.ID(), "error", err)
			continue
		}
		if !fresh {
			continue
		}

		if err := uc.notifier.NotifyExpiring(ctx, ent.SubjectID(), ent.ExpiresAt()); err != nil {
			uc.logger.Warnw("failed to send expiry reminder",
				"subject_id", ent.SubjectID(), "error", err)
			continue
		}

		sent++
		uc.logger.Debugw("expiry reminder sent",
			"entitlement_id", ent.ID(),
			"subject_id", ent.SubjectID(),
			"expires_at", ent.ExpiresAt())
	}

	return sent, nil
}
