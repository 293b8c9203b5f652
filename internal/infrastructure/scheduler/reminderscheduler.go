package scheduler

import (
	"context"
	"sync"
	"time"

	entitlementUsecases "github.com/maxnet-vpn/maxnet/internal/application/entitlement/usecases"
	"github.com/maxnet-vpn/maxnet/internal/shared/constants"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// ReminderScheduler periodically sends nearing-expiry reminders. It only
// reads the ledger, never mutates it, and follows the same single-flight
// discipline as the expiry sweep.
type ReminderScheduler struct {
	remindUC *entitlementUsecases.RemindExpiringUseCase
	locker   entitlementUsecases.Locker
	logger   logger.Interface
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	interval time.Duration
}

// NewReminderScheduler creates a new ReminderScheduler.
func NewReminderScheduler(
	remindUC *entitlementUsecases.RemindExpiringUseCase,
	locker entitlementUsecases.Locker,
	interval time.Duration,
	log logger.Interface,
) *ReminderScheduler {
	return &ReminderScheduler{
		remindUC: remindUC,
		locker:   locker,
		logger:   log,
		stopChan: make(chan struct{}),
		interval: interval,
	}
}

// Start starts the scheduler.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.logger.Infow("starting reminder scheduler", "interval", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(ctx)
	}()
}

// Stop stops the scheduler gracefully.
func (s *ReminderScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Infow("stopping reminder scheduler")
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Infow("reminder scheduler stopped")
	})
}

func (s *ReminderScheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("reminder scheduler stopped due to context cancellation")
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.remind(ctx)
		}
	}
}

func (s *ReminderScheduler) remind(ctx context.Context) {
	release, acquired, err := s.locker.TryAcquire(ctx, constants.LockReminderSweep)
	if err != nil {
		s.logger.Errorw("failed to acquire reminder sweep lock", "error", err)
		return
	}
	if !acquired {
		s.logger.Debugw("reminder sweep already running elsewhere, skipping cycle")
		return
	}
	defer release()

	sent, err := s.remindUC.Execute(ctx)
	if err != nil {
		s.logger.Errorw("reminder sweep failed", "error", err)
		return
	}
	if sent > 0 {
		s.logger.Infow("expiry reminders sent", "count", sent)
	}
}
