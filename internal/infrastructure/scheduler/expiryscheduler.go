package scheduler

import (
	"context"
	"sync"
	"time"

	entitlementUsecases "github.com/maxnet-vpn/maxnet/internal/application/entitlement/usecases"
	"github.com/maxnet-vpn/maxnet/internal/shared/constants"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// ExpiryScheduler periodically converges ledger, pool and daemon state for
// time-expired entitlements. The sweep is single-flight per deployment: a
// cycle that cannot take the sweep lock is skipped entirely.
type ExpiryScheduler struct {
	expireUC *entitlementUsecases.ExpireEntitlementsUseCase
	locker   entitlementUsecases.Locker
	logger   logger.Interface
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	interval time.Duration
}

// NewExpiryScheduler creates a new ExpiryScheduler.
func NewExpiryScheduler(
	expireUC *entitlementUsecases.ExpireEntitlementsUseCase,
	locker entitlementUsecases.Locker,
	interval time.Duration,
	log logger.Interface,
) *ExpiryScheduler {
	return &ExpiryScheduler{
		expireUC: expireUC,
		locker:   locker,
		logger:   log,
		stopChan: make(chan struct{}),
		interval: interval,
	}
}

// Start starts the scheduler.
func (s *ExpiryScheduler) Start(ctx context.Context) {
	s.logger.Infow("starting expiry scheduler", "interval", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(ctx)
	}()
}

// Stop stops the scheduler gracefully.
func (s *ExpiryScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Infow("stopping expiry scheduler")
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Infow("expiry scheduler stopped")
	})
}

func (s *ExpiryScheduler) runLoop(ctx context.Context) {
	// Run immediately on startup to clear any backlog from downtime.
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("expiry scheduler stopped due to context cancellation")
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpiryScheduler) sweep(ctx context.Context) {
	release, acquired, err := s.locker.TryAcquire(ctx, constants.LockExpirySweep)
	if err != nil {
		s.logger.Errorw("failed to acquire expiry sweep lock", "error", err)
		return
	}
	if !acquired {
		s.logger.Debugw("expiry sweep already running elsewhere, skipping cycle")
		return
	}
	defer release()

	startTime := time.Now()
	count, err := s.expireUC.Execute(ctx)
	if err != nil {
		s.logger.Errorw("expiry sweep failed",
			"error", err,
			"duration", time.Since(startTime))
		return
	}

	if count > 0 {
		s.logger.Infow("expiry sweep processed entitlements",
			"count", count,
			"duration", time.Since(startTime))
	} else {
		s.logger.Debugw("no expired entitlements to process",
			"duration", time.Since(startTime))
	}
}
