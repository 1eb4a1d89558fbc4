package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"custodian/internal/ledger"
	"custodian/internal/repository"
	"custodian/pkg/metrics"
)

// SubscriptionScheduler settles due recurring charges on a fixed period.
// Each charge goes through the engine's pre-authorized path; a subscription
// whose account cannot cover the amount is deactivated, never retried and
// never overdrafted.
type SubscriptionScheduler struct {
	engine  *ledger.Engine
	store   repository.Store
	period  time.Duration
	ticking atomic.Bool
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewSubscriptionScheduler(engine *ledger.Engine, store repository.Store, period time.Duration, collector *metrics.Collector, logger *slog.Logger) *SubscriptionScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionScheduler{
		engine:  engine,
		store:   store,
		period:  period,
		metrics: collector,
		logger:  logger,
	}
}

// Run blocks until ctx is canceled. A tick still in progress when the next
// fires is skipped, never run concurrently with itself.
func (s *SubscriptionScheduler) Run(ctx context.Context) {
	s.logger.Info("Subscription scheduler started", slog.Duration("period", s.period))
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Subscription scheduler stopped")
			return
		case <-ticker.C:
			if !s.tryTick(ctx) {
				s.logger.Warn("Subscription tick still running, skipping")
			}
		}
	}
}

// tryTick runs one tick unless the previous one is still in progress.
func (s *SubscriptionScheduler) tryTick(ctx context.Context) bool {
	if !s.ticking.CompareAndSwap(false, true) {
		return false
	}
	defer s.ticking.Store(false)
	s.Tick(ctx)
	return true
}

// Tick settles every due active subscription. One failing item does not
// abort the rest.
func (s *SubscriptionScheduler) Tick(ctx context.Context) {
	if s.metrics != nil {
		defer s.metrics.RecordSchedulerTick("subscriptions")
	}

	subs, err := s.store.Subscriptions().GetActive(ctx)
	if err != nil {
		s.logger.Error("Active subscription lookup failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now()
	for _, sub := range subs {
		if !sub.Due(now) {
			continue
		}

		err := s.engine.ChargeSubscription(ctx, sub)
		switch {
		case err == nil:
		case errors.Is(err, ledger.ErrInsufficientFunds):
			if err := s.engine.DeactivateSubscription(ctx, sub); err != nil {
				s.logger.Error("Subscription deactivation failed",
					slog.String("subscription_id", sub.ID),
					slog.String("error", err.Error()))
			}
		default:
			s.logger.Error("Subscription charge failed",
				slog.String("subscription_id", sub.ID),
				slog.String("account_id", sub.AccountID),
				slog.String("error", err.Error()))
		}
	}
}
