package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/robfig/cron/v3"
)

const sweepLockKey = "custody-ledger:integrity-sweep"

type sweepFunc func(ctx context.Context) ([]Violation, error)

// Sweeper runs the integrity sweep on a cron schedule. When a redis lock client is configured
// only one instance sweeps per tick.
type Sweeper struct {
	sweep    sweepFunc
	locker   *redislock.Client
	schedule string
	lockTTL  time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

func NewSweeper(service *Service, locker *redislock.Client, schedule string, lockTTL time.Duration, logger *slog.Logger) *Sweeper {
	return newSweeper(service.SweepIntegrity, locker, schedule, lockTTL, logger)
}

func newSweeper(fn sweepFunc, locker *redislock.Client, schedule string, lockTTL time.Duration, logger *slog.Logger) *Sweeper {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Sweeper{
		sweep:    fn,
		locker:   locker,
		schedule: schedule,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// RunOnce sweeps if it can take the lock. It reports whether a sweep actually ran.
func (s *Sweeper) RunOnce(ctx context.Context) (bool, []Violation, error) {
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, sweepLockKey, s.lockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			s.logger.Info("integrity sweep skipped: another instance holds the lock")
			return false, nil, nil
		}
		if err != nil {
			return false, nil, err
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	violations, err := s.sweep(ctx)
	return true, violations, err
}

// Start schedules the sweep and blocks until ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.lockTTL)
		defer cancel()
		if _, _, err := s.RunOnce(runCtx); err != nil {
			s.logger.Error("integrity sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.logger.Info("integrity sweeper started", "schedule", s.schedule)
	s.cron.Start()

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("integrity sweeper stopped")
	return nil
}
