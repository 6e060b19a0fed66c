package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"card-price-alerts/internal/alerting"
	"card-price-alerts/internal/config"
	"card-price-alerts/internal/fetcher"
	"card-price-alerts/internal/scheduler"
	"card-price-alerts/internal/storage"
)

var (
	// ErrAlreadyTracked is returned by Track for an item the group already follows.
	ErrAlreadyTracked = errors.New("service: item already tracked")
	// ErrNotTracked is returned when a lookup names an item the group does not follow.
	ErrNotTracked = errors.New("service: item not tracked")
	// ErrSweepInProgress means another sweep holds the in-process guard or the advisory lock.
	ErrSweepInProgress = errors.New("service: sweep already in progress")
	// ErrAlreadyStarted is returned by Start on a running service.
	ErrAlreadyStarted = errors.New("service: already started")
)

// Service owns the tracking lifecycle: scheduled sweeps, track and untrack.
type Service struct {
	scheduler  *scheduler.Scheduler
	store      storage.Store
	source     fetcher.PriceSource
	notifier   alerting.Notifier
	alertStore storage.AlertStore
	locker     storage.AdvisoryLocker
	logger     zerolog.Logger

	threshold   decimal.Decimal
	alertsOn    bool
	workers     int
	itemTimeout time.Duration
	lockKey     int64

	sweeping atomic.Bool
	items    *itemLocks
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

// New wires the tracking service. alertStore and notifier may be nil; when
// alertStore also implements storage.AdvisoryLocker it guards sweeps across
// processes.
func New(cfg *config.Config, sched *scheduler.Scheduler, store storage.Store, source fetcher.PriceSource, notifier alerting.Notifier, alertStore storage.AlertStore, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := alertStore.(storage.AdvisoryLocker); ok {
		locker = l
	}

	workers := cfg.Scheduler.Workers
	if workers <= 0 {
		workers = 1
	}
	itemTimeout := cfg.Scheduler.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = 30 * time.Second
	}

	return &Service{
		scheduler:   sched,
		store:       store,
		source:      source,
		notifier:    notifier,
		alertStore:  alertStore,
		locker:      locker,
		logger:      logger.With().Str("component", "service").Logger(),
		threshold:   decimal.NewFromFloat(cfg.Alerting.ThresholdPct),
		alertsOn:    cfg.Alerting.Enabled && notifier != nil,
		workers:     workers,
		itemTimeout: itemTimeout,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		items:       newItemLocks(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Threshold returns the alert threshold in percent.
func (s *Service) Threshold() decimal.Decimal {
	return s.threshold
}

// Run blocks on the scheduler loop until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	s.logger.Info().
		Dur("interval", s.scheduler.Interval()).
		Str("threshold_pct", s.threshold.String()).
		Int("workers", s.workers).
		Msg("price tracking started")
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// Start runs the scheduler loop in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	s.cancel = cancel
	s.done = done

	go func() {
		done <- s.Run(runCtx)
	}()
	return nil
}

// Stop cancels the scheduler and waits for the loop to exit. A sweep in
// flight stops dispatching new items; items already started finish.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Msg("scheduler stopped with error")
	}
	s.logger.Info().Msg("price tracking stopped")
}

// ProcessBucket is the scheduler tick: one guarded sweep.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	report, err := s.RunOnce(ctx)
	if errors.Is(err, ErrSweepInProgress) {
		s.logger.Warn().Time("bucket", bucket).Err(err).Msg("skip bucket")
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info().Time("bucket", bucket).Str("sweep_id", report.SweepID).Msg("bucket processed")
	return nil
}

// RunOnce sweeps unless a sweep is already running here or, with PostgreSQL
// configured, in another process.
func (s *Service) RunOnce(ctx context.Context) (SweepReport, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return SweepReport{}, fmt.Errorf("%w: previous sweep still running", ErrSweepInProgress)
	}
	defer s.sweeping.Store(false)

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	if !proceed {
		return SweepReport{}, fmt.Errorf("%w: advisory lock held elsewhere", ErrSweepInProgress)
	}
	if unlock != nil {
		defer unlock()
	}

	return s.Sweep(ctx)
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
