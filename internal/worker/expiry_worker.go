package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"github.com/upgrade-events/Upgrade-Events/pkg/telemetry"
	"go.uber.org/zap"
)

// OrderExpirer expires pending orders that outlived the payment window
type OrderExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	ScanInterval time.Duration
	BatchSize    int
	PendingTTL   time.Duration
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval: 15 * time.Minute,
		BatchSize:    100,
		PendingTTL:   domain.PendingOrderTTL,
	}
}

// ExpiryWorkerStats contains worker statistics
type ExpiryWorkerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalExpired     int64     `json:"total_expired"`
	TotalSweeps      int64     `json:"total_sweeps"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastExpiredCount int       `json:"last_expired_count"`
}

// ExpiryWorker periodically expires pending orders without payment proof
// and gives their tickets back to the event.
type ExpiryWorker struct {
	orders OrderExpirer
	config *ExpiryWorkerConfig
	now    func() time.Time

	mu               sync.Mutex
	scheduler        gocron.Scheduler
	running          bool
	totalExpired     int64
	totalSweeps      int64
	lastScanTime     time.Time
	lastExpiredCount int
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(orders OrderExpirer, config *ExpiryWorkerConfig) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}
	defaults := DefaultExpiryWorkerConfig()
	if config.ScanInterval <= 0 {
		config.ScanInterval = defaults.ScanInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PendingTTL <= 0 {
		config.PendingTTL = defaults.PendingTTL
	}
	return &ExpiryWorker{
		orders: orders,
		config: config,
		now:    time.Now,
	}
}

// Start schedules the sweep every ScanInterval. Overlapping runs are skipped.
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("expiry worker already running")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.config.ScanInterval),
		gocron.NewTask(func() {
			if _, err := w.RunOnce(ctx); err != nil {
				logger.Get().ErrorContext(ctx, "expiry sweep failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("order-expiry"),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}
	s.Start()

	w.scheduler = s
	w.running = true
	logger.Get().InfoContext(ctx, "expiry worker started",
		zap.Duration("interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Duration("pending_ttl", w.config.PendingTTL))
	return nil
}

// Stop waits for a running sweep to finish and stops the schedule
func (w *ExpiryWorker) Stop() error {
	w.mu.Lock()
	s := w.scheduler
	w.scheduler = nil
	w.running = false
	w.mu.Unlock()

	if s == nil {
		return nil
	}
	logger.Info("expiry worker stopping")
	return s.Shutdown()
}

// RunOnce performs one sweep: every pending order without proof older than
// PendingTTL, up to BatchSize, is expired.
func (w *ExpiryWorker) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	now := w.now()
	cutoff := now.Add(-w.config.PendingTTL)

	expired, err := w.orders.ExpireStale(ctx, cutoff, w.config.BatchSize)
	telemetry.ObserveExpirySweep(time.Since(start))

	w.mu.Lock()
	w.totalSweeps++
	w.totalExpired += int64(expired)
	w.lastScanTime = now
	w.lastExpiredCount = expired
	w.mu.Unlock()

	if err != nil {
		return expired, err
	}
	if expired > 0 {
		logger.Get().InfoContext(ctx, "expired stale orders", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, nil
}

// GetStats returns worker statistics
func (w *ExpiryWorker) GetStats() *ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &ExpiryWorkerStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		TotalSweeps:      w.totalSweeps,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastExpiredCount,
	}
}
