package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeExpirer struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	limits  []int
	expire  int
	err     error
}

func (f *fakeExpirer) ExpireStale(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoffs = append(f.cutoffs, cutoff)
	f.limits = append(f.limits, limit)
	return f.expire, f.err
}

func (f *fakeExpirer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDefaultExpiryWorkerConfig(t *testing.T) {
	config := DefaultExpiryWorkerConfig()

	if config.ScanInterval != 15*time.Minute {
		t.Errorf("ScanInterval = %v, want %v", config.ScanInterval, 15*time.Minute)
	}

	if config.BatchSize != 100 {
		t.Errorf("BatchSize = %v, want %v", config.BatchSize, 100)
	}

	if config.PendingTTL != 48*time.Hour {
		t.Errorf("PendingTTL = %v, want %v", config.PendingTTL, 48*time.Hour)
	}
}

func TestNewExpiryWorker_WithDefaultConfig(t *testing.T) {
	worker := NewExpiryWorker(nil, nil)

	if worker == nil {
		t.Fatal("NewExpiryWorker() returned nil")
	}

	if worker.config.ScanInterval != 15*time.Minute {
		t.Errorf("Default ScanInterval = %v, want %v", worker.config.ScanInterval, 15*time.Minute)
	}

	if worker.running {
		t.Error("Worker should not be running initially")
	}
}

func TestNewExpiryWorker_FillsZeroFields(t *testing.T) {
	worker := NewExpiryWorker(nil, &ExpiryWorkerConfig{BatchSize: 50})

	if worker.config.BatchSize != 50 {
		t.Errorf("BatchSize = %v, want %v", worker.config.BatchSize, 50)
	}

	if worker.config.ScanInterval != 15*time.Minute {
		t.Errorf("ScanInterval = %v, want %v", worker.config.ScanInterval, 15*time.Minute)
	}

	if worker.config.PendingTTL != 48*time.Hour {
		t.Errorf("PendingTTL = %v, want %v", worker.config.PendingTTL, 48*time.Hour)
	}
}

func TestExpiryWorker_RunOnce(t *testing.T) {
	expirer := &fakeExpirer{expire: 3}
	worker := NewExpiryWorker(expirer, &ExpiryWorkerConfig{BatchSize: 25, PendingTTL: 48 * time.Hour})
	now := time.Date(2026, 12, 10, 9, 0, 0, 0, time.UTC)
	worker.now = func() time.Time { return now }

	expired, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if expired != 3 {
		t.Errorf("expired = %v, want %v", expired, 3)
	}

	if want := now.Add(-48 * time.Hour); !expirer.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", expirer.cutoffs[0], want)
	}
	if expirer.limits[0] != 25 {
		t.Errorf("limit = %v, want %v", expirer.limits[0], 25)
	}

	stats := worker.GetStats()
	if stats.TotalExpired != 3 || stats.LastExpiredCount != 3 || stats.TotalSweeps != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if !stats.LastScanTime.Equal(now) {
		t.Errorf("LastScanTime = %v, want %v", stats.LastScanTime, now)
	}
}

func TestExpiryWorker_RunOnceError(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("database unavailable")}
	worker := NewExpiryWorker(expirer, nil)

	if _, err := worker.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce() should return the expirer error")
	}

	if stats := worker.GetStats(); stats.TotalSweeps != 1 {
		t.Errorf("TotalSweeps = %v, want %v", stats.TotalSweeps, 1)
	}
}

func TestExpiryWorker_StartStop(t *testing.T) {
	expirer := &fakeExpirer{}
	worker := NewExpiryWorker(expirer, &ExpiryWorkerConfig{ScanInterval: 20 * time.Millisecond})

	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := worker.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if !worker.GetStats().IsRunning {
		t.Error("worker should be running after Start()")
	}

	deadline := time.Now().Add(2 * time.Second)
	for expirer.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if expirer.callCount() == 0 {
		t.Error("scheduled sweep never ran")
	}

	if err := worker.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if worker.GetStats().IsRunning {
		t.Error("worker should not be running after Stop()")
	}
	if err := worker.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
