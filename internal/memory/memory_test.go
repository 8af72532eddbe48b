package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMonitor(limit int64, alloc *atomic.Uint64) *Monitor {
	m := NewMonitor(Config{Limit: limit, HighWaterMark: 0.5, CriticalWaterMark: 0.8, CheckInterval: time.Millisecond})
	m.sample = alloc.Load
	return m
}

func TestNewMonitor_Defaults(t *testing.T) {
	m := NewMonitor(Config{Limit: 1000})
	def := DefaultConfig()
	if m.cfg.HighWaterMark != def.HighWaterMark || m.cfg.CriticalWaterMark != def.CriticalWaterMark || m.cfg.CheckInterval != def.CheckInterval {
		t.Errorf("cfg = %+v, want defaults %+v", m.cfg, def)
	}
	if m.limit != 1000 {
		t.Errorf("limit = %d, want 1000", m.limit)
	}
}

func TestMonitor_PauseAndResume(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(1000, &alloc)
	defer m.Stop()

	alloc.Store(600)
	m.check()
	if m.Paused() {
		t.Fatal("60% is below the critical mark")
	}
	if got := m.Usage(); got != 0.6 {
		t.Errorf("Usage() = %v, want 0.6", got)
	}

	alloc.Store(900)
	m.check()
	if !m.Paused() {
		t.Fatal("90% should pause")
	}

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait() returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	// Between the marks: still paused.
	alloc.Store(600)
	m.check()
	if !m.Paused() {
		t.Fatal("usage between the marks should keep the pause")
	}

	alloc.Store(300)
	m.check()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() not released after recovery")
	}
	if m.Paused() {
		t.Error("should have resumed")
	}
}

func TestMonitor_WaitHonoursContext(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(950)
	m := newTestMonitor(1000, &alloc)
	defer m.Stop()
	m.check()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestMonitor_StopReleasesWaiters(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(950)
	m := newTestMonitor(1000, &alloc)
	m.check()

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()
	m.Stop()
	m.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() = %v, want nil after Stop", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop() did not release the waiter")
	}
}

func TestMonitor_StartSamples(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(990)
	m := newTestMonitor(1000, &alloc)
	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for !m.Paused() {
		if time.Now().After(deadline) {
			t.Fatal("sampling loop never paused")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestMonitor_NoLimitNeverPauses(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(1 << 40)
	m := newTestMonitor(0, &alloc)
	m.limit = 0
	m.check()

	if m.Paused() || m.Usage() != 0 {
		t.Errorf("Paused() = %v, Usage() = %v, want false and 0", m.Paused(), m.Usage())
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v", err)
	}
}
