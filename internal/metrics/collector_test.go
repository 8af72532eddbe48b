package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	err   error
	calls int
}

func (m *mockStatsProvider) GetStats(context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats, m.err
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestCollectorUpdatesGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		TotalImages:     12,
		TotalVideos:     3,
		PendingAnalysis: 5,
		MissingHash:     2,
	}}

	c := NewCollector(provider, time.Hour)
	c.collect()

	if got := testutil.ToFloat64(CatalogItems.WithLabelValues("image")); got != 12 {
		t.Errorf("image gauge = %v, want 12", got)
	}
	if got := testutil.ToFloat64(CatalogItems.WithLabelValues("video")); got != 3 {
		t.Errorf("video gauge = %v, want 3", got)
	}
	if got := testutil.ToFloat64(CatalogPendingAnalysis); got != 5 {
		t.Errorf("pending gauge = %v, want 5", got)
	}
	if got := testutil.ToFloat64(CatalogMissingHash); got != 2 {
		t.Errorf("missing hash gauge = %v, want 2", got)
	}
}

func TestCollectorKeepsGaugesOnError(t *testing.T) {
	CatalogMissingHash.Set(7)
	provider := &mockStatsProvider{err: errors.New("database is locked")}

	c := NewCollector(provider, time.Hour)
	c.collect()

	if got := testutil.ToFloat64(CatalogMissingHash); got != 7 {
		t.Errorf("gauge changed on error: %v", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(2 * time.Second)
	for provider.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if provider.callCount() < 2 {
		t.Errorf("collector ran %d times, want at least 2", provider.callCount())
	}

	after := provider.callCount()
	time.Sleep(30 * time.Millisecond)
	if provider.callCount() != after {
		t.Error("collector kept running after Stop")
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.collect()
}
