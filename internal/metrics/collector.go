package metrics

import (
	"context"
	"time"

	"media-catalog/internal/logging"
)

// StatsProvider reports catalog totals for the gauges.
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Stats holds the catalog totals exported as gauges.
type Stats struct {
	TotalImages     int
	TotalVideos     int
	PendingAnalysis int
	MissingHash     int
}

// Collector periodically refreshes the catalog gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	done          chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	CatalogItems.WithLabelValues("image").Set(float64(stats.TotalImages))
	CatalogItems.WithLabelValues("video").Set(float64(stats.TotalVideos))
	CatalogPendingAnalysis.Set(float64(stats.PendingAnalysis))
	CatalogMissingHash.Set(float64(stats.MissingHash))

	logging.Debug("Metrics collected: images=%d, videos=%d, pending=%d, missing_hash=%d",
		stats.TotalImages, stats.TotalVideos, stats.PendingAnalysis, stats.MissingHash)
}
