package metrics

import (
	"time"

	"image-library/internal/logging"
)

// StatsProvider reports the point-in-time state exported as gauges.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current pipeline state.
type Stats struct {
	DescriptionEntries int
	DocumentOpen       bool
	DocumentPixels     int
}

// Collector periodically samples a StatsProvider into gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
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

	stats := c.statsProvider.GetStats()

	DescriptionEntries.Set(float64(stats.DescriptionEntries))
	DocumentPixels.Set(float64(stats.DocumentPixels))

	logging.Debug("Metrics collected: descriptions=%d, document open=%v, pixels=%d",
		stats.DescriptionEntries, stats.DocumentOpen, stats.DocumentPixels)
}
