package cache

import (
	"context"
	"log/slog"
	"time"
)

const defaultCheckInterval = 30 * time.Second

// Monitor supervises the store connection with a periodic health probe.
// The underlying client reconnects on its own; the monitor's job is to make
// availability transitions observable instead of relying on driver-internal
// event callbacks.
type Monitor struct {
	store    *Store
	logger   *slog.Logger
	interval time.Duration
}

// NewMonitor builds a monitor probing store every interval. Non-positive
// intervals fall back to 30s.
func NewMonitor(store *Store, logger *slog.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Monitor{store: store, logger: logger, interval: interval}
}

// Run blocks until ctx is canceled, probing the store on each tick and
// logging transitions between healthy and unhealthy.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	healthy := m.probe(ctx, true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			healthy = m.probe(ctx, healthy)
		}
	}
}

func (m *Monitor) probe(ctx context.Context, wasHealthy bool) bool {
	latency, err := m.store.Ping(ctx)
	if err != nil {
		if wasHealthy {
			m.logger.Error("session store unreachable", "error", err)
		}
		return false
	}
	if !wasHealthy {
		m.logger.Info("session store recovered", "latency", latency)
	}
	return true
}
