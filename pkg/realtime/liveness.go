package realtime

import (
	"context"
	"time"

	"github.com/DarthNec/Fonana-sub001/pkg/logger"
	"github.com/DarthNec/Fonana-sub001/pkg/telemetry"
)

// missedPingLimit is how many consecutive unanswered pings a connection
// survives before eviction.
const missedPingLimit = 2

// Monitor drives the heartbeat cycle: every interval it pings each live
// connection and evicts those that failed to answer the previous pings.
type Monitor struct {
	registry *Registry
	interval time.Duration
}

func NewMonitor(registry *Registry, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{registry: registry, interval: interval}
}

// Run loops until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cycle()
		}
	}
}

// Cycle performs one heartbeat pass. Exported so tests can drive the
// clock themselves.
func (m *Monitor) Cycle() {
	for _, c := range m.registry.Conns() {
		if c.awaitingPong.Load() {
			if missed := c.missedPings.Add(1); missed >= missedPingLimit {
				logger.Warn("liveness_eviction", "conn", c.ID, "user", c.Identity.UserID, "missed", missed)
				telemetry.LivenessEvictions.Inc()
				m.registry.Deregister(c)
				continue
			}
		} else {
			c.missedPings.Store(0)
		}
		c.awaitingPong.Store(true)
		if err := c.ping(); err != nil {
			logger.Debug("ping_failed", "conn", c.ID, "error", err)
			m.registry.Deregister(c)
		}
	}
}

// MarkPong records a pong from the connection, resetting its cycle.
func MarkPong(c *Conn) {
	c.awaitingPong.Store(false)
	c.missedPings.Store(0)
}
