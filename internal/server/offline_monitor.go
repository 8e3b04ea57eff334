package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/storage"
)

// OfflineMonitor marks edge servers offline when no heartbeat arrives
// within the configured timeout and publishes the status transition.
type OfflineMonitor struct {
	store     storage.Store
	publisher *NATSPublisher
	timeout   time.Duration
	interval  time.Duration
}

// NewOfflineMonitor creates an offline monitor. publisher may be nil.
func NewOfflineMonitor(store storage.Store, publisher *NATSPublisher, timeout time.Duration) *OfflineMonitor {
	interval := timeout / 4
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	return &OfflineMonitor{
		store:     store,
		publisher: publisher,
		timeout:   timeout,
		interval:  interval,
	}
}

// Start runs the sweep loop until the context is cancelled
func (m *OfflineMonitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().
		Dur("timeout", m.timeout).
		Dur("interval", m.interval).
		Msg("Starting edge server offline monitor")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep performs a single pass
func (m *OfflineMonitor) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-m.timeout)

	edges, err := m.store.MarkEdgeServersOffline(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep stale edge servers")
		return
	}

	for _, edge := range edges {
		log.Info().
			Str("edge_id", edge.EdgeID).
			Int64("organization_id", edge.OrganizationID).
			Time("cutoff", cutoff).
			Msg("Edge server marked offline")
		m.publisher.PublishEdgeStatus(edge, false)
	}
}
