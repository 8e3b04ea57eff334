package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/storage"
)

// LicenseMonitor expires overdue licenses. Active licenses keep their
// entitlements for the grace period past expiry before the sweep flips
// them; trials expire the moment the trial window closes.
type LicenseMonitor struct {
	store    storage.Store
	grace    time.Duration
	interval time.Duration
}

// NewLicenseMonitor creates a license expiry monitor
func NewLicenseMonitor(store storage.Store, graceDays int) *LicenseMonitor {
	return &LicenseMonitor{
		store:    store,
		grace:    time.Duration(graceDays) * 24 * time.Hour,
		interval: time.Hour,
	}
}

// Start runs the sweep loop until the context is cancelled
func (m *LicenseMonitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().
		Dur("grace", m.grace).
		Msg("Starting license expiry monitor")

	m.Sweep(ctx)

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
func (m *LicenseMonitor) Sweep(ctx context.Context) {
	licenses, err := m.store.ExpireLicenses(ctx, m.grace)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep expired licenses")
		return
	}

	for _, lic := range licenses {
		log.Info().
			Int64("license_id", lic.ID).
			Int64("organization_id", lic.OrganizationID).
			Str("plan", lic.Plan).
			Msg("License expired")
	}
}
