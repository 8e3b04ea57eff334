package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
)

func seedLicense(t *testing.T, store *storage.MemoryStore, key string, status models.LicenseStatus, expiresAt, trialEndsAt *time.Time) *models.License {
	t.Helper()
	lic := &models.License{
		OrgModel:    models.OrgModel{OrganizationID: 1},
		Plan:        "pro",
		LicenseKey:  key,
		Status:      status,
		ExpiresAt:   expiresAt,
		TrialEndsAt: trialEndsAt,
	}
	require.NoError(t, store.CreateLicense(context.Background(), lic))
	return lic
}

func TestLicenseSweepHonorsGracePeriod(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	longGone := time.Now().AddDate(0, 0, -30)
	withinGrace := time.Now().AddDate(0, 0, -3)
	future := time.Now().AddDate(0, 1, 0)

	overdue := seedLicense(t, store, "VEL-OVERDUE", models.LicenseStatusActive, &longGone, nil)
	graced := seedLicense(t, store, "VEL-GRACED", models.LicenseStatusActive, &withinGrace, nil)
	current := seedLicense(t, store, "VEL-CURRENT", models.LicenseStatusActive, &future, nil)
	perpetual := seedLicense(t, store, "VEL-FOREVER", models.LicenseStatusActive, nil, nil)

	NewLicenseMonitor(store, 14).Sweep(ctx)

	for id, want := range map[int64]models.LicenseStatus{
		overdue.ID:   models.LicenseStatusExpired,
		graced.ID:    models.LicenseStatusActive,
		current.ID:   models.LicenseStatusActive,
		perpetual.ID: models.LicenseStatusActive,
	} {
		got, err := store.GetLicense(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, "license %d", id)
	}
}

func TestLicenseSweepEndsTrials(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	over := time.Now().Add(-time.Hour)
	running := time.Now().Add(24 * time.Hour)

	ended := seedLicense(t, store, "VEL-TRIAL-A", models.LicenseStatusTrial, nil, &over)
	active := seedLicense(t, store, "VEL-TRIAL-B", models.LicenseStatusTrial, nil, &running)

	// trials get no grace
	NewLicenseMonitor(store, 14).Sweep(ctx)

	got, err := store.GetLicense(ctx, ended.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusExpired, got.Status)

	got, err = store.GetLicense(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusTrial, got.Status)
}
