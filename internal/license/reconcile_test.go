package license

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

func TestReconcileKeepsConsistentBinding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lic := f.license(t, models.LicenseStatusActive)
	edge := f.edge(t, "edge-001")
	require.NoError(t, f.mgr.Bind(ctx, lic.ID, edge.ID))

	got, err := f.mgr.Reconcile(ctx, edge.ID, lic.LicenseKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lic.ID, got.ID)
	f.assertBound(t, lic.ID, edge.ID)
}

func TestReconcileTakeover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lic := f.license(t, models.LicenseStatusActive)
	edge1 := f.edge(t, "edge-001")
	edge2 := f.edge(t, "edge-002")
	require.NoError(t, f.mgr.Bind(ctx, lic.ID, edge1.ID))

	// edge2 restored from the same license file; it wins the binding
	got, err := f.mgr.Reconcile(ctx, edge2.ID, lic.LicenseKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lic.ID, got.ID)

	f.assertBound(t, lic.ID, edge2.ID)
	prev, err := f.store.GetEdgeServer(ctx, edge1.ID)
	require.NoError(t, err)
	assert.Nil(t, prev.LicenseID)
}

func TestReconcileTakeoverReleasesOwnLicense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lic1 := f.license(t, models.LicenseStatusActive)
	lic2 := f.license(t, models.LicenseStatusActive)
	edge := f.edge(t, "edge-001")
	require.NoError(t, f.mgr.Bind(ctx, lic1.ID, edge.ID))

	got, err := f.mgr.Reconcile(ctx, edge.ID, lic2.LicenseKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lic2.ID, got.ID)

	f.assertBound(t, lic2.ID, edge.ID)
	f.assertUnbound(t, lic1.ID)
}

func TestReconcileUnknownKeyKeepsBinding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lic := f.license(t, models.LicenseStatusActive)
	edge := f.edge(t, "edge-001")
	require.NoError(t, f.mgr.Bind(ctx, lic.ID, edge.ID))

	got, err := f.mgr.Reconcile(ctx, edge.ID, "VEL-DOES-NOT0-EXIS-T000")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lic.ID, got.ID)
	f.assertBound(t, lic.ID, edge.ID)
}

func TestReconcileForeignKeyIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &models.Organization{Name: "Rival Corp", IsActive: true}
	require.NoError(t, f.store.CreateOrganization(ctx, other))
	foreign := &models.License{
		OrgModel:   models.OrgModel{OrganizationID: other.ID},
		Plan:       "pro",
		LicenseKey: "VEL-RIVA-L000-0000-0001",
		Status:     models.LicenseStatusActive,
	}
	require.NoError(t, f.store.CreateLicense(ctx, foreign))

	own := f.license(t, models.LicenseStatusActive)
	edge := f.edge(t, "edge-001")

	// the foreign key is ignored; auto-link falls back to the own pool
	got, err := f.mgr.Reconcile(ctx, edge.ID, foreign.LicenseKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, own.ID, got.ID)
	f.assertUnbound(t, foreign.ID)
}

func TestReconcileAutoLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lic := f.license(t, models.LicenseStatusActive)
	edge := f.edge(t, "edge-001")

	got, err := f.mgr.Reconcile(ctx, edge.ID, "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lic.ID, got.ID)
	f.assertBound(t, lic.ID, edge.ID)
}

func TestReconcileUnlicensed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	edge := f.edge(t, "edge-001")

	got, err := f.mgr.Reconcile(ctx, edge.ID, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReconcileInactiveReportedKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	suspended := f.license(t, models.LicenseStatusSuspended)
	edge := f.edge(t, "edge-001")

	got, err := f.mgr.Reconcile(ctx, edge.ID, suspended.LicenseKey)
	require.NoError(t, err)
	assert.Nil(t, got)
	f.assertUnbound(t, suspended.ID)
}
