package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
)

type fixture struct {
	store    *storage.MemoryStore
	resolver *Resolver
	org      *models.Organization
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	org := &models.Organization{Name: "Acme Logistics", IsActive: true}
	require.NoError(t, store.CreateOrganization(context.Background(), org))

	return &fixture{store: store, resolver: NewResolver(store), org: org}
}

func (f *fixture) plan(t *testing.T, name string, maxCameras, maxEdgeServers int) {
	t.Helper()
	require.NoError(t, f.store.CreatePlan(context.Background(), &models.SubscriptionPlan{
		Name:           name,
		MaxCameras:     maxCameras,
		MaxEdgeServers: maxEdgeServers,
		IsActive:       true,
	}))
	f.org.SubscriptionPlan = name
	require.NoError(t, f.store.UpdateOrganization(context.Background(), f.org))
}

var licSeq int

func (f *fixture) license(t *testing.T, status models.LicenseStatus, maxCameras, maxEdgeServers int) *models.License {
	t.Helper()
	licSeq++
	lic := &models.License{
		OrgModel:       models.OrgModel{OrganizationID: f.org.ID},
		Plan:           "pro",
		LicenseKey:     "VEL-QUOT-A000-0000-" + string(rune('A'+licSeq%26)) + "000",
		Status:         status,
		MaxCameras:     maxCameras,
		MaxEdgeServers: maxEdgeServers,
	}
	require.NoError(t, f.store.CreateLicense(context.Background(), lic))
	return lic
}

func (f *fixture) resolve(t *testing.T, kind storage.QuotaKind) Quota {
	t.Helper()
	q, err := f.resolver.ResolveQuota(context.Background(), f.org.ID, kind)
	require.NoError(t, err)
	return q
}

func TestResolveQuotaLicenseBeatsPlan(t *testing.T) {
	f := newFixture(t)

	f.plan(t, "basic", 5, 0)
	f.license(t, models.LicenseStatusActive, 10, 0)

	assert.Equal(t, Quota{Limit: 10}, f.resolve(t, storage.QuotaCameras))
}

func TestResolveQuotaMaxAcrossLicensesNotSum(t *testing.T) {
	f := newFixture(t)

	f.license(t, models.LicenseStatusActive, 10, 0)
	f.license(t, models.LicenseStatusActive, 25, 0)
	f.license(t, models.LicenseStatusActive, 4, 0)

	assert.Equal(t, Quota{Limit: 25}, f.resolve(t, storage.QuotaCameras))
}

func TestResolveQuotaIgnoresInactiveLicenses(t *testing.T) {
	f := newFixture(t)

	f.plan(t, "basic", 5, 0)
	f.license(t, models.LicenseStatusSuspended, 100, 0)
	f.license(t, models.LicenseStatusExpired, 50, 0)

	assert.Equal(t, Quota{Limit: 5}, f.resolve(t, storage.QuotaCameras))
}

func TestResolveQuotaFallsBackThroughLevels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// license override wins
	f.plan(t, "basic", 5, 0)
	lic := f.license(t, models.LicenseStatusActive, 10, 0)
	assert.Equal(t, Quota{Limit: 10}, f.resolve(t, storage.QuotaCameras))

	// removing the license drops resolution to the plan
	require.NoError(t, f.store.DeleteLicense(ctx, lic.ID))
	assert.Equal(t, Quota{Limit: 5}, f.resolve(t, storage.QuotaCameras))

	// zeroed plan quota falls through to the direct organization limit
	plan, err := f.store.GetPlanByName(ctx, "basic")
	require.NoError(t, err)
	plan.MaxCameras = 0
	require.NoError(t, f.store.UpdatePlan(ctx, plan))

	f.org.MaxCameras = 3
	require.NoError(t, f.store.UpdateOrganization(ctx, f.org))
	assert.Equal(t, Quota{Limit: 3}, f.resolve(t, storage.QuotaCameras))

	// nothing set anywhere means unlimited
	f.org.MaxCameras = 0
	require.NoError(t, f.store.UpdateOrganization(ctx, f.org))
	assert.Equal(t, Quota{Unlimited: true}, f.resolve(t, storage.QuotaCameras))
}

func TestResolveQuotaUnknownPlanName(t *testing.T) {
	f := newFixture(t)

	f.org.SubscriptionPlan = "no-such-plan"
	f.org.MaxEdgeServers = 2
	require.NoError(t, f.store.UpdateOrganization(context.Background(), f.org))

	assert.Equal(t, Quota{Limit: 2}, f.resolve(t, storage.QuotaEdgeServers))
}

func TestResolveQuotaKindsIndependent(t *testing.T) {
	f := newFixture(t)

	f.license(t, models.LicenseStatusActive, 10, 0)
	f.plan(t, "basic", 0, 3)

	assert.Equal(t, Quota{Limit: 10}, f.resolve(t, storage.QuotaCameras))
	assert.Equal(t, Quota{Limit: 3}, f.resolve(t, storage.QuotaEdgeServers))
}

func TestAssertCanCreateBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.plan(t, "basic", 2, 0)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.resolver.AssertCanCreate(ctx, f.org.ID, storage.QuotaCameras))
		require.NoError(t, f.store.CreateCamera(ctx, &models.Camera{
			OrgModel: models.OrgModel{OrganizationID: f.org.ID},
			CameraID: "cam-" + string(rune('1'+i)),
			Name:     "Camera",
		}))
	}

	err := f.resolver.AssertCanCreate(ctx, f.org.ID, storage.QuotaCameras)
	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, storage.QuotaCameras, quotaErr.Kind)
	assert.Equal(t, 2, quotaErr.Current)
	assert.Equal(t, 2, quotaErr.Limit)
}

// lockRecordingStore records which organization rows AssertCanCreate
// locks before counting.
type lockRecordingStore struct {
	storage.Store
	locked []int64
}

func (s *lockRecordingStore) GetOrganizationForUpdate(ctx context.Context, id int64) (*models.Organization, error) {
	s.locked = append(s.locked, id)
	return s.Store.GetOrganizationForUpdate(ctx, id)
}

func TestAssertCanCreateLocksOrganizationRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.plan(t, "basic", 2, 0)

	rec := &lockRecordingStore{Store: f.store}
	require.NoError(t, NewResolver(rec).AssertCanCreate(ctx, f.org.ID, storage.QuotaCameras))

	// the tenant row lock must be taken before the count, so concurrent
	// check-then-create transactions serialize on it
	assert.Equal(t, []int64{f.org.ID}, rec.locked)
}

func TestAssertCanCreateUnknownOrganization(t *testing.T) {
	f := newFixture(t)

	err := f.resolver.AssertCanCreate(context.Background(), 9999, storage.QuotaCameras)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAssertCanCreateFreesQuotaOnDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.plan(t, "basic", 1, 0)

	cam := &models.Camera{
		OrgModel: models.OrgModel{OrganizationID: f.org.ID},
		CameraID: "cam-1",
		Name:     "Camera",
	}
	require.NoError(t, f.store.CreateCamera(ctx, cam))
	require.Error(t, f.resolver.AssertCanCreate(ctx, f.org.ID, storage.QuotaCameras))

	// deleted cameras stop counting
	require.NoError(t, f.store.DeleteCamera(ctx, cam.ID))
	require.NoError(t, f.resolver.AssertCanCreate(ctx, f.org.ID, storage.QuotaCameras))
}

func TestAssertCanCreateUnlimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, f.store.CreateCamera(ctx, &models.Camera{
			OrgModel: models.OrgModel{OrganizationID: f.org.ID},
			CameraID: "cam-" + string(rune('A'+i%26)) + string(rune('A'+i/26)),
			Name:     "Camera",
		}))
	}

	require.NoError(t, f.resolver.AssertCanCreate(ctx, f.org.ID, storage.QuotaCameras))
}

func TestResolveModules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.plan(t, "basic", 0, 0)
	plan, err := f.store.GetPlanByName(ctx, "basic")
	require.NoError(t, err)
	plan.AvailableModules = models.StringList{"detection"}
	require.NoError(t, f.store.UpdatePlan(ctx, plan))

	// no licensed modules: the plan's set applies
	mods, err := f.resolver.ResolveModules(ctx, f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"detection"}, mods)

	// licensed modules are the union across active licenses
	lic1 := f.license(t, models.LicenseStatusActive, 0, 0)
	lic1.Modules = models.StringList{"detection", "anpr"}
	require.NoError(t, f.store.UpdateLicense(ctx, lic1))

	lic2 := f.license(t, models.LicenseStatusActive, 0, 0)
	lic2.Modules = models.StringList{"anpr", "counting"}
	require.NoError(t, f.store.UpdateLicense(ctx, lic2))

	mods, err = f.resolver.ResolveModules(ctx, f.org.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"detection", "anpr", "counting"}, mods)
}
