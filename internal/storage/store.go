package storage

import (
	"context"
	"errors"
	"time"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// QuotaKind selects which entitlement field a query applies to
type QuotaKind string

const (
	QuotaCameras     QuotaKind = "cameras"
	QuotaEdgeServers QuotaKind = "edge_servers"
)

// Store defines the storage interface
type Store interface {
	// Transaction support. BeginTx returns a Store scoped to the new
	// transaction; all reads marked ForUpdate take row locks in it.
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, organizationID *int64, limit, offset int) ([]*models.User, int64, error)

	// Organization methods
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
	// GetOrganizationForUpdate gets an organization by id, taking a row
	// lock inside a transaction. Quota-gated creations lock the tenant
	// row so concurrent check-then-create sequences serialize on it.
	GetOrganizationForUpdate(ctx context.Context, id int64) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	DeleteOrganization(ctx context.Context, id int64) error
	ListOrganizations(ctx context.Context, limit, offset int) ([]*models.Organization, int64, error)

	// Subscription plan methods
	CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error
	GetPlan(ctx context.Context, id int64) (*models.SubscriptionPlan, error)
	GetPlanByName(ctx context.Context, name string) (*models.SubscriptionPlan, error)
	UpdatePlan(ctx context.Context, plan *models.SubscriptionPlan) error
	DeletePlan(ctx context.Context, id int64) error
	ListPlans(ctx context.Context, limit, offset int) ([]*models.SubscriptionPlan, int64, error)

	// License methods
	CreateLicense(ctx context.Context, license *models.License) error
	GetLicense(ctx context.Context, id int64) (*models.License, error)
	GetLicenseForUpdate(ctx context.Context, id int64) (*models.License, error)
	GetLicenseByKey(ctx context.Context, key string) (*models.License, error)
	GetLicenseByEdgeServer(ctx context.Context, edgeServerID int64) (*models.License, error)
	// FirstUnboundActiveLicense returns the oldest (lowest id) active
	// license of the organization with no edge server bound, locking the
	// row when called inside a transaction.
	FirstUnboundActiveLicense(ctx context.Context, organizationID int64) (*models.License, error)
	ListActiveLicenses(ctx context.Context, organizationID int64) ([]*models.License, error)
	UpdateLicense(ctx context.Context, license *models.License) error
	// ExpireLicenses marks active licenses past expiry (plus grace) and
	// trial licenses past their trial end as expired, returning the
	// affected rows.
	ExpireLicenses(ctx context.Context, grace time.Duration) ([]*models.License, error)
	SetLicenseEdgeServer(ctx context.Context, licenseID int64, edgeServerID *int64) error
	DeleteLicense(ctx context.Context, id int64) error
	ListLicenses(ctx context.Context, filters LicenseFilters, limit, offset int) ([]*models.License, int64, error)

	// Edge server methods
	CreateEdgeServer(ctx context.Context, edge *models.EdgeServer) error
	GetEdgeServer(ctx context.Context, id int64) (*models.EdgeServer, error)
	GetEdgeServerForUpdate(ctx context.Context, id int64) (*models.EdgeServer, error)
	GetEdgeServerByEdgeID(ctx context.Context, edgeID string) (*models.EdgeServer, error)
	// GetEdgeServerByKey is the credential lookup on the edge_key unique
	// index; it sits on every authenticated edge request.
	GetEdgeServerByKey(ctx context.Context, edgeKey string) (*models.EdgeServer, error)
	UpdateEdgeServer(ctx context.Context, edge *models.EdgeServer) error
	SetEdgeServerLicense(ctx context.Context, edgeServerID int64, licenseID *int64) error
	DeleteEdgeServer(ctx context.Context, id int64) error
	ListEdgeServers(ctx context.Context, filters EdgeServerFilters, limit, offset int) ([]*models.EdgeServer, int64, error)
	// MarkEdgeServersOffline flips edge servers with no heartbeat since
	// cutoff to offline and returns the affected rows.
	MarkEdgeServersOffline(ctx context.Context, cutoff time.Time) ([]*models.EdgeServer, error)
	CountEdgeServers(ctx context.Context, organizationID int64) (int, error)
	EdgeServerStats(ctx context.Context, organizationID *int64) (total, online int, err error)

	// Camera methods
	CreateCamera(ctx context.Context, camera *models.Camera) error
	GetCamera(ctx context.Context, id int64) (*models.Camera, error)
	UpdateCamera(ctx context.Context, camera *models.Camera) error
	UpdateCameraStatus(ctx context.Context, edgeServerID int64, cameraID, status string) error
	DeleteCamera(ctx context.Context, id int64) error
	ListCameras(ctx context.Context, filters CameraFilters, limit, offset int) ([]*models.Camera, int64, error)
	ListCamerasForEdge(ctx context.Context, edgeServerID int64) ([]*models.Camera, error)
	CountCameras(ctx context.Context, organizationID int64) (int, error)

	// Event methods
	CreateEvent(ctx context.Context, event *models.Event) error
	ListEvents(ctx context.Context, filters EventFilters, limit, offset int) ([]*models.Event, int64, error)

	// Edge server log methods
	CreateEdgeServerLog(ctx context.Context, entry *models.EdgeServerLog) error
	ListEdgeServerLogs(ctx context.Context, edgeServerID int64, level string, limit, offset int) ([]*models.EdgeServerLog, int64, error)

	// Close the store
	Close() error
}

// LicenseFilters represents filters for license listings
type LicenseFilters struct {
	OrganizationID *int64
	Status         *models.LicenseStatus
	Plan           *string
}

// EdgeServerFilters represents filters for edge server listings
type EdgeServerFilters struct {
	OrganizationID *int64
	Online         *bool
}

// CameraFilters represents filters for camera listings
type CameraFilters struct {
	OrganizationID *int64
	EdgeServerID   *int64
}

// EventFilters represents filters for event listings
type EventFilters struct {
	OrganizationID *int64
	EdgeServerID   *int64
	EventType      *string
	Severity       *string
	StartTime      *time.Time
	EndTime        *time.Time
}
