package models

import "time"

// LicenseStatus represents the lifecycle state of a license
type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusExpired   LicenseStatus = "expired"
	LicenseStatusTrial     LicenseStatus = "trial"
)

// License represents an entitlement grant owned by an organization.
// A license is bound to at most one edge server at a time; the bound
// edge server points back via EdgeServer.LicenseID.
type License struct {
	OrgModel

	Plan       string        `json:"plan" db:"plan"`
	LicenseKey string        `json:"licenseKey" db:"license_key"`
	Status     LicenseStatus `json:"status" db:"status"`

	EdgeServerID *int64 `json:"edgeServerId,omitempty" db:"edge_server_id"`

	// Per-license quota overrides; 0 means unset
	MaxCameras     int `json:"maxCameras" db:"max_cameras"`
	MaxEdgeServers int `json:"maxEdgeServers" db:"max_edge_servers"`

	Modules StringList `json:"modules,omitempty" db:"modules"`

	TrialEndsAt *time.Time `json:"trialEndsAt,omitempty" db:"trial_ends_at"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty" db:"activated_at"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
}

// IsActive reports whether the license currently grants entitlements
func (l *License) IsActive() bool {
	return l.Status == LicenseStatusActive
}
