package models

import "time"

// User roles
const (
	RoleOrgAdmin   = "org_admin"
	RoleOrgViewer  = "org_viewer"
	RoleSuperAdmin = "super_admin"
)

// User represents a portal operator account
type User struct {
	BaseModel

	OrganizationID *int64 `json:"organizationId,omitempty" db:"organization_id"`

	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password"`
	Phone        string `json:"phone,omitempty" db:"phone"`

	// org_admin | org_viewer | super_admin
	Role string `json:"role" db:"role"`

	IsActive  bool       `json:"isActive" db:"is_active"`
	LastLogin *time.Time `json:"lastLogin,omitempty" db:"last_login"`
}

// IsSuperAdmin reports whether the user may act across organizations
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}
