package models

import "time"

// EdgeServer represents an on-premises video analytics box.
// The edge_key/edge_secret pair authenticates every request the device
// makes against the cloud; the secret is returned exactly once, at
// registration, and never re-displayed.
type EdgeServer struct {
	OrgModel

	// Device-supplied public identifier, unique across all tenants
	EdgeID string `json:"edgeId" db:"edge_id"`

	// HMAC credential pair
	EdgeKey    string `json:"edgeKey" db:"edge_key"`
	EdgeSecret string `json:"-" db:"edge_secret"`

	Name     string `json:"name,omitempty" db:"name"`
	Location string `json:"location,omitempty" db:"location"`
	Notes    string `json:"notes,omitempty" db:"notes"`

	InternalIP string `json:"internalIp,omitempty" db:"internal_ip"`
	PublicIP   string `json:"publicIp,omitempty" db:"public_ip"`
	Hostname   string `json:"hostname,omitempty" db:"hostname"`
	Port       int    `json:"port,omitempty" db:"port"`
	UseHTTPS   bool   `json:"useHttps" db:"use_https"`

	Version    string     `json:"version,omitempty" db:"version"`
	Online     bool       `json:"online" db:"online"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty" db:"last_seen_at"`

	LicenseID *int64 `json:"licenseId,omitempty" db:"license_id"`

	SystemInfo Variables `json:"systemInfo,omitempty" db:"system_info"`
}

// EdgeServerLog represents a log line attached to an edge server
type EdgeServerLog struct {
	BaseModel

	EdgeServerID int64     `json:"edgeServerId" db:"edge_server_id"`
	Level        string    `json:"level" db:"level"`
	Message      string    `json:"message" db:"message"`
	Meta         Variables `json:"meta,omitempty" db:"meta"`
}
