package models

// CameraStatus values reported by edge servers
const (
	CameraStatusOnline  = "online"
	CameraStatusOffline = "offline"
	CameraStatusDeleted = "deleted"
)

// Camera represents a camera managed by an edge server. Cameras count
// against the organization's entitlement while status != deleted.
type Camera struct {
	OrgModel

	// Unique per organization
	CameraID string `json:"cameraId" db:"camera_id"`

	EdgeServerID *int64 `json:"edgeServerId,omitempty" db:"edge_server_id"`

	Name     string `json:"name" db:"name"`
	Location string `json:"location,omitempty" db:"location"`
	RtspURL  string `json:"rtspUrl,omitempty" db:"rtsp_url"`
	Status   string `json:"status" db:"status"`

	Config Variables `json:"config,omitempty" db:"config"`
}
