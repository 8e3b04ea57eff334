package models

import "time"

// Event represents an AI event ingested from an edge server
type Event struct {
	BaseModel

	OrganizationID *int64 `json:"organizationId,omitempty" db:"organization_id"`
	EdgeServerID   *int64 `json:"edgeServerId,omitempty" db:"edge_server_id"`

	EdgeID     string    `json:"edgeId" db:"edge_id"`
	EventType  string    `json:"eventType" db:"event_type"`
	Severity   string    `json:"severity" db:"severity"`
	OccurredAt time.Time `json:"occurredAt" db:"occurred_at"`

	Meta Variables `json:"meta,omitempty" db:"meta"`
}
