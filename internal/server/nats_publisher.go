// Package server holds the messaging glue between the cloud API and the
// rest of the platform. Analytics events and edge status transitions go
// out on NATS subjects that downstream consumers (alerting, billing,
// dashboards) subscribe to.
package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

// NATSPublisher publishes domain events to NATS. A nil publisher is
// valid and drops everything, which is how the server runs in
// standalone mode without a broker.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher creates a NATS publisher
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// PublishEvent publishes an analytics event on
// events.{organization_id}.{event_type}
func (p *NATSPublisher) PublishEvent(event *models.Event) {
	if p == nil || p.nc == nil {
		return
	}

	orgID := "0"
	if event.OrganizationID != nil {
		orgID = strconv.FormatInt(*event.OrganizationID, 10)
	}
	subject := fmt.Sprintf("events.%s.%s", orgID, event.EventType)

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event for NATS")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to publish event")
		return
	}

	log.Debug().
		Str("subject", subject).
		Str("event_type", event.EventType).
		Msg("Published event")
}

// PublishEdgeStatus publishes an online/offline transition on
// edges.{organization_id}.status
func (p *NATSPublisher) PublishEdgeStatus(edge *models.EdgeServer, online bool) {
	if p == nil || p.nc == nil {
		return
	}

	subject := fmt.Sprintf("edges.%d.status", edge.OrganizationID)

	payload := map[string]interface{}{
		"edge_server_id": edge.ID,
		"edge_id":        edge.EdgeID,
		"online":         online,
		"at":             time.Now().UTC(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal edge status for NATS")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to publish edge status")
		return
	}

	log.Debug().
		Str("subject", subject).
		Str("edge_id", edge.EdgeID).
		Bool("online", online).
		Msg("Published edge status")
}
