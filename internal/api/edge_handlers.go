package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/edgeauth"
	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
)

// ========== Device-facing handlers ==========
//
// All handlers below run behind the HMAC signature middleware; the
// authenticated edge server comes from the request context, never from
// the body. Body fields that would contradict the credential (edge_id,
// organization_id) are ignored.

type heartbeatRequest struct {
	EdgeID         string            `json:"edge_id"`
	OrganizationID int64             `json:"organization_id"`
	Version        string            `json:"version"`
	Online         bool              `json:"online"`
	InternalIP     string            `json:"internal_ip"`
	PublicIP       string            `json:"public_ip"`
	Hostname       string            `json:"hostname"`
	LicenseKey     string            `json:"license_key"`
	LicenseID      *int64            `json:"license_id"`
	SystemInfo     models.Variables  `json:"system_info"`
	CamerasStatus  map[string]string `json:"cameras_status"`
	Logs           []struct {
		Level   string           `json:"level"`
		Message string           `json:"message"`
		Meta    models.Variables `json:"meta"`
	} `json:"logs"`
}

// HandleEdgeHeartbeat ingests a heartbeat from an edge server: liveness,
// version, license reconciliation and per-camera status.
func (s *RESTServer) HandleEdgeHeartbeat(w http.ResponseWriter, r *http.Request) {
	edge, ok := edgeauth.EdgeFromContext(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wasOnline := edge.Online
	now := time.Now().UTC()

	edge.Online = true
	edge.LastSeenAt = &now
	if req.Version != "" {
		edge.Version = req.Version
	}
	if req.InternalIP != "" {
		edge.InternalIP = req.InternalIP
	}
	if req.PublicIP != "" {
		edge.PublicIP = req.PublicIP
	}
	if req.Hostname != "" {
		edge.Hostname = req.Hostname
	}
	if req.SystemInfo != nil {
		edge.SystemInfo = req.SystemInfo
	}

	if err := s.store.UpdateEdgeServer(r.Context(), edge); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	lic, err := s.binding.Reconcile(r.Context(), edge.ID, s.reportedLicenseKey(r, edge, &req))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lic != nil {
		edge.LicenseID = &lic.ID
	} else {
		edge.LicenseID = nil
	}

	for cameraID, status := range req.CamerasStatus {
		if err := s.store.UpdateCameraStatus(r.Context(), edge.ID, cameraID, status); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			log.Debug().
				Str("edge_id", edge.EdgeID).
				Str("camera_id", cameraID).
				Msg("Heartbeat reported status for unknown camera")
		}
	}

	for _, entry := range req.Logs {
		if err := s.store.CreateEdgeServerLog(r.Context(), &models.EdgeServerLog{
			EdgeServerID: edge.ID,
			Level:        entry.Level,
			Message:      entry.Message,
			Meta:         entry.Meta,
		}); err != nil {
			log.Error().Err(err).Str("edge_id", edge.EdgeID).Msg("Failed to store edge log entry")
		}
	}

	if !wasOnline {
		s.publisher.PublishEdgeStatus(edge, true)
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true,
		"edge": map[string]interface{}{
			"id":              edge.ID,
			"edge_id":         edge.EdgeID,
			"organization_id": edge.OrganizationID,
			"license_id":      edge.LicenseID,
			"online":          true,
			"version":         edge.Version,
		},
	})
}

// reportedLicenseKey extracts the license the edge claims to run under.
// Devices report the key; older agents report the numeric id, which is
// mapped back to a key when it belongs to the edge's organization.
func (s *RESTServer) reportedLicenseKey(r *http.Request, edge *models.EdgeServer, req *heartbeatRequest) string {
	if req.LicenseKey != "" {
		return req.LicenseKey
	}
	if req.LicenseID == nil {
		return ""
	}

	lic, err := s.store.GetLicense(r.Context(), *req.LicenseID)
	if err != nil || lic.OrganizationID != edge.OrganizationID {
		return ""
	}
	return lic.LicenseKey
}

// HandleEdgeListCameras returns the cameras assigned to the calling
// edge server so it can configure its pipelines
func (s *RESTServer) HandleEdgeListCameras(w http.ResponseWriter, r *http.Request) {
	edge, ok := edgeauth.EdgeFromContext(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cameras, err := s.store.ListCamerasForEdge(r.Context(), edge.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"cameras": cameras,
		"count":   len(cameras),
	})
}

// HandleEdgeCreateEvent ingests an AI event from an edge server
func (s *RESTServer) HandleEdgeCreateEvent(w http.ResponseWriter, r *http.Request) {
	edge, ok := edgeauth.EdgeFromContext(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		EventType  string           `json:"event_type" validate:"required,max=100"`
		Severity   string           `json:"severity" validate:"oneof=info warning critical"`
		OccurredAt *time.Time       `json:"occurred_at"`
		Meta       models.Variables `json:"meta"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Severity == "" {
		req.Severity = "info"
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}

	event := &models.Event{
		OrganizationID: &edge.OrganizationID,
		EdgeServerID:   &edge.ID,
		EdgeID:         edge.EdgeID,
		EventType:      req.EventType,
		Severity:       req.Severity,
		OccurredAt:     occurredAt,
		Meta:           req.Meta,
	}

	if err := s.store.CreateEvent(r.Context(), event); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.publisher.PublishEvent(event)

	s.respondJSON(w, http.StatusCreated, event)
}
