package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/command"
	"github.com/visionedge/visionedge-cloud/internal/entitlement"
	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
	"github.com/visionedge/visionedge-cloud/pkg/crypto"
)

// ========== Edge server handlers ==========

// HandleListEdgeServers lists edge servers
func (s *RESTServer) HandleListEdgeServers(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	limit, offset := pagination(r)

	filters := storage.EdgeServerFilters{OrganizationID: orgFilter(claims)}
	if v := r.URL.Query().Get("online"); v != "" {
		online := v == "true"
		filters.Online = &online
	}

	edges, total, err := s.store.ListEdgeServers(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"edge_servers": edges,
		"total":        total,
	})
}

// HandleCreateEdgeServer registers a new edge server. The credential
// pair is generated here and the secret appears in this response only;
// it is never re-displayed.
func (s *RESTServer) HandleCreateEdgeServer(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	var req struct {
		OrganizationID int64  `json:"organization_id"`
		EdgeID         string `json:"edge_id" validate:"required,min=3,max=100"`
		Name           string `json:"name" validate:"required,max=200"`
		Location       string `json:"location"`
		Notes          string `json:"notes"`
		InternalIP     string `json:"internal_ip"`
		PublicIP       string `json:"public_ip"`
		Hostname       string `json:"hostname"`
		Port           int    `json:"port" validate:"min=0,max=65535"`
		UseHTTPS       bool   `json:"use_https"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	organizationID := req.OrganizationID
	if !claims.IsSuperAdmin() {
		if claims.OrganizationID == nil {
			s.respondError(w, http.StatusForbidden, "no organization")
			return
		}
		organizationID = *claims.OrganizationID
	}

	if _, err := s.store.GetOrganization(r.Context(), organizationID); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "unknown organization")
		return
	}

	edgeKey, err := crypto.GenerateEdgeKey()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate credentials")
		return
	}
	edgeSecret, err := crypto.GenerateEdgeSecret()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate credentials")
		return
	}

	edge := &models.EdgeServer{
		OrgModel:   models.OrgModel{OrganizationID: organizationID},
		EdgeID:     req.EdgeID,
		EdgeKey:    edgeKey,
		EdgeSecret: edgeSecret,
		Name:       req.Name,
		Location:   req.Location,
		Notes:      req.Notes,
		InternalIP: req.InternalIP,
		PublicIP:   req.PublicIP,
		Hostname:   req.Hostname,
		Port:       req.Port,
		UseHTTPS:   req.UseHTTPS,
	}

	// quota check and create in one transaction; AssertCanCreate takes
	// the organization row lock, so two concurrent registrations cannot
	// both squeeze under the limit
	tx, err := s.store.BeginTx(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback()

	if err := entitlement.NewResolver(tx).AssertCanCreate(r.Context(), organizationID, storage.QuotaEdgeServers); err != nil {
		var qe *entitlement.QuotaExceededError
		if errors.As(err, &qe) {
			s.respondQuotaError(w, qe)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := tx.CreateEdgeServer(r.Context(), edge); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "edge id already registered")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := tx.Commit(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().
		Int64("edge_server_id", edge.ID).
		Str("edge_id", edge.EdgeID).
		Int64("organization_id", organizationID).
		Msg("Edge server registered")

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"edge_server": edge,
		"edge_key":    edgeKey,
		"edge_secret": edgeSecret,
	})
}

// HandleGetEdgeServer gets an edge server
func (s *RESTServer) HandleGetEdgeServer(w http.ResponseWriter, r *http.Request) {
	edge, ok := s.edgeServerForRequest(w, r)
	if !ok {
		return
	}

	s.respondJSON(w, http.StatusOK, edge)
}

// HandleUpdateEdgeServer updates an edge server's metadata and address.
// Credentials and owner are immutable; license moves go through the
// license bind/unbind endpoints.
func (s *RESTServer) HandleUpdateEdgeServer(w http.ResponseWriter, r *http.Request) {
	edge, ok := s.edgeServerForRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Name       *string `json:"name"`
		Location   *string `json:"location"`
		Notes      *string `json:"notes"`
		InternalIP *string `json:"internal_ip"`
		PublicIP   *string `json:"public_ip"`
		Hostname   *string `json:"hostname"`
		Port       *int    `json:"port"`
		UseHTTPS   *bool   `json:"use_https"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		edge.Name = *req.Name
	}
	if req.Location != nil {
		edge.Location = *req.Location
	}
	if req.Notes != nil {
		edge.Notes = *req.Notes
	}
	if req.InternalIP != nil {
		edge.InternalIP = *req.InternalIP
	}
	if req.PublicIP != nil {
		edge.PublicIP = *req.PublicIP
	}
	if req.Hostname != nil {
		edge.Hostname = *req.Hostname
	}
	if req.Port != nil {
		edge.Port = *req.Port
	}
	if req.UseHTTPS != nil {
		edge.UseHTTPS = *req.UseHTTPS
	}

	if err := s.store.UpdateEdgeServer(r.Context(), edge); err != nil {
		s.respondStorageError(w, err, "edge server")
		return
	}

	s.respondJSON(w, http.StatusOK, edge)
}

// HandleDeleteEdgeServer deletes an edge server; its license is
// released back to the organization's pool
func (s *RESTServer) HandleDeleteEdgeServer(w http.ResponseWriter, r *http.Request) {
	edge, ok := s.edgeServerForRequest(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteEdgeServer(r.Context(), edge.ID); err != nil {
		s.respondStorageError(w, err, "edge server")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleUnbindEdgeServer releases whatever license the edge server
// holds back to the organization's pool
func (s *RESTServer) HandleUnbindEdgeServer(w http.ResponseWriter, r *http.Request) {
	edge, ok := s.edgeServerForRequest(w, r)
	if !ok {
		return
	}

	if err := s.binding.UnbindEdge(r.Context(), edge.ID); err != nil {
		s.respondStorageError(w, err, "edge server")
		return
	}

	edge, err := s.store.GetEdgeServer(r.Context(), edge.ID)
	if err != nil {
		s.respondStorageError(w, err, "edge server")
		return
	}
	s.respondJSON(w, http.StatusOK, edge)
}

// HandleEdgeServerStats reports fleet totals
func (s *RESTServer) HandleEdgeServerStats(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	total, online, err := s.store.EdgeServerStats(r.Context(), orgFilter(claims))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":   total,
		"online":  online,
		"offline": total - online,
	})
}

// HandleListEdgeServerLogs lists log entries uploaded by an edge server
func (s *RESTServer) HandleListEdgeServerLogs(w http.ResponseWriter, r *http.Request) {
	edge, ok := s.edgeServerForRequest(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	level := r.URL.Query().Get("level")

	entries, total, err := s.store.ListEdgeServerLogs(r.Context(), edge.ID, level, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  entries,
		"total": total,
	})
}

// HandleRestartEdgeServer asks the edge server to restart its services
func (s *RESTServer) HandleRestartEdgeServer(w http.ResponseWriter, r *http.Request) {
	edge, ok := s.edgeServerForRequest(w, r)
	if !ok {
		return
	}

	result, err := s.dispatcher.Restart(r.Context(), edge)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"delivered": true,
		"status":    result.StatusCode,
	})
}

// HandleSyncEdgeServerConfig pushes the current camera assignment and
// licensed modules down to the edge server
func (s *RESTServer) HandleSyncEdgeServerConfig(w http.ResponseWriter, r *http.Request) {
	edge, ok := s.edgeServerForRequest(w, r)
	if !ok {
		return
	}

	cameras, err := s.store.ListCamerasForEdge(r.Context(), edge.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	modules, err := s.entitlement.ResolveModules(r.Context(), edge.OrganizationID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := s.dispatcher.SyncConfig(r.Context(), edge, map[string]interface{}{
		"cameras": cameras,
		"modules": modules,
	})
	if err != nil {
		s.respondCommandError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"delivered": true,
		"status":    result.StatusCode,
		"cameras":   len(cameras),
	})
}

// edgeServerForRequest loads the edge server addressed by the request
// and enforces organization scoping
func (s *RESTServer) edgeServerForRequest(w http.ResponseWriter, r *http.Request) (*models.EdgeServer, bool) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid edge server id")
		return nil, false
	}

	edge, err := s.store.GetEdgeServer(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "edge server")
		return nil, false
	}

	claims, _ := claimsFromContext(r.Context())
	if !canAccessOrg(claims, edge.OrganizationID) {
		s.respondError(w, http.StatusNotFound, "edge server not found")
		return nil, false
	}

	return edge, true
}

// respondCommandError maps dispatcher errors to HTTP statuses
func (s *RESTServer) respondCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, command.ErrEdgeOffline), errors.Is(err, command.ErrNoAddress), errors.Is(err, command.ErrNoCredentials):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.respondError(w, http.StatusBadGateway, err.Error())
	}
}
