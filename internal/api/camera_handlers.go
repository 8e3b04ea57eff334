package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/visionedge/visionedge-cloud/internal/entitlement"
	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
)

// ========== Camera handlers ==========

// HandleListCameras lists cameras
func (s *RESTServer) HandleListCameras(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	limit, offset := pagination(r)

	filters := storage.CameraFilters{OrganizationID: orgFilter(claims)}
	if v := r.URL.Query().Get("edge_server_id"); v != "" {
		if id, err := parseInt64(v); err == nil {
			filters.EdgeServerID = &id
		}
	}

	cameras, total, err := s.store.ListCameras(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"cameras": cameras,
		"total":   total,
	})
}

// HandleCreateCamera creates a camera, counting it against the
// organization's camera entitlement
func (s *RESTServer) HandleCreateCamera(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	var req struct {
		OrganizationID int64            `json:"organization_id"`
		CameraID       string           `json:"camera_id" validate:"required,min=1,max=100"`
		EdgeServerID   *int64           `json:"edge_server_id"`
		Name           string           `json:"name" validate:"required,max=200"`
		Location       string           `json:"location"`
		RtspURL        string           `json:"rtsp_url"`
		Config         models.Variables `json:"config"`
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

	if req.EdgeServerID != nil {
		edge, err := s.store.GetEdgeServer(r.Context(), *req.EdgeServerID)
		if err != nil || edge.OrganizationID != organizationID {
			s.respondError(w, http.StatusUnprocessableEntity, "unknown edge server")
			return
		}
	}

	camera := &models.Camera{
		OrgModel:     models.OrgModel{OrganizationID: organizationID},
		CameraID:     req.CameraID,
		EdgeServerID: req.EdgeServerID,
		Name:         req.Name,
		Location:     req.Location,
		RtspURL:      req.RtspURL,
		Status:       models.CameraStatusOffline,
		Config:       req.Config,
	}

	tx, err := s.store.BeginTx(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback()

	if err := entitlement.NewResolver(tx).AssertCanCreate(r.Context(), organizationID, storage.QuotaCameras); err != nil {
		var qe *entitlement.QuotaExceededError
		if errors.As(err, &qe) {
			s.respondQuotaError(w, qe)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := tx.CreateCamera(r.Context(), camera); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "camera id already exists in organization")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := tx.Commit(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, camera)
}

// HandleGetCamera gets a camera
func (s *RESTServer) HandleGetCamera(w http.ResponseWriter, r *http.Request) {
	camera, ok := s.cameraForRequest(w, r)
	if !ok {
		return
	}

	s.respondJSON(w, http.StatusOK, camera)
}

// HandleUpdateCamera updates a camera
func (s *RESTServer) HandleUpdateCamera(w http.ResponseWriter, r *http.Request) {
	camera, ok := s.cameraForRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		EdgeServerID *int64            `json:"edge_server_id"`
		Name         *string           `json:"name"`
		Location     *string           `json:"location"`
		RtspURL      *string           `json:"rtsp_url"`
		Config       *models.Variables `json:"config"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.EdgeServerID != nil {
		edge, err := s.store.GetEdgeServer(r.Context(), *req.EdgeServerID)
		if err != nil || edge.OrganizationID != camera.OrganizationID {
			s.respondError(w, http.StatusUnprocessableEntity, "unknown edge server")
			return
		}
		camera.EdgeServerID = req.EdgeServerID
	}
	if req.Name != nil {
		camera.Name = *req.Name
	}
	if req.Location != nil {
		camera.Location = *req.Location
	}
	if req.RtspURL != nil {
		camera.RtspURL = *req.RtspURL
	}
	if req.Config != nil {
		camera.Config = *req.Config
	}

	if err := s.store.UpdateCamera(r.Context(), camera); err != nil {
		s.respondStorageError(w, err, "camera")
		return
	}

	s.respondJSON(w, http.StatusOK, camera)
}

// HandleDeleteCamera deletes a camera, freeing its entitlement slot
func (s *RESTServer) HandleDeleteCamera(w http.ResponseWriter, r *http.Request) {
	camera, ok := s.cameraForRequest(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteCamera(r.Context(), camera.ID); err != nil {
		s.respondStorageError(w, err, "camera")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// cameraForRequest loads the camera addressed by the request and
// enforces organization scoping
func (s *RESTServer) cameraForRequest(w http.ResponseWriter, r *http.Request) (*models.Camera, bool) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid camera id")
		return nil, false
	}

	camera, err := s.store.GetCamera(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "camera")
		return nil, false
	}

	claims, _ := claimsFromContext(r.Context())
	if !canAccessOrg(claims, camera.OrganizationID) {
		s.respondError(w, http.StatusNotFound, "camera not found")
		return nil, false
	}

	return camera, true
}
