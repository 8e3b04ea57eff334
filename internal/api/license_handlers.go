package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/license"
	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
	"github.com/visionedge/visionedge-cloud/pkg/crypto"
)

// ========== License handlers ==========

// HandleListLicenses lists licenses
func (s *RESTServer) HandleListLicenses(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	limit, offset := pagination(r)

	filters := storage.LicenseFilters{OrganizationID: orgFilter(claims)}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.LicenseStatus(v)
		filters.Status = &status
	}
	if v := r.URL.Query().Get("plan"); v != "" {
		filters.Plan = &v
	}

	licenses, total, err := s.store.ListLicenses(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"licenses": licenses,
		"total":    total,
	})
}

// HandleCreateLicense issues a license to an organization
func (s *RESTServer) HandleCreateLicense(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if !claims.IsSuperAdmin() {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	var req struct {
		OrganizationID int64    `json:"organization_id" validate:"required"`
		Plan           string   `json:"plan" validate:"required"`
		Status         string   `json:"status" validate:"oneof=active suspended trial"`
		MaxCameras     int      `json:"max_cameras" validate:"min=0"`
		MaxEdgeServers int      `json:"max_edge_servers" validate:"min=0"`
		Modules        []string `json:"modules"`
		TrialDays      int      `json:"trial_days" validate:"min=0"`
		ExpiresAt      *string  `json:"expires_at"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if _, err := s.store.GetOrganization(r.Context(), req.OrganizationID); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "unknown organization")
		return
	}

	key, err := crypto.GenerateLicenseKey()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate license key")
		return
	}

	status := models.LicenseStatus(req.Status)
	if status == "" {
		status = models.LicenseStatusActive
	}

	lic := &models.License{
		OrgModel:       models.OrgModel{OrganizationID: req.OrganizationID},
		Plan:           req.Plan,
		LicenseKey:     key,
		Status:         status,
		MaxCameras:     req.MaxCameras,
		MaxEdgeServers: req.MaxEdgeServers,
		Modules:        req.Modules,
	}

	now := time.Now()
	if status == models.LicenseStatusActive {
		lic.ActivatedAt = &now
	}
	if status == models.LicenseStatusTrial && req.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, req.TrialDays)
		lic.TrialEndsAt = &trialEnd
	}
	if req.ExpiresAt != nil {
		expires, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, "invalid expires_at")
			return
		}
		lic.ExpiresAt = &expires
	}

	if err := s.store.CreateLicense(r.Context(), lic); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().
		Int64("license_id", lic.ID).
		Int64("organization_id", lic.OrganizationID).
		Str("plan", lic.Plan).
		Msg("License issued")

	s.respondJSON(w, http.StatusCreated, lic)
}

// HandleGetLicense gets a license
func (s *RESTServer) HandleGetLicense(w http.ResponseWriter, r *http.Request) {
	lic, ok := s.licenseForRequest(w, r)
	if !ok {
		return
	}

	s.respondJSON(w, http.StatusOK, lic)
}

// HandleUpdateLicense updates a license. A license_id change on the
// edge-server side goes through bind/unbind; here only quota fields,
// modules and expiry move.
func (s *RESTServer) HandleUpdateLicense(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if !claims.IsSuperAdmin() {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	lic, ok := s.licenseForRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Plan           *string   `json:"plan"`
		MaxCameras     *int      `json:"max_cameras"`
		MaxEdgeServers *int      `json:"max_edge_servers"`
		Modules        *[]string `json:"modules"`
		ExpiresAt      *string   `json:"expires_at"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Plan != nil {
		lic.Plan = *req.Plan
	}
	if req.MaxCameras != nil {
		lic.MaxCameras = *req.MaxCameras
	}
	if req.MaxEdgeServers != nil {
		lic.MaxEdgeServers = *req.MaxEdgeServers
	}
	if req.Modules != nil {
		lic.Modules = *req.Modules
	}
	if req.ExpiresAt != nil {
		expires, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, "invalid expires_at")
			return
		}
		lic.ExpiresAt = &expires
	}

	if err := s.store.UpdateLicense(r.Context(), lic); err != nil {
		s.respondStorageError(w, err, "license")
		return
	}

	s.respondJSON(w, http.StatusOK, lic)
}

// HandleDeleteLicense deletes a license, releasing any binding
func (s *RESTServer) HandleDeleteLicense(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if !claims.IsSuperAdmin() {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	lic, ok := s.licenseForRequest(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteLicense(r.Context(), lic.ID); err != nil {
		s.respondStorageError(w, err, "license")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleActivateLicense activates a suspended or trial license
func (s *RESTServer) HandleActivateLicense(w http.ResponseWriter, r *http.Request) {
	s.transitionLicense(w, r, models.LicenseStatusActive)
}

// HandleSuspendLicense suspends a license. The binding survives so a
// renewal puts the edge server straight back in service.
func (s *RESTServer) HandleSuspendLicense(w http.ResponseWriter, r *http.Request) {
	s.transitionLicense(w, r, models.LicenseStatusSuspended)
}

func (s *RESTServer) transitionLicense(w http.ResponseWriter, r *http.Request, target models.LicenseStatus) {
	claims, _ := claimsFromContext(r.Context())
	if !claims.IsSuperAdmin() {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	lic, ok := s.licenseForRequest(w, r)
	if !ok {
		return
	}

	lic.Status = target
	if target == models.LicenseStatusActive && lic.ActivatedAt == nil {
		now := time.Now()
		lic.ActivatedAt = &now
	}

	if err := s.store.UpdateLicense(r.Context(), lic); err != nil {
		s.respondStorageError(w, err, "license")
		return
	}

	log.Info().
		Int64("license_id", lic.ID).
		Str("status", string(target)).
		Msg("License status changed")

	s.respondJSON(w, http.StatusOK, lic)
}

// HandleRenewLicense extends a license's expiry and reactivates it
func (s *RESTServer) HandleRenewLicense(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if !claims.IsSuperAdmin() {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	lic, ok := s.licenseForRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Months int `json:"months" validate:"required,min=1,max=60"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	base := time.Now()
	if lic.ExpiresAt != nil && lic.ExpiresAt.After(base) {
		base = *lic.ExpiresAt
	}
	expires := base.AddDate(0, req.Months, 0)
	lic.ExpiresAt = &expires
	lic.Status = models.LicenseStatusActive
	if lic.ActivatedAt == nil {
		now := time.Now()
		lic.ActivatedAt = &now
	}

	if err := s.store.UpdateLicense(r.Context(), lic); err != nil {
		s.respondStorageError(w, err, "license")
		return
	}

	log.Info().
		Int64("license_id", lic.ID).
		Int("months", req.Months).
		Time("expires_at", expires).
		Msg("License renewed")

	s.respondJSON(w, http.StatusOK, lic)
}

// HandleBindLicense binds a license to an edge server. Strict: an
// occupied side on either end is a conflict, never an implicit rebind.
func (s *RESTServer) HandleBindLicense(w http.ResponseWriter, r *http.Request) {
	lic, ok := s.licenseForRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		EdgeServerID int64 `json:"edge_server_id" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.binding.Bind(r.Context(), lic.ID, req.EdgeServerID); err != nil {
		switch {
		case errors.Is(err, license.ErrAlreadyBound):
			s.respondError(w, http.StatusConflict, "license already bound")
		case errors.Is(err, license.ErrWrongOrganization):
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, license.ErrLicenseInactive):
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "edge server not found")
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	lic, err := s.store.GetLicense(r.Context(), lic.ID)
	if err != nil {
		s.respondStorageError(w, err, "license")
		return
	}
	s.respondJSON(w, http.StatusOK, lic)
}

// HandleRebindLicense moves a license to a new edge server, displacing
// whatever either side currently holds
func (s *RESTServer) HandleRebindLicense(w http.ResponseWriter, r *http.Request) {
	lic, ok := s.licenseForRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		EdgeServerID int64 `json:"edge_server_id" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.binding.Rebind(r.Context(), lic.ID, req.EdgeServerID); err != nil {
		switch {
		case errors.Is(err, license.ErrWrongOrganization), errors.Is(err, license.ErrLicenseInactive):
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "edge server not found")
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	lic, err := s.store.GetLicense(r.Context(), lic.ID)
	if err != nil {
		s.respondStorageError(w, err, "license")
		return
	}
	s.respondJSON(w, http.StatusOK, lic)
}

// HandleUnbindLicense releases a license from its edge server
func (s *RESTServer) HandleUnbindLicense(w http.ResponseWriter, r *http.Request) {
	lic, ok := s.licenseForRequest(w, r)
	if !ok {
		return
	}

	if err := s.binding.Unbind(r.Context(), lic.ID); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	lic, err := s.store.GetLicense(r.Context(), lic.ID)
	if err != nil {
		s.respondStorageError(w, err, "license")
		return
	}
	s.respondJSON(w, http.StatusOK, lic)
}

// licenseForRequest loads the license addressed by the request and
// enforces organization scoping
func (s *RESTServer) licenseForRequest(w http.ResponseWriter, r *http.Request) (*models.License, bool) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid license id")
		return nil, false
	}

	lic, err := s.store.GetLicense(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "license")
		return nil, false
	}

	claims, _ := claimsFromContext(r.Context())
	if !canAccessOrg(claims, lic.OrganizationID) {
		s.respondError(w, http.StatusNotFound, "license not found")
		return nil, false
	}

	return lic, true
}
