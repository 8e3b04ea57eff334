package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/entitlement"
	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
	"github.com/visionedge/visionedge-cloud/pkg/crypto"
)

// HandleHealth is the health check endpoint
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"name":    s.config.Server.Name,
		"version": s.config.Server.Version,
	})
}

// ========== Auth handlers ==========

// HandleLogin handles operator login
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !user.IsActive {
		s.respondError(w, http.StatusForbidden, "account is disabled")
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(user)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to record last login")
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// HandleRefresh handles token refresh
func (s *RESTServer) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := s.auth.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil || !user.IsActive {
		s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(user)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// HandleGetCurrentUser gets the authenticated operator
func (s *RESTServer) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// ========== User handlers ==========

// HandleListUsers lists users
func (s *RESTServer) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	limit, offset := pagination(r)

	users, total, err := s.store.ListUsers(r.Context(), orgFilter(claims), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
	})
}

// HandleCreateUser creates a user
func (s *RESTServer) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	var req struct {
		Name           string `json:"name" validate:"required,max=200"`
		Email          string `json:"email" validate:"required,email"`
		Password       string `json:"password" validate:"required,min=8"`
		Phone          string `json:"phone"`
		Role           string `json:"role" validate:"required,oneof=org_admin org_viewer super_admin"`
		OrganizationID *int64 `json:"organization_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// only super admins create users outside their own organization or
	// grant super admin
	if !claims.IsSuperAdmin() {
		if req.Role == models.RoleSuperAdmin {
			s.respondError(w, http.StatusForbidden, "insufficient privileges")
			return
		}
		req.OrganizationID = claims.OrganizationID
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := &models.User{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Email:          req.Email,
		PasswordHash:   hash,
		Phone:          req.Phone,
		Role:           req.Role,
		IsActive:       true,
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "email already in use")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, user)
}

// HandleGetUser gets a user
func (s *RESTServer) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "user")
		return
	}

	if user.OrganizationID != nil && !canAccessOrg(claims, *user.OrganizationID) {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleUpdateUser updates a user
func (s *RESTServer) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "user")
		return
	}
	if user.OrganizationID != nil && !canAccessOrg(claims, *user.OrganizationID) {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}

	var req struct {
		Name     string  `json:"name"`
		Phone    string  `json:"phone"`
		Role     string  `json:"role" validate:"oneof=org_admin org_viewer super_admin"`
		Password string  `json:"password"`
		IsActive *bool   `json:"is_active"`
		Email    *string `json:"email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.Role != "" {
		if req.Role == models.RoleSuperAdmin && !claims.IsSuperAdmin() {
			s.respondError(w, http.StatusForbidden, "insufficient privileges")
			return
		}
		user.Role = req.Role
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != "" {
		hash, err := crypto.HashPassword(req.Password)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		user.PasswordHash = hash
	}

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "email already in use")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleDeleteUser deletes a user
func (s *RESTServer) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "user")
		return
	}
	if user.OrganizationID != nil && !canAccessOrg(claims, *user.OrganizationID) {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.respondStorageError(w, err, "user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ========== Organization handlers ==========

// HandleListOrganizations lists organizations. Non-super-admins only
// see their own.
func (s *RESTServer) HandleListOrganizations(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	if !claims.IsSuperAdmin() {
		if claims.OrganizationID == nil {
			s.respondJSON(w, http.StatusOK, map[string]interface{}{
				"organizations": []*models.Organization{},
				"total":         0,
			})
			return
		}
		org, err := s.store.GetOrganization(r.Context(), *claims.OrganizationID)
		if err != nil {
			s.respondStorageError(w, err, "organization")
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"organizations": []*models.Organization{org},
			"total":         1,
		})
		return
	}

	limit, offset := pagination(r)
	orgs, total, err := s.store.ListOrganizations(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"organizations": orgs,
		"total":         total,
	})
}

// HandleCreateOrganization creates an organization
func (s *RESTServer) HandleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if !claims.IsSuperAdmin() {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	var req struct {
		Name             string `json:"name" validate:"required,min=2,max=200"`
		NameEn           string `json:"name_en"`
		Address          string `json:"address"`
		City             string `json:"city"`
		Phone            string `json:"phone"`
		Email            string `json:"email"`
		SubscriptionPlan string `json:"subscription_plan"`
		MaxCameras       int    `json:"max_cameras" validate:"min=0"`
		MaxEdgeServers   int    `json:"max_edge_servers" validate:"min=0"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if req.SubscriptionPlan != "" {
		if _, err := s.store.GetPlanByName(r.Context(), req.SubscriptionPlan); err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, "unknown subscription plan")
			return
		}
	}

	org := &models.Organization{
		Name:             req.Name,
		NameEn:           req.NameEn,
		Address:          req.Address,
		City:             req.City,
		Phone:            req.Phone,
		Email:            req.Email,
		SubscriptionPlan: req.SubscriptionPlan,
		MaxCameras:       req.MaxCameras,
		MaxEdgeServers:   req.MaxEdgeServers,
		IsActive:         true,
	}

	if err := s.store.CreateOrganization(r.Context(), org); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, org)
}

// HandleGetOrganization gets an organization
func (s *RESTServer) HandleGetOrganization(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	if !canAccessOrg(claims, id) {
		s.respondError(w, http.StatusNotFound, "organization not found")
		return
	}

	org, err := s.store.GetOrganization(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "organization")
		return
	}

	s.respondJSON(w, http.StatusOK, org)
}

// HandleUpdateOrganization updates an organization
func (s *RESTServer) HandleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	if !canAccessOrg(claims, id) {
		s.respondError(w, http.StatusNotFound, "organization not found")
		return
	}

	org, err := s.store.GetOrganization(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "organization")
		return
	}

	var req struct {
		Name             *string `json:"name"`
		NameEn           *string `json:"name_en"`
		Address          *string `json:"address"`
		City             *string `json:"city"`
		Phone            *string `json:"phone"`
		Email            *string `json:"email"`
		SubscriptionPlan *string `json:"subscription_plan"`
		MaxCameras       *int    `json:"max_cameras"`
		MaxEdgeServers   *int    `json:"max_edge_servers"`
		IsActive         *bool   `json:"is_active"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		org.Name = *req.Name
	}
	if req.NameEn != nil {
		org.NameEn = *req.NameEn
	}
	if req.Address != nil {
		org.Address = *req.Address
	}
	if req.City != nil {
		org.City = *req.City
	}
	if req.Phone != nil {
		org.Phone = *req.Phone
	}
	if req.Email != nil {
		org.Email = *req.Email
	}

	// plan and limit changes affect entitlements; super admin only
	if req.SubscriptionPlan != nil || req.MaxCameras != nil || req.MaxEdgeServers != nil || req.IsActive != nil {
		if !claims.IsSuperAdmin() {
			s.respondError(w, http.StatusForbidden, "insufficient privileges")
			return
		}
		if req.SubscriptionPlan != nil {
			if *req.SubscriptionPlan != "" {
				if _, err := s.store.GetPlanByName(r.Context(), *req.SubscriptionPlan); err != nil {
					s.respondError(w, http.StatusUnprocessableEntity, "unknown subscription plan")
					return
				}
			}
			org.SubscriptionPlan = *req.SubscriptionPlan
		}
		if req.MaxCameras != nil {
			org.MaxCameras = *req.MaxCameras
		}
		if req.MaxEdgeServers != nil {
			org.MaxEdgeServers = *req.MaxEdgeServers
		}
		if req.IsActive != nil {
			org.IsActive = *req.IsActive
		}
	}

	if err := s.store.UpdateOrganization(r.Context(), org); err != nil {
		s.respondStorageError(w, err, "organization")
		return
	}

	s.respondJSON(w, http.StatusOK, org)
}

// HandleDeleteOrganization deletes an organization and everything under
// it
func (s *RESTServer) HandleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if !claims.IsSuperAdmin() {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	if err := s.store.DeleteOrganization(r.Context(), id); err != nil {
		s.respondStorageError(w, err, "organization")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGetEntitlements reports the organization's resolved quotas and
// current usage
func (s *RESTServer) HandleGetEntitlements(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid organization id")
		return
	}
	if !canAccessOrg(claims, id) {
		s.respondError(w, http.StatusNotFound, "organization not found")
		return
	}

	ctx := r.Context()

	cameraQuota, err := s.entitlement.ResolveQuota(ctx, id, storage.QuotaCameras)
	if err != nil {
		s.respondStorageError(w, err, "organization")
		return
	}
	edgeQuota, err := s.entitlement.ResolveQuota(ctx, id, storage.QuotaEdgeServers)
	if err != nil {
		s.respondStorageError(w, err, "organization")
		return
	}
	modules, err := s.entitlement.ResolveModules(ctx, id)
	if err != nil {
		s.respondStorageError(w, err, "organization")
		return
	}

	cameras, err := s.store.CountCameras(ctx, id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	edges, err := s.store.CountEdgeServers(ctx, id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"cameras":      quotaView(cameraQuota, cameras),
		"edge_servers": quotaView(edgeQuota, edges),
		"modules":      modules,
	})
}

func quotaView(q entitlement.Quota, used int) map[string]interface{} {
	v := map[string]interface{}{
		"used":      used,
		"unlimited": q.Unlimited,
	}
	if !q.Unlimited {
		v["limit"] = q.Limit
	}
	return v
}

// ========== Subscription plan handlers ==========

// HandleListPlans lists subscription plans
func (s *RESTServer) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	plans, total, err := s.store.ListPlans(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
		"total": total,
	})
}

// HandleCreatePlan creates a subscription plan
func (s *RESTServer) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if !claims.IsSuperAdmin() {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	var req struct {
		Name             string   `json:"name" validate:"required,min=2,max=100"`
		NameAr           string   `json:"name_ar"`
		MaxCameras       int      `json:"max_cameras" validate:"min=0"`
		MaxEdgeServers   int      `json:"max_edge_servers" validate:"min=0"`
		AvailableModules []string `json:"available_modules"`
		SmsQuota         int      `json:"sms_quota" validate:"min=0"`
		PriceMonthly     float64  `json:"price_monthly"`
		PriceYearly      float64  `json:"price_yearly"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	plan := &models.SubscriptionPlan{
		Name:             req.Name,
		NameAr:           req.NameAr,
		MaxCameras:       req.MaxCameras,
		MaxEdgeServers:   req.MaxEdgeServers,
		AvailableModules: req.AvailableModules,
		SmsQuota:         req.SmsQuota,
		PriceMonthly:     req.PriceMonthly,
		PriceYearly:      req.PriceYearly,
		IsActive:         true,
	}

	if err := s.store.CreatePlan(r.Context(), plan); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "plan name already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, plan)
}

// HandleGetPlan gets a subscription plan
func (s *RESTServer) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	plan, err := s.store.GetPlan(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "plan")
		return
	}

	s.respondJSON(w, http.StatusOK, plan)
}

// HandleUpdatePlan updates a subscription plan
func (s *RESTServer) HandleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if !claims.IsSuperAdmin() {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	plan, err := s.store.GetPlan(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "plan")
		return
	}

	var req struct {
		NameAr           *string   `json:"name_ar"`
		MaxCameras       *int      `json:"max_cameras"`
		MaxEdgeServers   *int      `json:"max_edge_servers"`
		AvailableModules *[]string `json:"available_modules"`
		SmsQuota         *int      `json:"sms_quota"`
		PriceMonthly     *float64  `json:"price_monthly"`
		PriceYearly      *float64  `json:"price_yearly"`
		IsActive         *bool     `json:"is_active"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.NameAr != nil {
		plan.NameAr = *req.NameAr
	}
	if req.MaxCameras != nil {
		plan.MaxCameras = *req.MaxCameras
	}
	if req.MaxEdgeServers != nil {
		plan.MaxEdgeServers = *req.MaxEdgeServers
	}
	if req.AvailableModules != nil {
		plan.AvailableModules = *req.AvailableModules
	}
	if req.SmsQuota != nil {
		plan.SmsQuota = *req.SmsQuota
	}
	if req.PriceMonthly != nil {
		plan.PriceMonthly = *req.PriceMonthly
	}
	if req.PriceYearly != nil {
		plan.PriceYearly = *req.PriceYearly
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}

	if err := s.store.UpdatePlan(r.Context(), plan); err != nil {
		s.respondStorageError(w, err, "plan")
		return
	}

	s.respondJSON(w, http.StatusOK, plan)
}

// HandleDeletePlan deletes a subscription plan
func (s *RESTServer) HandleDeletePlan(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if !claims.IsSuperAdmin() {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	id, err := parseID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	if err := s.store.DeletePlan(r.Context(), id); err != nil {
		s.respondStorageError(w, err, "plan")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ========== Helpers ==========

// parseID parses the {id} URL parameter
func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// parseInt64 parses a decimal query parameter value
func parseInt64(v string) (int64, error) {
	return strconv.ParseInt(v, 10, 64)
}

// pagination parses limit/offset query parameters
func pagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with an error body
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondStorageError maps storage errors to HTTP statuses
func (s *RESTServer) respondStorageError(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, resource+" not found")
	case errors.Is(err, storage.ErrDuplicateKey):
		s.respondError(w, http.StatusConflict, resource+" already exists")
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// respondQuotaError emits the 403 for quota violations, with current
// and limit for the operator
func (s *RESTServer) respondQuotaError(w http.ResponseWriter, qe *entitlement.QuotaExceededError) {
	s.respondJSON(w, http.StatusForbidden, map[string]interface{}{
		"error":   "quota exceeded",
		"kind":    string(qe.Kind),
		"current": qe.Current,
		"limit":   qe.Limit,
	})
}
