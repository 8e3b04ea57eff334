package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/visionedge-cloud/internal/config"
	"github.com/visionedge/visionedge-cloud/internal/edgeauth"
	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
	"github.com/visionedge/visionedge-cloud/pkg/crypto"
)

const (
	testAdminEmail    = "admin@acme.example"
	testAdminPassword = "correct horse battery"
)

type testAPI struct {
	server *RESTServer
	store  *storage.MemoryStore
	org    *models.Organization
	token  string
}

// newTestAPI builds a server over the in-memory store with one tenant
// on the "starter" plan (1 edge server, 2 cameras) and a logged-in
// org admin.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = 24 * time.Hour
	cfg.Edge.ReplayWindow = 300 * time.Second
	cfg.Edge.CommandTimeout = 2 * time.Second

	store := storage.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreatePlan(ctx, &models.SubscriptionPlan{
		Name:           "starter",
		MaxCameras:     2,
		MaxEdgeServers: 1,
		IsActive:       true,
	}))

	org := &models.Organization{
		Name:             "Acme Retail",
		SubscriptionPlan: "starter",
		IsActive:         true,
	}
	require.NoError(t, store.CreateOrganization(ctx, org))

	hash, err := crypto.HashPassword(testAdminPassword)
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(ctx, &models.User{
		OrganizationID: &org.ID,
		Name:           "Acme Admin",
		Email:          testAdminEmail,
		PasswordHash:   hash,
		Role:           models.RoleOrgAdmin,
		IsActive:       true,
	}))

	api := &testAPI{
		server: NewRESTServer(cfg, store, nil),
		store:  store,
		org:    org,
	}
	api.token = api.login(t, testAdminEmail, testAdminPassword)
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	rec := httptest.NewRecorder()
	a.server.Router().ServeHTTP(rec, req)
	return rec
}

// doSigned issues an HMAC-signed device request the way an edge agent
// would.
func (a *testAPI) doSigned(t *testing.T, method, path, edgeKey, edgeSecret string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	now := time.Now().Unix()
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set(edgeauth.HeaderKey, edgeKey)
	req.Header.Set(edgeauth.HeaderTimestamp, strconv.FormatInt(now, 10))
	req.Header.Set(edgeauth.HeaderSignature, edgeauth.Sign(edgeSecret, method, path, now, payload))

	rec := httptest.NewRecorder()
	a.server.Router().ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

// registerEdge creates an edge server through the API and returns its
// record id plus the one-time credential pair.
func (a *testAPI) registerEdge(t *testing.T, edgeID string) (int64, string, string) {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/v1/edge-servers", map[string]interface{}{
		"edge_id": edgeID,
		"name":    "Box " + edgeID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		EdgeServer struct {
			ID int64 `json:"id"`
		} `json:"edge_server"`
		EdgeKey    string `json:"edge_key"`
		EdgeSecret string `json:"edge_secret"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.EdgeKey)
	require.NotEmpty(t, resp.EdgeSecret)
	return resp.EdgeServer.ID, resp.EdgeKey, resp.EdgeSecret
}

func (a *testAPI) seedLicense(t *testing.T, maxEdgeServers, maxCameras int) *models.License {
	t.Helper()

	key, err := crypto.GenerateLicenseKey()
	require.NoError(t, err)

	lic := &models.License{
		OrgModel:       models.OrgModel{OrganizationID: a.org.ID},
		Plan:           "starter",
		LicenseKey:     key,
		Status:         models.LicenseStatusActive,
		MaxCameras:     maxCameras,
		MaxEdgeServers: maxEdgeServers,
	}
	require.NoError(t, a.store.CreateLicense(context.Background(), lic))
	return lic
}

func TestLoginAndCurrentUser(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, testAdminEmail, user.Email)
	assert.Equal(t, models.RoleOrgAdmin, user.Role)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	api := newTestAPI(t)
	api.token = ""

	rec := api.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    testAdminEmail,
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	api.token = ""

	rec := api.do(t, http.MethodGet, "/api/v1/edge-servers", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// A tenant on a 1-edge-server plan registers one box, hits the quota on
// the second, then an active license raising the limit lets it through.
func TestEdgeServerQuotaLifecycle(t *testing.T) {
	api := newTestAPI(t)

	api.registerEdge(t, "edge-001")

	rec := api.do(t, http.MethodPost, "/api/v1/edge-servers", map[string]interface{}{
		"edge_id": "edge-002",
		"name":    "Box edge-002",
	})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	var quota struct {
		Error   string `json:"error"`
		Kind    string `json:"kind"`
		Current int    `json:"current"`
		Limit   int    `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quota))
	assert.Equal(t, "quota exceeded", quota.Error)
	assert.Equal(t, "edge_servers", quota.Kind)
	assert.Equal(t, 1, quota.Current)
	assert.Equal(t, 1, quota.Limit)

	api.seedLicense(t, 5, 0)

	rec = api.do(t, http.MethodPost, "/api/v1/edge-servers", map[string]interface{}{
		"edge_id": "edge-002",
		"name":    "Box edge-002",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCameraQuota(t *testing.T) {
	api := newTestAPI(t)

	for i := 1; i <= 2; i++ {
		rec := api.do(t, http.MethodPost, "/api/v1/cameras", map[string]interface{}{
			"camera_id": fmt.Sprintf("cam-%03d", i),
			"name":      fmt.Sprintf("Camera %d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := api.do(t, http.MethodPost, "/api/v1/cameras", map[string]interface{}{
		"camera_id": "cam-003",
		"name":      "Camera 3",
	})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	var quota struct {
		Kind    string `json:"kind"`
		Current int    `json:"current"`
		Limit   int    `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quota))
	assert.Equal(t, "cameras", quota.Kind)
	assert.Equal(t, 2, quota.Current)
	assert.Equal(t, 2, quota.Limit)
}

func TestHeartbeatAutoLinksLicense(t *testing.T) {
	api := newTestAPI(t)
	lic := api.seedLicense(t, 5, 0)
	edgeServerID, edgeKey, edgeSecret := api.registerEdge(t, "edge-001")

	rec := api.doSigned(t, http.MethodPost, "/api/v1/edges/heartbeat", edgeKey, edgeSecret, map[string]interface{}{
		"edge_id": "edge-001",
		"version": "2.4.1",
		"online":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		OK   bool `json:"ok"`
		Edge struct {
			ID             int64  `json:"id"`
			EdgeID         string `json:"edge_id"`
			OrganizationID int64  `json:"organization_id"`
			LicenseID      *int64 `json:"license_id"`
			Online         bool   `json:"online"`
			Version        string `json:"version"`
		} `json:"edge"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, edgeServerID, resp.Edge.ID)
	assert.Equal(t, "edge-001", resp.Edge.EdgeID)
	assert.Equal(t, api.org.ID, resp.Edge.OrganizationID)
	assert.True(t, resp.Edge.Online)
	assert.Equal(t, "2.4.1", resp.Edge.Version)
	require.NotNil(t, resp.Edge.LicenseID)
	assert.Equal(t, lic.ID, *resp.Edge.LicenseID)

	got, err := api.store.GetLicense(context.Background(), lic.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EdgeServerID)
	assert.Equal(t, edgeServerID, *got.EdgeServerID)
}

func TestHeartbeatUpdatesCameraStatus(t *testing.T) {
	api := newTestAPI(t)
	edgeServerID, edgeKey, edgeSecret := api.registerEdge(t, "edge-001")

	camera := &models.Camera{
		OrgModel:     models.OrgModel{OrganizationID: api.org.ID},
		CameraID:     "cam-001",
		EdgeServerID: &edgeServerID,
		Name:         "Entrance",
		Status:       models.CameraStatusOffline,
	}
	require.NoError(t, api.store.CreateCamera(context.Background(), camera))

	rec := api.doSigned(t, http.MethodPost, "/api/v1/edges/heartbeat", edgeKey, edgeSecret, map[string]interface{}{
		"edge_id": "edge-001",
		"online":  true,
		"cameras_status": map[string]string{
			"cam-001":  models.CameraStatusOnline,
			"cam-gone": models.CameraStatusOffline,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := api.store.GetCamera(context.Background(), camera.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CameraStatusOnline, got.Status)
}

func TestEdgeRoutesRejectUnsignedRequests(t *testing.T) {
	api := newTestAPI(t)
	_, edgeKey, edgeSecret := api.registerEdge(t, "edge-001")

	// no signature headers at all
	rec := httptest.NewRecorder()
	api.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/edges/heartbeat", bytes.NewReader(nil)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())

	// stale timestamp outside the replay window
	payload := []byte(`{"edge_id":"edge-001"}`)
	stale := time.Now().Add(-10 * time.Minute).Unix()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/edges/heartbeat", bytes.NewReader(payload))
	req.Header.Set(edgeauth.HeaderKey, edgeKey)
	req.Header.Set(edgeauth.HeaderTimestamp, strconv.FormatInt(stale, 10))
	req.Header.Set(edgeauth.HeaderSignature, edgeauth.Sign(edgeSecret, http.MethodPost, "/api/v1/edges/heartbeat", stale, payload))

	rec = httptest.NewRecorder()
	api.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestEdgeEventIngestion(t *testing.T) {
	api := newTestAPI(t)
	edgeServerID, edgeKey, edgeSecret := api.registerEdge(t, "edge-001")

	rec := api.doSigned(t, http.MethodPost, "/api/v1/edges/events", edgeKey, edgeSecret, map[string]interface{}{
		"event_type": "intrusion_detected",
		"severity":   "critical",
		"meta":       map[string]interface{}{"zone": "loading-dock"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "intrusion_detected", created.EventType)
	require.NotNil(t, created.EdgeServerID)
	assert.Equal(t, edgeServerID, *created.EdgeServerID)

	rec = api.do(t, http.MethodGet, "/api/v1/events?event_type=intrusion_detected", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Events []*models.Event `json:"events"`
		Total  int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Equal(t, 1, listed.Total)
	assert.Equal(t, "critical", listed.Events[0].Severity)
}

func TestEdgeListCameras(t *testing.T) {
	api := newTestAPI(t)
	edgeServerID, edgeKey, edgeSecret := api.registerEdge(t, "edge-001")

	require.NoError(t, api.store.CreateCamera(context.Background(), &models.Camera{
		OrgModel:     models.OrgModel{OrganizationID: api.org.ID},
		CameraID:     "cam-001",
		EdgeServerID: &edgeServerID,
		Name:         "Entrance",
		Status:       models.CameraStatusOnline,
	}))

	rec := api.doSigned(t, http.MethodGet, "/api/v1/edges/cameras", edgeKey, edgeSecret, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Cameras []*models.Camera `json:"cameras"`
		Count   int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "cam-001", resp.Cameras[0].CameraID)
}

func TestLicenseBindEndpoint(t *testing.T) {
	api := newTestAPI(t)
	lic := api.seedLicense(t, 5, 0)
	edgeServerID, _, _ := api.registerEdge(t, "edge-001")

	path := fmt.Sprintf("/api/v1/licenses/%d/bind", lic.ID)
	rec := api.do(t, http.MethodPost, path, map[string]interface{}{
		"edge_server_id": edgeServerID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// binding the same license again conflicts, even to the same edge
	rec = api.do(t, http.MethodPost, path, map[string]interface{}{
		"edge_server_id": edgeServerID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/licenses/%d/unbind", lic.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := api.store.GetLicense(context.Background(), lic.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EdgeServerID)
}

func TestEntitlementsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.seedLicense(t, 5, 10)

	rec := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/organizations/%d/entitlements", api.org.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Cameras struct {
			Limit     int  `json:"limit"`
			Unlimited bool `json:"unlimited"`
			Used      int  `json:"used"`
		} `json:"cameras"`
		EdgeServers struct {
			Limit     int  `json:"limit"`
			Unlimited bool `json:"unlimited"`
			Used      int  `json:"used"`
		} `json:"edge_servers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Cameras.Limit)
	assert.Equal(t, 5, resp.EdgeServers.Limit)
	assert.False(t, resp.Cameras.Unlimited)
}

func TestCrossTenantAccessHidden(t *testing.T) {
	api := newTestAPI(t)

	other := &models.Organization{Name: "Globex", IsActive: true}
	require.NoError(t, api.store.CreateOrganization(context.Background(), other))

	foreign := &models.EdgeServer{
		OrgModel: models.OrgModel{OrganizationID: other.ID},
		EdgeID:   "edge-globex",
		EdgeKey:  "edge_foreign",
		Name:     "Globex box",
	}
	require.NoError(t, api.store.CreateEdgeServer(context.Background(), foreign))

	rec := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/edge-servers/%d", foreign.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Replaying a captured request verbatim within the window still
// verifies; the test documents that the guard is the timestamp window,
// so mutating the payload after capture must fail.
func TestSignedRequestTamperDetected(t *testing.T) {
	api := newTestAPI(t)
	_, edgeKey, edgeSecret := api.registerEdge(t, "edge-001")

	payload := []byte(`{"edge_id":"edge-001","online":true}`)
	now := time.Now().Unix()
	signature := edgeauth.Sign(edgeSecret, http.MethodPost, "/api/v1/edges/heartbeat", now, payload)

	tampered := bytes.Replace(payload, []byte("edge-001"), []byte("edge-002"), 1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/edges/heartbeat", bytes.NewReader(tampered))
	req.Header.Set(edgeauth.HeaderKey, edgeKey)
	req.Header.Set(edgeauth.HeaderTimestamp, strconv.FormatInt(now, 10))
	req.Header.Set(edgeauth.HeaderSignature, signature)

	rec := httptest.NewRecorder()
	api.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
