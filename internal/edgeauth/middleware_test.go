package edgeauth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
)

const (
	testEdgeKey    = "edge_0123456789abcdef0123456789abcdef"
	testEdgeSecret = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
)

func newTestMiddleware(t *testing.T) *Middleware {
	t.Helper()

	store := storage.NewMemoryStore()
	err := store.CreateEdgeServer(context.Background(), &models.EdgeServer{
		OrgModel:   models.OrgModel{OrganizationID: 1},
		EdgeID:     "edge-001",
		EdgeKey:    testEdgeKey,
		EdgeSecret: testEdgeSecret,
		Name:       "Warehouse",
	})
	require.NoError(t, err)

	return NewMiddleware(store, 300*time.Second)
}

func signedRequest(method, path string, body []byte, timestamp int64) *http.Request {
	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	r.Header.Set(HeaderKey, testEdgeKey)
	r.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	r.Header.Set(HeaderSignature, Sign(testEdgeSecret, method, path, timestamp, body))
	return r
}

func TestMiddlewareAcceptsSignedRequest(t *testing.T) {
	m := newTestMiddleware(t)
	body := []byte(`{"edge_id":"edge-001","version":"2.4.0"}`)

	var gotEdge *models.EdgeServer
	var gotBody []byte
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEdge, _ = EdgeFromContext(r.Context())
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, signedRequest("POST", "/api/v1/edge/heartbeat", body, time.Now().Unix()))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotEdge)
	assert.Equal(t, "edge-001", gotEdge.EdgeID)

	// the raw body must still be readable by the handler
	assert.Equal(t, body, gotBody)
}

func TestMiddlewareRejections(t *testing.T) {
	m := newTestMiddleware(t)
	body := []byte(`{"edge_id":"edge-001"}`)
	now := time.Now().Unix()

	tests := []struct {
		name    string
		request func() *http.Request
	}{
		{
			name: "missing headers",
			request: func() *http.Request {
				return httptest.NewRequest("POST", "/api/v1/edge/heartbeat", bytes.NewReader(body))
			},
		},
		{
			name: "malformed timestamp",
			request: func() *http.Request {
				r := signedRequest("POST", "/api/v1/edge/heartbeat", body, now)
				r.Header.Set(HeaderTimestamp, "yesterday")
				return r
			},
		},
		{
			name: "stale timestamp",
			request: func() *http.Request {
				return signedRequest("POST", "/api/v1/edge/heartbeat", body, now-400)
			},
		},
		{
			name: "future timestamp",
			request: func() *http.Request {
				return signedRequest("POST", "/api/v1/edge/heartbeat", body, now+400)
			},
		},
		{
			name: "unknown edge key",
			request: func() *http.Request {
				r := signedRequest("POST", "/api/v1/edge/heartbeat", body, now)
				r.Header.Set(HeaderKey, "edge_ffffffffffffffffffffffffffffffff")
				return r
			},
		},
		{
			name: "tampered body",
			request: func() *http.Request {
				r := signedRequest("POST", "/api/v1/edge/heartbeat", body, now)
				r.Body = io.NopCloser(bytes.NewReader([]byte(`{"edge_id":"edge-666"}`)))
				return r
			},
		},
		{
			name: "wrong signature",
			request: func() *http.Request {
				r := signedRequest("POST", "/api/v1/edge/heartbeat", body, now)
				r.Header.Set(HeaderSignature, Sign("wrong-secret", "POST", "/api/v1/edge/heartbeat", now, body))
				return r
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, tt.request())

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, called)

			// every rejection looks identical to the caller
			assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
		})
	}
}
