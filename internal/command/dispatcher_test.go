package command

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/visionedge-cloud/internal/edgeauth"
	"github.com/visionedge/visionedge-cloud/internal/models"
)

func testEdge(t *testing.T, srv *httptest.Server) *models.EdgeServer {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return &models.EdgeServer{
		OrgModel:   models.OrgModel{OrganizationID: 1},
		EdgeID:     "edge-001",
		EdgeKey:    "edge_0123456789abcdef0123456789abcdef",
		EdgeSecret: "fedcba9876543210fedcba9876543210",
		Hostname:   u.Hostname(),
		Port:       port,
		Online:     true,
	}
}

func TestSendSignsRequest(t *testing.T) {
	var gotPath, gotKey, gotSig, gotTS string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get(edgeauth.HeaderKey)
		gotSig = r.Header.Get(edgeauth.HeaderSignature)
		gotTS = r.Header.Get(edgeauth.HeaderTimestamp)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	edge := testEdge(t, srv)
	d := NewDispatcher(5 * time.Second)

	res, err := d.Restart(context.Background(), edge)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(res.Body))

	assert.Equal(t, "/api/v1/commands/restart", gotPath)
	assert.Equal(t, edge.EdgeKey, gotKey)

	// the edge side can verify the request with the shared secret
	ts, err := strconv.ParseInt(gotTS, 10, 64)
	require.NoError(t, err)
	assert.True(t, edgeauth.Verify(edge.EdgeSecret, "POST", gotPath, ts, gotBody, gotSig))
}

func TestSendOffline(t *testing.T) {
	edge := &models.EdgeServer{
		EdgeKey:    "edge_x",
		EdgeSecret: "s",
		Hostname:   "example.invalid",
		Online:     false,
	}

	d := NewDispatcher(time.Second)
	_, err := d.Send(context.Background(), edge, "restart", nil)
	assert.ErrorIs(t, err, ErrEdgeOffline)
}

func TestSendNoAddress(t *testing.T) {
	edge := &models.EdgeServer{
		EdgeKey:    "edge_x",
		EdgeSecret: "s",
		Online:     true,
	}

	d := NewDispatcher(time.Second)
	_, err := d.Send(context.Background(), edge, "restart", nil)
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestSendNoCredentials(t *testing.T) {
	edge := &models.EdgeServer{
		Hostname: "example.invalid",
		Online:   true,
	}

	d := NewDispatcher(time.Second)
	_, err := d.Send(context.Background(), edge, "restart", nil)
	assert.ErrorIs(t, err, ErrNoCredentials)
}
