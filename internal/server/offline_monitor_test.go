package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/visionedge-cloud/internal/models"
	"github.com/visionedge/visionedge-cloud/internal/storage"
)

func seedEdge(t *testing.T, store *storage.MemoryStore, edgeID string, online bool, lastSeen *time.Time) *models.EdgeServer {
	t.Helper()
	edge := &models.EdgeServer{
		OrgModel:   models.OrgModel{OrganizationID: 1},
		EdgeID:     edgeID,
		EdgeKey:    "edge_" + edgeID,
		Online:     online,
		LastSeenAt: lastSeen,
	}
	require.NoError(t, store.CreateEdgeServer(context.Background(), edge))
	return edge
}

func TestSweepMarksStaleEdgesOffline(t *testing.T) {
	store := storage.NewMemoryStore()
	fresh := time.Now().Add(-time.Minute)
	stale := time.Now().Add(-20 * time.Minute)

	alive := seedEdge(t, store, "alive", true, &fresh)
	dead := seedEdge(t, store, "dead", true, &stale)
	never := seedEdge(t, store, "never", true, nil)
	seedEdge(t, store, "already-off", false, &stale)

	monitor := NewOfflineMonitor(store, nil, 5*time.Minute)
	monitor.Sweep(context.Background())

	ctx := context.Background()
	got, err := store.GetEdgeServer(ctx, alive.ID)
	require.NoError(t, err)
	assert.True(t, got.Online)

	got, err = store.GetEdgeServer(ctx, dead.ID)
	require.NoError(t, err)
	assert.False(t, got.Online)

	got, err = store.GetEdgeServer(ctx, never.ID)
	require.NoError(t, err)
	assert.False(t, got.Online)
}

func TestSweepIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	stale := time.Now().Add(-20 * time.Minute)
	edge := seedEdge(t, store, "dead", true, &stale)

	monitor := NewOfflineMonitor(store, nil, 5*time.Minute)
	monitor.Sweep(context.Background())

	flipped, err := store.MarkEdgeServersOffline(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, flipped)

	got, err := store.GetEdgeServer(context.Background(), edge.ID)
	require.NoError(t, err)
	assert.False(t, got.Online)
}
