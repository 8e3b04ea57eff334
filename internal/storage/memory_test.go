package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

func seedBoundPair(t *testing.T, s *MemoryStore) (*models.License, *models.EdgeServer) {
	t.Helper()
	ctx := context.Background()

	edge := &models.EdgeServer{
		OrgModel: models.OrgModel{OrganizationID: 1},
		EdgeID:   "edge-001",
		EdgeKey:  "edge_001",
		Name:     "Box",
	}
	require.NoError(t, s.CreateEdgeServer(ctx, edge))

	lic := &models.License{
		OrgModel:   models.OrgModel{OrganizationID: 1},
		Plan:       "pro",
		LicenseKey: "VEL-MEMT-0000-0000-0001",
		Status:     models.LicenseStatusActive,
	}
	require.NoError(t, s.CreateLicense(ctx, lic))

	require.NoError(t, s.SetLicenseEdgeServer(ctx, lic.ID, &edge.ID))
	require.NoError(t, s.SetEdgeServerLicense(ctx, edge.ID, &lic.ID))
	return lic, edge
}

func TestDeleteEdgeServerReleasesLicense(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	lic, edge := seedBoundPair(t, s)

	require.NoError(t, s.DeleteEdgeServer(ctx, edge.ID))

	// the license survives and holds no link to the deleted row
	got, err := s.GetLicense(ctx, lic.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EdgeServerID)

	_, err = s.GetEdgeServer(ctx, edge.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteLicenseClearsEdgeLink(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	lic, edge := seedBoundPair(t, s)

	require.NoError(t, s.DeleteLicense(ctx, lic.ID))

	got, err := s.GetEdgeServer(ctx, edge.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LicenseID)

	_, err = s.GetLicense(ctx, lic.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRollbackDiscardsNestedMutations(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	edge := &models.EdgeServer{
		OrgModel: models.OrgModel{OrganizationID: 1},
		EdgeID:   "edge-001",
		EdgeKey:  "edge_001",
		SystemInfo: models.Variables{
			"disks": map[string]interface{}{"sda": "ok"},
		},
	}
	require.NoError(t, s.CreateEdgeServer(ctx, edge))

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)

	got, err := tx.GetEdgeServer(ctx, edge.ID)
	require.NoError(t, err)
	got.SystemInfo["disks"].(map[string]interface{})["sda"] = "failing"
	got.SystemInfo["load"] = 0.97
	require.NoError(t, tx.UpdateEdgeServer(ctx, got))
	require.NoError(t, tx.Rollback())

	after, err := s.GetEdgeServer(ctx, edge.ID)
	require.NoError(t, err)
	assert.Equal(t, "ok", after.SystemInfo["disks"].(map[string]interface{})["sda"])
	assert.NotContains(t, after.SystemInfo, "load")
}
