package storage

import (
	"context"
	"time"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

// ========== Camera Methods ==========

const cameraColumns = `id, created_at, updated_at, organization_id,
        edge_server_id, camera_id, name, location, rtsp_url, status, config`

func scanCamera(row interface{ Scan(...interface{}) error }) (*models.Camera, error) {
	c := &models.Camera{}
	err := row.Scan(
		&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.OrganizationID, &c.EdgeServerID,
		&c.CameraID, &c.Name, &c.Location, &c.RtspURL, &c.Status, &c.Config,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

// CreateCamera creates a new camera
func (s *PostgresStore) CreateCamera(ctx context.Context, camera *models.Camera) error {
	now := time.Now()
	camera.CreatedAt = now
	camera.UpdatedAt = now
	if camera.Status == "" {
		camera.Status = models.CameraStatusOffline
	}

	query := `
        INSERT INTO cameras (
            created_at, updated_at, organization_id, edge_server_id, camera_id,
            name, location, rtsp_url, status, config
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id`

	err := s.getDB().QueryRowContext(ctx, query,
		camera.CreatedAt, camera.UpdatedAt, camera.OrganizationID,
		camera.EdgeServerID, camera.CameraID, camera.Name, camera.Location,
		camera.RtspURL, camera.Status, camera.Config,
	).Scan(&camera.ID)

	return mapError(err)
}

// GetCamera gets a camera by id
func (s *PostgresStore) GetCamera(ctx context.Context, id int64) (*models.Camera, error) {
	query := "SELECT " + cameraColumns + " FROM cameras WHERE id = $1 AND deleted_at IS NULL"
	return scanCamera(s.getDB().QueryRowContext(ctx, query, id))
}

// UpdateCamera updates a camera
func (s *PostgresStore) UpdateCamera(ctx context.Context, camera *models.Camera) error {
	camera.UpdatedAt = time.Now()

	query := `
        UPDATE cameras SET
            updated_at = $2, edge_server_id = $3, camera_id = $4, name = $5,
            location = $6, rtsp_url = $7, status = $8, config = $9
        WHERE id = $1 AND deleted_at IS NULL`

	result, err := s.getDB().ExecContext(ctx, query,
		camera.ID, camera.UpdatedAt, camera.EdgeServerID, camera.CameraID,
		camera.Name, camera.Location, camera.RtspURL, camera.Status, camera.Config,
	)
	if err != nil {
		return mapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateCameraStatus updates the status of a camera reported by its edge
// server. Missing cameras are ignored by the caller.
func (s *PostgresStore) UpdateCameraStatus(ctx context.Context, edgeServerID int64, cameraID, status string) error {
	result, err := s.getDB().ExecContext(ctx, `
        UPDATE cameras SET status = $3, updated_at = $4
        WHERE edge_server_id = $1 AND camera_id = $2 AND deleted_at IS NULL`,
		edgeServerID, cameraID, status, time.Now(),
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteCamera soft-deletes a camera; it stops counting against quota
func (s *PostgresStore) DeleteCamera(ctx context.Context, id int64) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE cameras SET deleted_at = $2, status = $3 WHERE id = $1 AND deleted_at IS NULL",
		id, time.Now(), models.CameraStatusDeleted,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListCameras lists cameras
func (s *PostgresStore) ListCameras(ctx context.Context, filters CameraFilters, limit, offset int) ([]*models.Camera, int64, error) {
	where := "deleted_at IS NULL AND status != '" + models.CameraStatusDeleted + "'"
	args := []interface{}{}
	idx := 1

	if filters.OrganizationID != nil {
		where += " AND organization_id = $" + itoa(idx)
		args = append(args, *filters.OrganizationID)
		idx++
	}
	if filters.EdgeServerID != nil {
		where += " AND edge_server_id = $" + itoa(idx)
		args = append(args, *filters.EdgeServerID)
		idx++
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cameras WHERE "+where, args...,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + cameraColumns + " FROM cameras WHERE " + where +
		" ORDER BY created_at DESC LIMIT $" + itoa(idx) + " OFFSET $" + itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var cameras []*models.Camera
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, 0, err
		}
		cameras = append(cameras, c)
	}

	return cameras, count, nil
}

// ListCamerasForEdge lists all live cameras assigned to an edge server
func (s *PostgresStore) ListCamerasForEdge(ctx context.Context, edgeServerID int64) ([]*models.Camera, error) {
	query := "SELECT " + cameraColumns + ` FROM cameras
        WHERE edge_server_id = $1 AND deleted_at IS NULL AND status != $2
        ORDER BY camera_id ASC`

	rows, err := s.getDB().QueryContext(ctx, query, edgeServerID, models.CameraStatusDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []*models.Camera
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, c)
	}

	return cameras, nil
}

// CountCameras counts cameras of an organization that hold quota
func (s *PostgresStore) CountCameras(ctx context.Context, organizationID int64) (int, error) {
	var count int
	err := s.getDB().QueryRowContext(ctx, `
        SELECT COUNT(*) FROM cameras
        WHERE organization_id = $1 AND deleted_at IS NULL AND status != $2`,
		organizationID, models.CameraStatusDeleted,
	).Scan(&count)
	return count, err
}
