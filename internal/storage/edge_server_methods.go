package storage

import (
	"context"
	"time"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

// ========== Edge Server Methods ==========

const edgeServerColumns = `id, created_at, updated_at, organization_id,
        license_id, edge_id, edge_key, edge_secret, name, location, notes,
        internal_ip, public_ip, hostname, port, use_https, version, online,
        last_seen_at, system_info`

func scanEdgeServer(row interface{ Scan(...interface{}) error }) (*models.EdgeServer, error) {
	e := &models.EdgeServer{}
	err := row.Scan(
		&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.OrganizationID, &e.LicenseID,
		&e.EdgeID, &e.EdgeKey, &e.EdgeSecret, &e.Name, &e.Location, &e.Notes,
		&e.InternalIP, &e.PublicIP, &e.Hostname, &e.Port, &e.UseHTTPS,
		&e.Version, &e.Online, &e.LastSeenAt, &e.SystemInfo,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

// CreateEdgeServer creates a new edge server
func (s *PostgresStore) CreateEdgeServer(ctx context.Context, edge *models.EdgeServer) error {
	now := time.Now()
	edge.CreatedAt = now
	edge.UpdatedAt = now
	if edge.Port == 0 {
		edge.Port = 8080
	}

	query := `
        INSERT INTO edge_servers (
            created_at, updated_at, organization_id, license_id, edge_id,
            edge_key, edge_secret, name, location, notes, internal_ip,
            public_ip, hostname, port, use_https, version, online,
            last_seen_at, system_info
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
            $16, $17, $18, $19
        ) RETURNING id`

	err := s.getDB().QueryRowContext(ctx, query,
		edge.CreatedAt, edge.UpdatedAt, edge.OrganizationID, edge.LicenseID,
		edge.EdgeID, edge.EdgeKey, edge.EdgeSecret, edge.Name, edge.Location,
		edge.Notes, edge.InternalIP, edge.PublicIP, edge.Hostname, edge.Port,
		edge.UseHTTPS, edge.Version, edge.Online, edge.LastSeenAt, edge.SystemInfo,
	).Scan(&edge.ID)

	return mapError(err)
}

// GetEdgeServer gets an edge server by id
func (s *PostgresStore) GetEdgeServer(ctx context.Context, id int64) (*models.EdgeServer, error) {
	query := "SELECT " + edgeServerColumns + " FROM edge_servers WHERE id = $1 AND deleted_at IS NULL"
	return scanEdgeServer(s.getDB().QueryRowContext(ctx, query, id))
}

// GetEdgeServerForUpdate gets an edge server by id, taking a row lock
// inside a transaction
func (s *PostgresStore) GetEdgeServerForUpdate(ctx context.Context, id int64) (*models.EdgeServer, error) {
	query := s.forUpdate("SELECT " + edgeServerColumns + " FROM edge_servers WHERE id = $1 AND deleted_at IS NULL")
	return scanEdgeServer(s.getDB().QueryRowContext(ctx, query, id))
}

// GetEdgeServerByEdgeID gets an edge server by its device-supplied identifier
func (s *PostgresStore) GetEdgeServerByEdgeID(ctx context.Context, edgeID string) (*models.EdgeServer, error) {
	query := "SELECT " + edgeServerColumns + " FROM edge_servers WHERE edge_id = $1 AND deleted_at IS NULL"
	return scanEdgeServer(s.getDB().QueryRowContext(ctx, query, edgeID))
}

// GetEdgeServerByKey gets an edge server by its HMAC public key.
// Served by the unique partial index on edge_key.
func (s *PostgresStore) GetEdgeServerByKey(ctx context.Context, edgeKey string) (*models.EdgeServer, error) {
	query := "SELECT " + edgeServerColumns + " FROM edge_servers WHERE edge_key = $1 AND deleted_at IS NULL"
	return scanEdgeServer(s.getDB().QueryRowContext(ctx, query, edgeKey))
}

// UpdateEdgeServer updates an edge server. organization_id, edge_key and
// edge_secret are immutable after creation and deliberately excluded.
// license_id is excluded too: the binding moves only through
// SetEdgeServerLicense/SetLicenseEdgeServer under their row locks, so a
// caller writing back a stale snapshot cannot clobber it.
func (s *PostgresStore) UpdateEdgeServer(ctx context.Context, edge *models.EdgeServer) error {
	edge.UpdatedAt = time.Now()

	query := `
        UPDATE edge_servers SET
            updated_at = $2, name = $3, location = $4, notes = $5,
            internal_ip = $6, public_ip = $7, hostname = $8, port = $9,
            use_https = $10, version = $11, online = $12,
            last_seen_at = $13, system_info = $14
        WHERE id = $1 AND deleted_at IS NULL`

	result, err := s.getDB().ExecContext(ctx, query,
		edge.ID, edge.UpdatedAt, edge.Name, edge.Location, edge.Notes,
		edge.InternalIP, edge.PublicIP, edge.Hostname, edge.Port,
		edge.UseHTTPS, edge.Version, edge.Online, edge.LastSeenAt, edge.SystemInfo,
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

// SetEdgeServerLicense sets or clears the license an edge server is bound to
func (s *PostgresStore) SetEdgeServerLicense(ctx context.Context, edgeServerID int64, licenseID *int64) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE edge_servers SET license_id = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL",
		edgeServerID, licenseID, time.Now(),
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

// DeleteEdgeServer soft-deletes an edge server, cascading to its cameras
// and logs and clearing any license binding. The multi-statement cascade
// runs in its own transaction when not already inside one, so a failure
// mid-sequence cannot leave the license pointing at a deleted row.
func (s *PostgresStore) DeleteEdgeServer(ctx context.Context, id int64) error {
	if s.tx == nil {
		tx, err := s.BeginTx(ctx)
		if err != nil {
			return err
		}
		if err := tx.DeleteEdgeServer(ctx, id); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}

	now := time.Now()

	result, err := s.getDB().ExecContext(ctx,
		"UPDATE edge_servers SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL",
		id, now,
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

	// The license survives edge server deletion; only the binding clears.
	if _, err := s.getDB().ExecContext(ctx,
		"UPDATE licenses SET edge_server_id = NULL, updated_at = $2 WHERE edge_server_id = $1 AND deleted_at IS NULL",
		id, now,
	); err != nil {
		return err
	}

	if _, err := s.getDB().ExecContext(ctx,
		"UPDATE cameras SET deleted_at = $2 WHERE edge_server_id = $1 AND deleted_at IS NULL",
		id, now,
	); err != nil {
		return err
	}

	_, err = s.getDB().ExecContext(ctx,
		"UPDATE edge_server_logs SET deleted_at = $2 WHERE edge_server_id = $1 AND deleted_at IS NULL",
		id, now,
	)

	return err
}

// ListEdgeServers lists edge servers
func (s *PostgresStore) ListEdgeServers(ctx context.Context, filters EdgeServerFilters, limit, offset int) ([]*models.EdgeServer, int64, error) {
	where := "deleted_at IS NULL"
	args := []interface{}{}
	idx := 1

	if filters.OrganizationID != nil {
		where += " AND organization_id = $" + itoa(idx)
		args = append(args, *filters.OrganizationID)
		idx++
	}
	if filters.Online != nil {
		where += " AND online = $" + itoa(idx)
		args = append(args, *filters.Online)
		idx++
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edge_servers WHERE "+where, args...,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + edgeServerColumns + " FROM edge_servers WHERE " + where +
		" ORDER BY last_seen_at DESC NULLS LAST LIMIT $" + itoa(idx) + " OFFSET $" + itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var edges []*models.EdgeServer
	for rows.Next() {
		e, err := scanEdgeServer(rows)
		if err != nil {
			return nil, 0, err
		}
		edges = append(edges, e)
	}

	return edges, count, nil
}

// MarkEdgeServersOffline flips edge servers whose last heartbeat is
// older than cutoff to offline
func (s *PostgresStore) MarkEdgeServersOffline(ctx context.Context, cutoff time.Time) ([]*models.EdgeServer, error) {
	query := `
        UPDATE edge_servers SET online = FALSE, updated_at = $2
        WHERE online AND deleted_at IS NULL
            AND (last_seen_at IS NULL OR last_seen_at < $1)
        RETURNING ` + edgeServerColumns

	rows, err := s.getDB().QueryContext(ctx, query, cutoff, time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []*models.EdgeServer
	for rows.Next() {
		e, err := scanEdgeServer(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}

	return edges, rows.Err()
}

// CountEdgeServers counts live edge servers of an organization
func (s *PostgresStore) CountEdgeServers(ctx context.Context, organizationID int64) (int, error) {
	var count int
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edge_servers WHERE organization_id = $1 AND deleted_at IS NULL",
		organizationID,
	).Scan(&count)
	return count, err
}

// EdgeServerStats returns total and online counts, optionally scoped to
// one organization
func (s *PostgresStore) EdgeServerStats(ctx context.Context, organizationID *int64) (int, int, error) {
	query := `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE online)
        FROM edge_servers
        WHERE deleted_at IS NULL`
	args := []interface{}{}

	if organizationID != nil {
		query += " AND organization_id = $1"
		args = append(args, *organizationID)
	}

	var total, online int
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&total, &online)
	return total, online, err
}
