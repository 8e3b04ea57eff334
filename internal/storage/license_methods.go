package storage

import (
	"context"
	"time"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

// ========== License Methods ==========

const licenseColumns = `id, created_at, updated_at, organization_id, plan,
        license_key, status, edge_server_id, max_cameras, max_edge_servers,
        modules, trial_ends_at, activated_at, expires_at`

func scanLicense(row interface{ Scan(...interface{}) error }) (*models.License, error) {
	l := &models.License{}
	err := row.Scan(
		&l.ID, &l.CreatedAt, &l.UpdatedAt, &l.OrganizationID, &l.Plan,
		&l.LicenseKey, &l.Status, &l.EdgeServerID, &l.MaxCameras,
		&l.MaxEdgeServers, &l.Modules, &l.TrialEndsAt, &l.ActivatedAt, &l.ExpiresAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return l, nil
}

// CreateLicense creates a new license
func (s *PostgresStore) CreateLicense(ctx context.Context, license *models.License) error {
	now := time.Now()
	license.CreatedAt = now
	license.UpdatedAt = now

	query := `
        INSERT INTO licenses (
            created_at, updated_at, organization_id, plan, license_key, status,
            edge_server_id, max_cameras, max_edge_servers, modules,
            trial_ends_at, activated_at, expires_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id`

	err := s.getDB().QueryRowContext(ctx, query,
		license.CreatedAt, license.UpdatedAt, license.OrganizationID,
		license.Plan, license.LicenseKey, license.Status, license.EdgeServerID,
		license.MaxCameras, license.MaxEdgeServers, license.Modules,
		license.TrialEndsAt, license.ActivatedAt, license.ExpiresAt,
	).Scan(&license.ID)

	return mapError(err)
}

// GetLicense gets a license by id
func (s *PostgresStore) GetLicense(ctx context.Context, id int64) (*models.License, error) {
	query := "SELECT " + licenseColumns + " FROM licenses WHERE id = $1 AND deleted_at IS NULL"
	return scanLicense(s.getDB().QueryRowContext(ctx, query, id))
}

// GetLicenseForUpdate gets a license by id, taking a row lock inside a transaction
func (s *PostgresStore) GetLicenseForUpdate(ctx context.Context, id int64) (*models.License, error) {
	query := s.forUpdate("SELECT " + licenseColumns + " FROM licenses WHERE id = $1 AND deleted_at IS NULL")
	return scanLicense(s.getDB().QueryRowContext(ctx, query, id))
}

// GetLicenseByKey gets a license by its unique key
func (s *PostgresStore) GetLicenseByKey(ctx context.Context, key string) (*models.License, error) {
	query := "SELECT " + licenseColumns + " FROM licenses WHERE license_key = $1 AND deleted_at IS NULL"
	return scanLicense(s.getDB().QueryRowContext(ctx, query, key))
}

// GetLicenseByEdgeServer gets the license bound to an edge server
func (s *PostgresStore) GetLicenseByEdgeServer(ctx context.Context, edgeServerID int64) (*models.License, error) {
	query := s.forUpdate("SELECT " + licenseColumns + " FROM licenses WHERE edge_server_id = $1 AND deleted_at IS NULL")
	return scanLicense(s.getDB().QueryRowContext(ctx, query, edgeServerID))
}

// FirstUnboundActiveLicense returns the oldest active unbound license of
// the organization. Selection order is id ascending so auto-linking is
// deterministic.
func (s *PostgresStore) FirstUnboundActiveLicense(ctx context.Context, organizationID int64) (*models.License, error) {
	query := s.forUpdate("SELECT " + licenseColumns + ` FROM licenses
        WHERE organization_id = $1 AND status = 'active'
          AND edge_server_id IS NULL AND deleted_at IS NULL
        ORDER BY id ASC
        LIMIT 1`)
	return scanLicense(s.getDB().QueryRowContext(ctx, query, organizationID))
}

// ListActiveLicenses lists all active licenses of an organization
func (s *PostgresStore) ListActiveLicenses(ctx context.Context, organizationID int64) ([]*models.License, error) {
	query := "SELECT " + licenseColumns + ` FROM licenses
        WHERE organization_id = $1 AND status = 'active' AND deleted_at IS NULL
        ORDER BY id ASC`

	rows, err := s.getDB().QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var licenses []*models.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, l)
	}

	return licenses, nil
}

// UpdateLicense updates a license
func (s *PostgresStore) UpdateLicense(ctx context.Context, license *models.License) error {
	license.UpdatedAt = time.Now()

	query := `
        UPDATE licenses SET
            updated_at = $2, plan = $3, license_key = $4, status = $5,
            edge_server_id = $6, max_cameras = $7, max_edge_servers = $8,
            modules = $9, trial_ends_at = $10, activated_at = $11, expires_at = $12
        WHERE id = $1 AND deleted_at IS NULL`

	result, err := s.getDB().ExecContext(ctx, query,
		license.ID, license.UpdatedAt, license.Plan, license.LicenseKey,
		license.Status, license.EdgeServerID, license.MaxCameras,
		license.MaxEdgeServers, license.Modules, license.TrialEndsAt,
		license.ActivatedAt, license.ExpiresAt,
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

// ExpireLicenses marks overdue licenses expired. Active licenses get
// the grace period past expires_at; trials expire at trial_ends_at.
func (s *PostgresStore) ExpireLicenses(ctx context.Context, grace time.Duration) ([]*models.License, error) {
	now := time.Now()

	query := `
        UPDATE licenses SET status = 'expired', updated_at = $1
        WHERE deleted_at IS NULL AND (
            (status = 'active' AND expires_at IS NOT NULL AND expires_at < $2)
            OR (status = 'trial' AND trial_ends_at IS NOT NULL AND trial_ends_at < $1)
        )
        RETURNING ` + licenseColumns

	rows, err := s.getDB().QueryContext(ctx, query, now, now.Add(-grace))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var licenses []*models.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, l)
	}

	return licenses, rows.Err()
}

// SetLicenseEdgeServer sets or clears the edge server a license is bound to
func (s *PostgresStore) SetLicenseEdgeServer(ctx context.Context, licenseID int64, edgeServerID *int64) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE licenses SET edge_server_id = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL",
		licenseID, edgeServerID, time.Now(),
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

// DeleteLicense soft-deletes a license. The edge server binding is
// cleared; the edge server itself is never cascaded. Both statements run
// in one transaction when not already inside one, so the edge server can
// never keep pointing at a deleted license.
func (s *PostgresStore) DeleteLicense(ctx context.Context, id int64) error {
	if s.tx == nil {
		tx, err := s.BeginTx(ctx)
		if err != nil {
			return err
		}
		if err := tx.DeleteLicense(ctx, id); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}

	now := time.Now()

	result, err := s.getDB().ExecContext(ctx,
		"UPDATE licenses SET deleted_at = $2, edge_server_id = NULL WHERE id = $1 AND deleted_at IS NULL",
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

	_, err = s.getDB().ExecContext(ctx,
		"UPDATE edge_servers SET license_id = NULL, updated_at = $2 WHERE license_id = $1 AND deleted_at IS NULL",
		id, now,
	)

	return err
}

// ListLicenses lists licenses
func (s *PostgresStore) ListLicenses(ctx context.Context, filters LicenseFilters, limit, offset int) ([]*models.License, int64, error) {
	where := "deleted_at IS NULL"
	args := []interface{}{}
	idx := 1

	if filters.OrganizationID != nil {
		where += " AND organization_id = $" + itoa(idx)
		args = append(args, *filters.OrganizationID)
		idx++
	}
	if filters.Status != nil {
		where += " AND status = $" + itoa(idx)
		args = append(args, *filters.Status)
		idx++
	}
	if filters.Plan != nil {
		where += " AND plan = $" + itoa(idx)
		args = append(args, *filters.Plan)
		idx++
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM licenses WHERE "+where, args...,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + licenseColumns + " FROM licenses WHERE " + where +
		" ORDER BY created_at DESC LIMIT $" + itoa(idx) + " OFFSET $" + itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var licenses []*models.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, 0, err
		}
		licenses = append(licenses, l)
	}

	return licenses, count, nil
}
