package storage

import (
	"context"
	"time"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

// ========== Organization Methods ==========

// CreateOrganization creates a new organization
func (s *PostgresStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	now := time.Now()
	org.CreatedAt = now
	org.UpdatedAt = now

	query := `
        INSERT INTO organizations (
            created_at, updated_at, name, name_en, address, city, phone, email,
            subscription_plan, max_cameras, max_edge_servers, is_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id`

	err := s.getDB().QueryRowContext(ctx, query,
		org.CreatedAt, org.UpdatedAt, org.Name, org.NameEn, org.Address,
		org.City, org.Phone, org.Email, org.SubscriptionPlan,
		org.MaxCameras, org.MaxEdgeServers, org.IsActive,
	).Scan(&org.ID)

	return mapError(err)
}

// GetOrganization gets an organization by id
func (s *PostgresStore) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	query := `
        SELECT id, created_at, updated_at, name, name_en, address, city, phone,
               email, subscription_plan, max_cameras, max_edge_servers, is_active
        FROM organizations
        WHERE id = $1 AND deleted_at IS NULL`

	org := &models.Organization{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.CreatedAt, &org.UpdatedAt, &org.Name, &org.NameEn,
		&org.Address, &org.City, &org.Phone, &org.Email,
		&org.SubscriptionPlan, &org.MaxCameras, &org.MaxEdgeServers, &org.IsActive,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return org, nil
}

// GetOrganizationForUpdate gets an organization by id, taking a row lock
// inside a transaction
func (s *PostgresStore) GetOrganizationForUpdate(ctx context.Context, id int64) (*models.Organization, error) {
	query := s.forUpdate(`
        SELECT id, created_at, updated_at, name, name_en, address, city, phone,
               email, subscription_plan, max_cameras, max_edge_servers, is_active
        FROM organizations
        WHERE id = $1 AND deleted_at IS NULL`)

	org := &models.Organization{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.CreatedAt, &org.UpdatedAt, &org.Name, &org.NameEn,
		&org.Address, &org.City, &org.Phone, &org.Email,
		&org.SubscriptionPlan, &org.MaxCameras, &org.MaxEdgeServers, &org.IsActive,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return org, nil
}

// UpdateOrganization updates an organization
func (s *PostgresStore) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now()

	query := `
        UPDATE organizations SET
            updated_at = $2, name = $3, name_en = $4, address = $5, city = $6,
            phone = $7, email = $8, subscription_plan = $9, max_cameras = $10,
            max_edge_servers = $11, is_active = $12
        WHERE id = $1 AND deleted_at IS NULL`

	result, err := s.getDB().ExecContext(ctx, query,
		org.ID, org.UpdatedAt, org.Name, org.NameEn, org.Address, org.City,
		org.Phone, org.Email, org.SubscriptionPlan, org.MaxCameras,
		org.MaxEdgeServers, org.IsActive,
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

// DeleteOrganization soft-deletes an organization and its children. The
// cascade runs in its own transaction when not already inside one.
func (s *PostgresStore) DeleteOrganization(ctx context.Context, id int64) error {
	if s.tx == nil {
		tx, err := s.BeginTx(ctx)
		if err != nil {
			return err
		}
		if err := tx.DeleteOrganization(ctx, id); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}

	now := time.Now()

	result, err := s.getDB().ExecContext(ctx,
		"UPDATE organizations SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL",
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

	// Cascade the soft delete to tenant-scoped children
	for _, q := range []string{
		"UPDATE licenses SET deleted_at = $2 WHERE organization_id = $1 AND deleted_at IS NULL",
		"UPDATE edge_servers SET deleted_at = $2 WHERE organization_id = $1 AND deleted_at IS NULL",
		"UPDATE cameras SET deleted_at = $2 WHERE organization_id = $1 AND deleted_at IS NULL",
	} {
		if _, err := s.getDB().ExecContext(ctx, q, id, now); err != nil {
			return err
		}
	}

	return nil
}

// ListOrganizations lists organizations
func (s *PostgresStore) ListOrganizations(ctx context.Context, limit, offset int) ([]*models.Organization, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM organizations WHERE deleted_at IS NULL",
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, name, name_en, address, city, phone,
               email, subscription_plan, max_cameras, max_edge_servers, is_active
        FROM organizations
        WHERE deleted_at IS NULL
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org := &models.Organization{}
		err := rows.Scan(
			&org.ID, &org.CreatedAt, &org.UpdatedAt, &org.Name, &org.NameEn,
			&org.Address, &org.City, &org.Phone, &org.Email,
			&org.SubscriptionPlan, &org.MaxCameras, &org.MaxEdgeServers, &org.IsActive,
		)
		if err != nil {
			return nil, 0, err
		}
		orgs = append(orgs, org)
	}

	return orgs, count, nil
}

// ========== Subscription Plan Methods ==========

// CreatePlan creates a new subscription plan
func (s *PostgresStore) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	query := `
        INSERT INTO subscription_plans (
            created_at, updated_at, name, name_ar, max_cameras, max_edge_servers,
            available_modules, sms_quota, price_monthly, price_yearly, is_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id`

	err := s.getDB().QueryRowContext(ctx, query,
		plan.CreatedAt, plan.UpdatedAt, plan.Name, plan.NameAr,
		plan.MaxCameras, plan.MaxEdgeServers, plan.AvailableModules,
		plan.SmsQuota, plan.PriceMonthly, plan.PriceYearly, plan.IsActive,
	).Scan(&plan.ID)

	return mapError(err)
}

const planColumns = `id, created_at, updated_at, name, name_ar, max_cameras,
        max_edge_servers, available_modules, sms_quota, price_monthly,
        price_yearly, is_active`

func scanPlan(row interface{ Scan(...interface{}) error }) (*models.SubscriptionPlan, error) {
	plan := &models.SubscriptionPlan{}
	err := row.Scan(
		&plan.ID, &plan.CreatedAt, &plan.UpdatedAt, &plan.Name, &plan.NameAr,
		&plan.MaxCameras, &plan.MaxEdgeServers, &plan.AvailableModules,
		&plan.SmsQuota, &plan.PriceMonthly, &plan.PriceYearly, &plan.IsActive,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return plan, nil
}

// GetPlan gets a subscription plan by id
func (s *PostgresStore) GetPlan(ctx context.Context, id int64) (*models.SubscriptionPlan, error) {
	query := "SELECT " + planColumns + " FROM subscription_plans WHERE id = $1 AND deleted_at IS NULL"
	return scanPlan(s.getDB().QueryRowContext(ctx, query, id))
}

// GetPlanByName gets a subscription plan by its unique name
func (s *PostgresStore) GetPlanByName(ctx context.Context, name string) (*models.SubscriptionPlan, error) {
	query := "SELECT " + planColumns + " FROM subscription_plans WHERE name = $1 AND deleted_at IS NULL"
	return scanPlan(s.getDB().QueryRowContext(ctx, query, name))
}

// UpdatePlan updates a subscription plan
func (s *PostgresStore) UpdatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	plan.UpdatedAt = time.Now()

	query := `
        UPDATE subscription_plans SET
            updated_at = $2, name = $3, name_ar = $4, max_cameras = $5,
            max_edge_servers = $6, available_modules = $7, sms_quota = $8,
            price_monthly = $9, price_yearly = $10, is_active = $11
        WHERE id = $1 AND deleted_at IS NULL`

	result, err := s.getDB().ExecContext(ctx, query,
		plan.ID, plan.UpdatedAt, plan.Name, plan.NameAr, plan.MaxCameras,
		plan.MaxEdgeServers, plan.AvailableModules, plan.SmsQuota,
		plan.PriceMonthly, plan.PriceYearly, plan.IsActive,
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

// DeletePlan soft-deletes a subscription plan
func (s *PostgresStore) DeletePlan(ctx context.Context, id int64) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE subscription_plans SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL",
		id, time.Now(),
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

// ListPlans lists subscription plans
func (s *PostgresStore) ListPlans(ctx context.Context, limit, offset int) ([]*models.SubscriptionPlan, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subscription_plans WHERE deleted_at IS NULL",
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + planColumns + ` FROM subscription_plans
        WHERE deleted_at IS NULL
        ORDER BY price_monthly ASC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var plans []*models.SubscriptionPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, 0, err
		}
		plans = append(plans, plan)
	}

	return plans, count, nil
}
