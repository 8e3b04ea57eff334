package storage

import (
	"context"
	"time"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

// ========== User Methods ==========

const userColumns = `id, created_at, updated_at, organization_id, name, email,
        password, phone, role, is_active, last_login`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.OrganizationID, &u.Name,
		&u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.IsActive, &u.LastLogin,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// CreateUser creates a new user
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
        INSERT INTO users (
            created_at, updated_at, organization_id, name, email, password,
            phone, role, is_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id`

	err := s.getDB().QueryRowContext(ctx, query,
		user.CreatedAt, user.UpdatedAt, user.OrganizationID, user.Name,
		user.Email, user.PasswordHash, user.Phone, user.Role, user.IsActive,
	).Scan(&user.ID)

	return mapError(err)
}

// GetUser gets a user by id
func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = $1 AND deleted_at IS NULL"
	return scanUser(s.getDB().QueryRowContext(ctx, query, id))
}

// GetUserByEmail gets a user by email
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE email = $1 AND deleted_at IS NULL"
	return scanUser(s.getDB().QueryRowContext(ctx, query, email))
}

// UpdateUser updates a user
func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
        UPDATE users SET
            updated_at = $2, organization_id = $3, name = $4, email = $5,
            password = $6, phone = $7, role = $8, is_active = $9, last_login = $10
        WHERE id = $1 AND deleted_at IS NULL`

	result, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.UpdatedAt, user.OrganizationID, user.Name, user.Email,
		user.PasswordHash, user.Phone, user.Role, user.IsActive, user.LastLogin,
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

// DeleteUser soft-deletes a user
func (s *PostgresStore) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE users SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL",
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

// ListUsers lists users
func (s *PostgresStore) ListUsers(ctx context.Context, organizationID *int64, limit, offset int) ([]*models.User, int64, error) {
	where := "deleted_at IS NULL"
	args := []interface{}{}
	idx := 1

	if organizationID != nil {
		where += " AND organization_id = $" + itoa(idx)
		args = append(args, *organizationID)
		idx++
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE "+where, args...,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + userColumns + " FROM users WHERE " + where +
		" ORDER BY created_at DESC LIMIT $" + itoa(idx) + " OFFSET $" + itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}

	return users, count, nil
}
