package storage

import (
	"context"
	"time"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

// ========== Event Methods ==========

// CreateEvent creates a new event
func (s *PostgresStore) CreateEvent(ctx context.Context, event *models.Event) error {
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	query := `
        INSERT INTO events (
            created_at, updated_at, organization_id, edge_server_id, edge_id,
            event_type, severity, occurred_at, meta
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id`

	err := s.getDB().QueryRowContext(ctx, query,
		event.CreatedAt, event.UpdatedAt, event.OrganizationID,
		event.EdgeServerID, event.EdgeID, event.EventType, event.Severity,
		event.OccurredAt, event.Meta,
	).Scan(&event.ID)

	return mapError(err)
}

// ListEvents lists events
func (s *PostgresStore) ListEvents(ctx context.Context, filters EventFilters, limit, offset int) ([]*models.Event, int64, error) {
	where := "deleted_at IS NULL"
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
	if filters.EventType != nil {
		where += " AND event_type = $" + itoa(idx)
		args = append(args, *filters.EventType)
		idx++
	}
	if filters.Severity != nil {
		where += " AND severity = $" + itoa(idx)
		args = append(args, *filters.Severity)
		idx++
	}
	if filters.StartTime != nil {
		where += " AND occurred_at >= $" + itoa(idx)
		args = append(args, *filters.StartTime)
		idx++
	}
	if filters.EndTime != nil {
		where += " AND occurred_at <= $" + itoa(idx)
		args = append(args, *filters.EndTime)
		idx++
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE "+where, args...,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, organization_id, edge_server_id,
               edge_id, event_type, severity, occurred_at, meta
        FROM events WHERE ` + where +
		" ORDER BY occurred_at DESC LIMIT $" + itoa(idx) + " OFFSET $" + itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e := &models.Event{}
		err := rows.Scan(
			&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.OrganizationID,
			&e.EdgeServerID, &e.EdgeID, &e.EventType, &e.Severity,
			&e.OccurredAt, &e.Meta,
		)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}

	return events, count, nil
}

// ========== Edge Server Log Methods ==========

// CreateEdgeServerLog creates a log entry for an edge server
func (s *PostgresStore) CreateEdgeServerLog(ctx context.Context, entry *models.EdgeServerLog) error {
	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	query := `
        INSERT INTO edge_server_logs (created_at, updated_at, edge_server_id, level, message, meta)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id`

	err := s.getDB().QueryRowContext(ctx, query,
		entry.CreatedAt, entry.UpdatedAt, entry.EdgeServerID, entry.Level,
		entry.Message, entry.Meta,
	).Scan(&entry.ID)

	return mapError(err)
}

// ListEdgeServerLogs lists log entries of an edge server
func (s *PostgresStore) ListEdgeServerLogs(ctx context.Context, edgeServerID int64, level string, limit, offset int) ([]*models.EdgeServerLog, int64, error) {
	where := "edge_server_id = $1 AND deleted_at IS NULL"
	args := []interface{}{edgeServerID}
	idx := 2

	if level != "" {
		where += " AND level = $" + itoa(idx)
		args = append(args, level)
		idx++
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edge_server_logs WHERE "+where, args...,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, edge_server_id, level, message, meta
        FROM edge_server_logs WHERE ` + where +
		" ORDER BY created_at DESC LIMIT $" + itoa(idx) + " OFFSET $" + itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*models.EdgeServerLog
	for rows.Next() {
		e := &models.EdgeServerLog{}
		err := rows.Scan(
			&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.EdgeServerID, &e.Level,
			&e.Message, &e.Meta,
		)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}

	return entries, count, nil
}
