package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xside/xside-server/internal/models"
)

// CreateModule creates a video module
func (s *PostgresStore) CreateModule(ctx context.Context, module *models.VideoModule) error {
	if module.ID == uuid.Nil {
		module.ID = uuid.New()
	}
	now := time.Now()
	if module.CreatedAt.IsZero() {
		module.CreatedAt = now
	}
	module.UpdatedAt = now

	query := `
		INSERT INTO video_modules (id, created_at, updated_at, user_id, name, phone)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.getDB().ExecContext(ctx, query,
		module.ID, module.CreatedAt, module.UpdatedAt,
		module.UserID, module.Name, module.Phone,
	)
	return mapError(err)
}

// GetModuleByUser gets the video module bound to a user
func (s *PostgresStore) GetModuleByUser(ctx context.Context, userID uuid.UUID) (*models.VideoModule, error) {
	query := `
		SELECT id, created_at, updated_at, user_id, name, phone
		FROM video_modules WHERE user_id = $1`

	module := &models.VideoModule{}
	err := s.getDB().QueryRowContext(ctx, query, userID).Scan(
		&module.ID, &module.CreatedAt, &module.UpdatedAt,
		&module.UserID, &module.Name, &module.Phone,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return module, nil
}

// CreateLog creates a telemetry log row
func (s *PostgresStore) CreateLog(ctx context.Context, log *models.Log) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	point, err := models.GeometryJSON(log.Point)
	if err != nil {
		return ErrInvalidData
	}

	query := `
		INSERT INTO logs (id, created_at, module_id, timestamp, point, event, item_file_id, data)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_GeomFromGeoJSON($5), 4326), $6, $7, $8)`

	_, err = s.getDB().ExecContext(ctx, query,
		log.ID, log.CreatedAt, log.ModuleID, log.Timestamp,
		string(point), log.Event, log.ItemFileID, log.Data,
	)
	return mapError(err)
}

// ListLogs lists telemetry logs with filters, newest first
func (s *PostgresStore) ListLogs(ctx context.Context, filters LogFilters, limit, offset int) ([]*models.Log, int64, error) {
	query := "SELECT COUNT(*) FROM logs l WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.ModuleID != nil {
		argCount++
		query += fmt.Sprintf(" AND l.module_id = $%d", argCount)
		args = append(args, *filters.ModuleID)
	}

	if filters.ItemFileID != nil {
		argCount++
		query += fmt.Sprintf(" AND l.item_file_id = $%d", argCount)
		args = append(args, *filters.ItemFileID)
	}

	if filters.Event != nil {
		argCount++
		query += fmt.Sprintf(" AND l.event = $%d", argCount)
		args = append(args, *filters.Event)
	}

	if filters.StartTime != nil {
		argCount++
		query += fmt.Sprintf(" AND l.timestamp >= $%d", argCount)
		args = append(args, *filters.StartTime)
	}

	if filters.EndTime != nil {
		argCount++
		query += fmt.Sprintf(" AND l.timestamp <= $%d", argCount)
		args = append(args, *filters.EndTime)
	}

	var count int64
	if err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return nil, 0, mapError(err)
	}

	selectQuery := strings.Replace(query, "SELECT COUNT(*)",
		`SELECT l.id, l.created_at, l.module_id, l.timestamp, ST_AsGeoJSON(l.point),
		        l.event, l.item_file_id, l.data, f.path`, 1)
	selectQuery = strings.Replace(selectQuery, "FROM logs l",
		"FROM logs l LEFT JOIN item_files f ON f.id = l.item_file_id", 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY l.timestamp DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var logs []*models.Log
	for rows.Next() {
		log := &models.Log{}
		var point []byte

		err := rows.Scan(
			&log.ID, &log.CreatedAt, &log.ModuleID, &log.Timestamp,
			&point, &log.Event, &log.ItemFileID, &log.Data, &log.ItemFilePath,
		)
		if err != nil {
			return nil, 0, err
		}

		p, err := models.PointFromGeoJSON(point)
		if err != nil {
			return nil, 0, ErrInvalidData
		}
		log.Point = p

		logs = append(logs, log)
	}

	return logs, count, rows.Err()
}
