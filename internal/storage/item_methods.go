package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/xside/xside-server/internal/models"
)

// Geometry columns are exchanged as GeoJSON text so the spatial engine
// stays behind the driver.

// CreateItem creates an item
func (s *PostgresStore) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	areas, err := models.GeometryJSON(item.Areas)
	if err != nil {
		return ErrInvalidData
	}

	query := `
		INSERT INTO items (id, created_at, updated_at, client_id, name, areas, is_active, max_rate, max_daily_spend)
		VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_GeomFromGeoJSON($6), 4326), $7, $8, $9)`

	_, err = s.getDB().ExecContext(ctx, query,
		item.ID, item.CreatedAt, item.UpdatedAt,
		item.ClientID, item.Name, string(areas),
		item.IsActive, item.MaxRate, item.MaxDailySpend,
	)
	return mapError(err)
}

// GetItem gets an item by id with its client name joined in
func (s *PostgresStore) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	query := `
		SELECT i.id, i.created_at, i.updated_at, i.client_id, i.name,
		       ST_AsGeoJSON(i.areas), i.is_active, i.max_rate, i.max_daily_spend, c.name
		FROM items i
		JOIN clients c ON c.id = i.client_id
		WHERE i.id = $1`

	return s.scanItem(s.getDB().QueryRowContext(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanItem(row rowScanner) (*models.Item, error) {
	item := &models.Item{}
	var areas []byte

	err := row.Scan(
		&item.ID, &item.CreatedAt, &item.UpdatedAt,
		&item.ClientID, &item.Name, &areas,
		&item.IsActive, &item.MaxRate, &item.MaxDailySpend,
		&item.ClientName,
	)
	if err != nil {
		return nil, mapError(err)
	}

	mp, err := models.MultiPolygonFromGeoJSON(areas)
	if err != nil {
		return nil, ErrInvalidData
	}
	item.Areas = mp

	return item, nil
}

// UpdateItem updates an item
func (s *PostgresStore) UpdateItem(ctx context.Context, item *models.Item) error {
	item.UpdatedAt = time.Now()

	areas, err := models.GeometryJSON(orb.Geometry(item.Areas))
	if err != nil {
		return ErrInvalidData
	}

	query := `
		UPDATE items
		SET updated_at = $2, client_id = $3, name = $4,
		    areas = ST_SetSRID(ST_GeomFromGeoJSON($5), 4326),
		    is_active = $6, max_rate = $7, max_daily_spend = $8
		WHERE id = $1`

	res, err := s.getDB().ExecContext(ctx, query,
		item.ID, item.UpdatedAt, item.ClientID, item.Name,
		string(areas), item.IsActive, item.MaxRate, item.MaxDailySpend,
	)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem deletes an item. Its files are removed by the cascade.
func (s *PostgresStore) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res, err := s.getDB().ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListItemsForUser lists items whose client is among the user's grants,
// in insertion order
func (s *PostgresStore) ListItemsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Item, int64, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM items i
		JOIN client_users cu ON cu.client_id = i.client_id
		WHERE cu.user_id = $1`

	var count int64
	if err := s.getDB().QueryRowContext(ctx, countQuery, userID).Scan(&count); err != nil {
		return nil, 0, mapError(err)
	}

	query := `
		SELECT i.id, i.created_at, i.updated_at, i.client_id, i.name,
		       ST_AsGeoJSON(i.areas), i.is_active, i.max_rate, i.max_daily_spend, c.name
		FROM items i
		JOIN clients c ON c.id = i.client_id
		JOIN client_users cu ON cu.client_id = i.client_id
		WHERE cu.user_id = $1
		ORDER BY i.created_at, i.id
		LIMIT $2 OFFSET $3`

	rows, err := s.getDB().QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}

	return items, count, rows.Err()
}

// CreateItemFile creates an item file record
func (s *PostgresStore) CreateItemFile(ctx context.Context, file *models.ItemFile) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO item_files (id, created_at, item_id, path, hash)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.getDB().ExecContext(ctx, query,
		file.ID, file.CreatedAt, file.ItemID, file.Path, file.Hash,
	)
	return mapError(err)
}

// ListItemFiles lists the files of an item in insertion order
func (s *PostgresStore) ListItemFiles(ctx context.Context, itemID uuid.UUID) ([]*models.ItemFile, error) {
	query := `
		SELECT id, created_at, item_id, path, hash
		FROM item_files
		WHERE item_id = $1
		ORDER BY created_at, id`

	rows, err := s.getDB().QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var files []*models.ItemFile
	for rows.Next() {
		file := &models.ItemFile{}
		if err := rows.Scan(&file.ID, &file.CreatedAt, &file.ItemID, &file.Path, &file.Hash); err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	return files, rows.Err()
}

// GetItemFileByPath gets an item file by its stored path
func (s *PostgresStore) GetItemFileByPath(ctx context.Context, path string) (*models.ItemFile, error) {
	query := `SELECT id, created_at, item_id, path, hash FROM item_files WHERE path = $1`

	file := &models.ItemFile{}
	err := s.getDB().QueryRowContext(ctx, query, path).Scan(
		&file.ID, &file.CreatedAt, &file.ItemID, &file.Path, &file.Hash,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return file, nil
}

// GetItemFileByHash gets an item file by content hash within one item
func (s *PostgresStore) GetItemFileByHash(ctx context.Context, itemID uuid.UUID, hash string) (*models.ItemFile, error) {
	query := `SELECT id, created_at, item_id, path, hash FROM item_files WHERE item_id = $1 AND hash = $2`

	file := &models.ItemFile{}
	err := s.getDB().QueryRowContext(ctx, query, itemID, hash).Scan(
		&file.ID, &file.CreatedAt, &file.ItemID, &file.Path, &file.Hash,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return file, nil
}

// DeleteItemFile deletes an item file record
func (s *PostgresStore) DeleteItemFile(ctx context.Context, id uuid.UUID) error {
	res, err := s.getDB().ExecContext(ctx, `DELETE FROM item_files WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountItemFiles counts the files of an item
func (s *PostgresStore) CountItemFiles(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM item_files WHERE item_id = $1`, itemID).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}
