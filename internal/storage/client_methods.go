package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xside/xside-server/internal/models"
)

// CreateClient creates a client
func (s *PostgresStore) CreateClient(ctx context.Context, client *models.Client) error {
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	now := time.Now()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	query := `INSERT INTO clients (id, created_at, updated_at, name) VALUES ($1, $2, $3, $4)`

	_, err := s.getDB().ExecContext(ctx, query, client.ID, client.CreatedAt, client.UpdatedAt, client.Name)
	return mapError(err)
}

// GetClient gets a client by id
func (s *PostgresStore) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	query := `SELECT id, created_at, updated_at, name FROM clients WHERE id = $1`

	client := &models.Client{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&client.ID, &client.CreatedAt, &client.UpdatedAt, &client.Name,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return client, nil
}

// DeleteClient deletes a client. Fails with ErrRestricted while items
// reference it.
func (s *PostgresStore) DeleteClient(ctx context.Context, id uuid.UUID) error {
	res, err := s.getDB().ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantClient grants a user access to a client
func (s *PostgresStore) GrantClient(ctx context.Context, userID, clientID uuid.UUID) error {
	now := time.Now()
	query := `
		INSERT INTO client_users (id, created_at, updated_at, user_id, client_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, client_id) DO NOTHING`

	_, err := s.getDB().ExecContext(ctx, query, uuid.New(), now, now, userID, clientID)
	return mapError(err)
}

// UserHasClient reports whether the user holds a grant on the client
func (s *PostgresStore) UserHasClient(ctx context.Context, userID, clientID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM client_users WHERE user_id = $1 AND client_id = $2)`

	var exists bool
	if err := s.getDB().QueryRowContext(ctx, query, userID, clientID).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// GetClientForUser gets a client by id, only if the user holds a grant
// on it. Returns ErrNotFound otherwise so absence and missing access
// are indistinguishable.
func (s *PostgresStore) GetClientForUser(ctx context.Context, id, userID uuid.UUID) (*models.Client, error) {
	query := `
		SELECT c.id, c.created_at, c.updated_at, c.name
		FROM clients c
		JOIN client_users cu ON cu.client_id = c.id
		WHERE c.id = $1 AND cu.user_id = $2`

	client := &models.Client{}
	err := s.getDB().QueryRowContext(ctx, query, id, userID).Scan(
		&client.ID, &client.CreatedAt, &client.UpdatedAt, &client.Name,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return client, nil
}

// GetClientByNameForUser resolves a client name among the user's grants
func (s *PostgresStore) GetClientByNameForUser(ctx context.Context, name string, userID uuid.UUID) (*models.Client, error) {
	query := `
		SELECT c.id, c.created_at, c.updated_at, c.name
		FROM clients c
		JOIN client_users cu ON cu.client_id = c.id
		WHERE c.name = $1 AND cu.user_id = $2`

	client := &models.Client{}
	err := s.getDB().QueryRowContext(ctx, query, name, userID).Scan(
		&client.ID, &client.CreatedAt, &client.UpdatedAt, &client.Name,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return client, nil
}

// ListClientsForUser lists the clients the user holds a grant on, in
// insertion order
func (s *PostgresStore) ListClientsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Client, int64, error) {
	countQuery := `SELECT COUNT(*) FROM clients c JOIN client_users cu ON cu.client_id = c.id WHERE cu.user_id = $1`

	var count int64
	if err := s.getDB().QueryRowContext(ctx, countQuery, userID).Scan(&count); err != nil {
		return nil, 0, mapError(err)
	}

	query := `
		SELECT c.id, c.created_at, c.updated_at, c.name
		FROM clients c
		JOIN client_users cu ON cu.client_id = c.id
		WHERE cu.user_id = $1
		ORDER BY c.created_at, c.id
		LIMIT $2 OFFSET $3`

	rows, err := s.getDB().QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client := &models.Client{}
		if err := rows.Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt, &client.Name); err != nil {
			return nil, 0, err
		}
		clients = append(clients, client)
	}

	return clients, count, rows.Err()
}
