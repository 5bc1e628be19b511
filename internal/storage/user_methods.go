package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xside/xside-server/internal/models"
)

// CreateUser creates a user
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, created_at, updated_at, email, first_name, last_name, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.CreatedAt, user.UpdatedAt,
		user.Email, user.FirstName, user.LastName,
		user.PasswordHash, user.IsActive,
	)
	return mapError(err)
}

// GetUser gets a user by id
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUserWhere(ctx, "id = $1", id)
}

// GetUserByEmail gets a user by email
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserWhere(ctx, "email = $1", email)
}

func (s *PostgresStore) getUserWhere(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	query := `
		SELECT id, created_at, updated_at, email, first_name, last_name, password_hash, is_active
		FROM users WHERE ` + where

	user := &models.User{}
	err := s.getDB().QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt,
		&user.Email, &user.FirstName, &user.LastName,
		&user.PasswordHash, &user.IsActive,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// UpdateUser updates a user
func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET updated_at = $2, email = $3, first_name = $4, last_name = $5, password_hash = $6, is_active = $7
		WHERE id = $1`

	res, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.UpdatedAt,
		user.Email, user.FirstName, user.LastName,
		user.PasswordHash, user.IsActive,
	)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
