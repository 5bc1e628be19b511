package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xside/xside-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrRestricted   = errors.New("restricted by referencing rows")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	// Client methods
	CreateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	DeleteClient(ctx context.Context, id uuid.UUID) error

	// Grant methods. "ForUser" queries are scoped to the clients the
	// user holds a grant on.
	GrantClient(ctx context.Context, userID, clientID uuid.UUID) error
	UserHasClient(ctx context.Context, userID, clientID uuid.UUID) (bool, error)
	GetClientForUser(ctx context.Context, id, userID uuid.UUID) (*models.Client, error)
	GetClientByNameForUser(ctx context.Context, name string, userID uuid.UUID) (*models.Client, error)
	ListClientsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Client, int64, error)

	// Item methods
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	ListItemsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Item, int64, error)

	// Item file methods
	CreateItemFile(ctx context.Context, file *models.ItemFile) error
	ListItemFiles(ctx context.Context, itemID uuid.UUID) ([]*models.ItemFile, error)
	GetItemFileByPath(ctx context.Context, path string) (*models.ItemFile, error)
	GetItemFileByHash(ctx context.Context, itemID uuid.UUID, hash string) (*models.ItemFile, error)
	DeleteItemFile(ctx context.Context, id uuid.UUID) error
	CountItemFiles(ctx context.Context, itemID uuid.UUID) (int64, error)

	// Video module methods
	CreateModule(ctx context.Context, module *models.VideoModule) error
	GetModuleByUser(ctx context.Context, userID uuid.UUID) (*models.VideoModule, error)

	// Log methods
	CreateLog(ctx context.Context, log *models.Log) error
	ListLogs(ctx context.Context, filters LogFilters, limit, offset int) ([]*models.Log, int64, error)

	// Close the store
	Close() error
}

// LogFilters represents filters for telemetry logs
type LogFilters struct {
	ModuleID   *uuid.UUID
	ItemFileID *uuid.UUID
	Event      *models.EventType
	StartTime  *time.Time
	EndTime    *time.Time
}
