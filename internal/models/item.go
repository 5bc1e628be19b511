package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
)

// Item field defaults and precision. These used to live in the database
// schema; they are named here so the write path never introspects it.
const (
	DefaultIsActive = false

	// Monetary fields are stored with two decimal places.
	MoneyScale int32 = 2
)

var (
	DefaultMaxRate       = decimal.NewFromInt(10)
	DefaultMaxDailySpend = decimal.NewFromInt(100)
)

// Item is one geofenced advertising campaign owned by a client. The
// (client, name) pair is unique.
type Item struct {
	BaseModel

	ClientID uuid.UUID `json:"clientId" db:"client_id"`
	Name     string    `json:"name" db:"name"`

	// Areas is the multi-polygon target area, WGS84.
	Areas orb.MultiPolygon `json:"areas" db:"areas"`

	IsActive      bool            `json:"isActive" db:"is_active"`
	MaxRate       decimal.Decimal `json:"maxRate" db:"max_rate"`
	MaxDailySpend decimal.Decimal `json:"maxDailySpend" db:"max_daily_spend"`

	// ClientName is joined in by list/get queries for serialization.
	ClientName string `json:"clientName,omitempty" db:"client_name"`
}

// ItemFile is one media asset attached to an item, deduplicated by
// content hash. An item always keeps at least one file.
type ItemFile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	ItemID uuid.UUID `json:"itemId" db:"item_id"`

	// Path is the stored blob reference, unique across all items.
	Path string `json:"path" db:"path"`

	// Hash is the hex sha256 of the file bytes, unique per item.
	Hash string `json:"hash" db:"hash"`
}
