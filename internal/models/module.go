package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// VideoModule is a field device installed on a car. It is bound 1:1 to
// a user account and is the principal that reports telemetry logs.
type VideoModule struct {
	BaseModel

	UserID uuid.UUID `json:"userId" db:"user_id"`
	Name   string    `json:"name" db:"name"`
	Phone  string    `json:"phone" db:"phone"`
}

// EventType is a log event kind
type EventType string

const (
	EventStart   EventType = "S"
	EventShow    EventType = "SH"
	EventStop    EventType = "P"
	EventWarning EventType = "WA"
	EventError   EventType = "ER"
)

// Valid reports whether e is a known event kind
func (e EventType) Valid() bool {
	switch e {
	case EventStart, EventShow, EventStop, EventWarning, EventError:
		return true
	}
	return false
}

// Log is one geolocated telemetry event reported by a video module.
// The item file reference is weak: deleting the file keeps the log.
type Log struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	ModuleID  uuid.UUID `json:"moduleId" db:"module_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Point     orb.Point `json:"point" db:"point"`
	Event     EventType `json:"event" db:"event"`

	ItemFileID *uuid.UUID `json:"itemFileId,omitempty" db:"item_file_id"`
	Data       Variables  `json:"data,omitempty" db:"data"`

	// ItemFilePath is joined in by queries for serialization.
	ItemFilePath *string `json:"itemFilePath,omitempty" db:"item_file_path"`
}
