package models

import (
	"github.com/google/uuid"
)

// Client represents a tenant - a company or department that owns
// campaign items. Many users can be granted access to one client.
type Client struct {
	BaseModel

	Name string `json:"name" db:"name"`
}

// ClientUser grants one user access to one client. A user may hold
// grants on many clients; a user with no grants sees nothing.
type ClientUser struct {
	BaseModel

	UserID   uuid.UUID `json:"userId" db:"user_id"`
	ClientID uuid.UUID `json:"clientId" db:"client_id"`
}
