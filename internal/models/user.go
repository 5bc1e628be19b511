package models

// User represents a system user. Field devices authenticate as regular
// users bound to a VideoModule.
type User struct {
	BaseModel

	Email     string `json:"email" db:"email"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`

	PasswordHash string `json:"-" db:"password_hash"`

	IsActive bool `json:"isActive" db:"is_active"`
}
