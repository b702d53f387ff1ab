package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Read-only after registration.
// Password is stored as-is; it is never rendered in API responses.
type User struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
}
