package users

import "time"

// User represents an account for administration.
type User struct {
	ID        int64
	Name      string
	Phone     string
	Email     string
	Role      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
