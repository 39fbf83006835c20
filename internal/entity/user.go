package entity

import "github.com/google/uuid"

// User represents an account that owns jobs.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name,omitempty"`
}
