// Package users creates the accounts that a completed phone registration
// produces.
package users

import "time"

type User struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
