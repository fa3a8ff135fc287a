// Package models defines the server-side data models.
package models

import "time"

// Roles stored in users.role.
const (
	RoleUser  int16 = 0
	RoleAdmin int16 = 1
)

// User is a row of the users table. ID is assigned once at creation.
type User struct {
	ID           string
	Name         string
	Email        *string
	PasswordHash string
	Role         int16
	Status       *string
	CreatedAt    time.Time
}
