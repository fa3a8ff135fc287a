// Package users is the user directory: the single users table behind a
// Repository interface, with PostgreSQL and SQLite implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/cloudkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user, assigning ID and CreatedAt when they are empty.
	// Unique violations come back as common.ErrUsernameTaken or
	// common.ErrEmailTaken.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByName(ctx context.Context, name string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByNameOrEmail treats identifiers containing '@' as emails.
	FindByNameOrEmail(ctx context.Context, identifier string) (*models.User, error)
	// Delete removes the row; common.ErrorNotFound when nothing matched.
	Delete(ctx context.Context, id string) error
}
