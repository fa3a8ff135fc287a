package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
	"github.com/dmitrijs2005/cloudkeeper/internal/dbx"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/models"
	"github.com/google/uuid"
)

// queries holds the dialect-specific statements. Column order is fixed by
// userColumns and scanUser.
type queries struct {
	insert      string
	findByID    string
	findByName  string
	findByEmail string
	delete      string
}

const userColumns = `id, name, email, password_hash, role, status, created_at`

type sqlRepository struct {
	db dbx.DBTX
	q  queries
	// now is swapped in tests
	now func() time.Time
}

func (r *sqlRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.q.insert,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Status, user.CreatedAt)
	if err != nil {
		if target, ok := dbx.UniqueViolation(err); ok {
			return nil, conflictError(target)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *sqlRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, r.q.findByID, id)
}

func (r *sqlRepository) FindByName(ctx context.Context, name string) (*models.User, error) {
	return r.findOne(ctx, r.q.findByName, name)
}

func (r *sqlRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, r.q.findByEmail, email)
}

func (r *sqlRepository) FindByNameOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") {
		return r.FindByEmail(ctx, identifier)
	}
	return r.FindByName(ctx, identifier)
}

func (r *sqlRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.q.delete, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *sqlRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.Status, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// conflictError maps a violated constraint ("users_email_key" on PostgreSQL,
// "users.email" on SQLite) to the matching sentinel.
func conflictError(target string) error {
	if strings.Contains(target, "email") {
		return common.ErrEmailTaken
	}
	return common.ErrUsernameTaken
}
