// Package services contains server-side business logic. This file implements
// UserService, which handles registration, sign-in, sign-out and account
// removal.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
	"github.com/dmitrijs2005/cloudkeeper/internal/dbx"
	"github.com/dmitrijs2005/cloudkeeper/internal/logging"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/auth"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/credentials"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/models"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/sessions"
)

// UserStorage creates and purges per-user storage trees.
type UserStorage interface {
	CreateUserRoot(userID string) error
	RemoveUserRoot(userID string) error
}

// RegisterRequest carries sign-up input. Email is optional.
type RegisterRequest struct {
	Username        string
	Password        string
	ConfirmPassword string
	Email           string
}

// LoginRequest carries sign-in input. Login is a username or an email.
type LoginRequest struct {
	Login    string
	Password string
}

// Session is a freshly issued token together with its claims.
type Session struct {
	Token  string
	Claims *auth.Claims
}

// UserDeps groups UserService collaborators. Checker may be nil to skip the
// email domain check.
type UserDeps struct {
	DB                  *sql.DB
	Repos               repomanager.RepositoryManager
	Tokens              *auth.TokenManager
	Storage             UserStorage
	Denylist            sessions.Denylist
	Tracker             *sessions.Tracker
	Checker             credentials.DomainChecker
	RegistrationEnabled bool
}

// UserService provides account operations:
//   - Register: validate, hash and store a user, then create their storage root
//   - Login: verify credentials and issue a session token
//   - Logout: revoke the current token
//   - DeleteAccount: remove the user row and their files
type UserService struct {
	db                  *sql.DB
	repomanager         repomanager.RepositoryManager
	tokens              *auth.TokenManager
	storage             UserStorage
	denylist            sessions.Denylist
	tracker             *sessions.Tracker
	checker             credentials.DomainChecker
	registrationEnabled bool
	logger              logging.Logger
}

func NewUserService(d UserDeps, l logging.Logger) *UserService {
	return &UserService{
		db:                  d.DB,
		repomanager:         d.Repos,
		tokens:              d.Tokens,
		storage:             d.Storage,
		denylist:            d.Denylist,
		tracker:             d.Tracker,
		checker:             d.Checker,
		registrationEnabled: d.RegistrationEnabled,
		logger:              l.With("module", "users"),
	}
}

// Register creates a user and their empty storage tree. When the tree cannot
// be created the row is removed again.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if !s.registrationEnabled {
		return nil, common.ErrRegistrationClosed
	}
	if req.Password != req.ConfirmPassword {
		return nil, common.ErrPasswordsDontMatch
	}
	if err := credentials.ValidateCredentials(req.Username, req.Password); err != nil {
		return nil, err
	}

	var email *string
	if e := strings.TrimSpace(req.Email); e != "" {
		if err := credentials.ValidateEmail(e); err != nil {
			return nil, err
		}
		if s.checker != nil {
			if err := s.checker.CheckEmail(ctx, e); err != nil {
				return nil, err
			}
		}
		email = &e
	}

	hash, err := credentials.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.Create(ctx, &models.User{
		Name:         req.Username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	if err := s.storage.CreateUserRoot(user.ID); err != nil {
		if derr := repo.Delete(ctx, user.ID); derr != nil {
			s.logger.Error(ctx, "failed to roll back user after storage error", "user_id", user.ID, "error", derr)
		}
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "name", user.Name)
	return user, nil
}

// Login checks the password and issues a session token. Each token holds a
// session slot until it expires or is logged out.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if strings.Contains(req.Login, "@") {
		if err := credentials.ValidatePassword(req.Password); err != nil {
			return nil, err
		}
	} else if err := credentials.ValidateCredentials(req.Login, req.Password); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).FindByNameOrEmail(ctx, req.Login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, err
	}

	if err := s.checkPassword(user, req.Password); err != nil {
		return nil, err
	}

	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	if err := s.tracker.Acquire(user.ID, claims.ID, claims.ExpiresAtTime()); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user signed in", "user_id", user.ID)
	return &Session{Token: token, Claims: claims}, nil
}

// Logout revokes the token described by claims and frees its session slot.
func (s *UserService) Logout(ctx context.Context, claims *auth.Claims) error {
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.tracker.Release(claims.ID)
	return nil
}

// Me returns the account behind claims.
func (s *UserService) Me(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, err
	}
	return user, nil
}

// DeleteAccount removes the user row and their files after re-checking the
// password. A failed purge keeps the row.
func (s *UserService) DeleteAccount(ctx context.Context, claims *auth.Claims, password string) error {
	user, err := s.Me(ctx, claims)
	if err != nil {
		return err
	}
	if err := s.checkPassword(user, password); err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).Delete(ctx, user.ID); err != nil {
			return err
		}
		if err := s.storage.RemoveUserRoot(user.ID); err != nil {
			return fmt.Errorf("purge storage: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// every token of the user, including ones issued on other devices
	until := time.Now().Add(s.tokens.TTL())
	if err := s.denylist.Revoke(ctx, sessions.UserKey(user.ID), until); err != nil {
		s.logger.Error(ctx, "failed to revoke tokens of deleted user", "user_id", user.ID, "error", err)
	}
	s.tracker.Forget(user.ID)

	s.logger.Info(ctx, "account deleted", "user_id", user.ID)
	return nil
}

func (s *UserService) checkPassword(user *models.User, password string) error {
	ok, err := credentials.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrInvalidCredentials
	}
	return nil
}
