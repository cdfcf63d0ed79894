package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"shop/models"
)

var userColumns = []string{"username", "email", "password", "role", "created_at"}

// CreateUser inserts a new user. The password must already be hashed.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	user.CreatedAt = s.now()

	// Check if the username is already taken
	if _, err := s.GetUser(ctx, user.Username); err == nil {
		return models.User{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}

	query, args, err := s.qb.Insert("users").
		Columns(userColumns...).
		Values(user.Username, user.Email, user.Password, user.Role, user.CreatedAt).
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build insert user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, username string) (models.User, error) {
	query, args, err := s.qb.Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build select user: %w", err)
	}

	var user models.User
	if err := s.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates the admin account or resets an existing account to the
// given credentials with the admin role.
func (s *Store) EnsureAdmin(ctx context.Context, username, email, passwordHash string) error {
	query, args, err := s.qb.Insert("users").
		Columns(userColumns...).
		Values(username, email, passwordHash, models.RoleAdmin, s.now()).
		Suffix("ON CONFLICT (username) DO UPDATE SET email = excluded.email, password = excluded.password, role = excluded.role").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert admin: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	return nil
}
