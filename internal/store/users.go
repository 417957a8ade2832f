package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/model"
)

const userColumns = `id, username, password_hash, role, created_at, deleted_at`

// CreateUser creates a new user.
func CreateUser(ctx context.Context, db *sqlx.DB, username, passwordHash, role string) (*model.User, error) {
	var id int64
	err := db.QueryRowxContext(ctx, db.Rebind(
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?) RETURNING id`),
		username, passwordHash, role,
	).Scan(&id)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("creating user %q: %w", username, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sqlx.DB, id int64) (*model.User, error) {
	u := &model.User{}
	err := db.GetContext(ctx, u, db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the active user with the given username.
func GetUserByUsername(ctx context.Context, db *sqlx.DB, username string) (*model.User, error) {
	u := &model.User{}
	err := db.GetContext(ctx, u, db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted_at IS NULL`), username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, db *sqlx.DB) ([]model.User, error) {
	var users []model.User
	err := db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// UpdateUser updates a user's role.
func UpdateUser(ctx context.Context, db *sqlx.DB, id int64, role string) error {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`),
		role, id,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return requireRow(res, "updating user")
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sqlx.DB, id int64, passwordHash string) error {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`),
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return requireRow(res, "updating user password")
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, db *sqlx.DB, id int64) error {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`),
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return requireRow(res, "deleting user")
}

// requireRow turns an update that matched nothing into sql.ErrNoRows.
func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}
