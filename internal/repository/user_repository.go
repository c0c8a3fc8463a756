package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/utils"
)

// UserRepo mirrors the 'users' table. It backs the credential store and the
// technician registry.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, username, display_name, password_hash, role, is_active, created_at, updated_at"

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create hashes password, inserts the user and returns it with its id.
// It returns ErrConflict when the username is taken.
func (r *UserRepo) Create(ctx context.Context, username, displayName, password, role string, cost int) (model.User, error) {
	username = strings.TrimSpace(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.User{}, err
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, display_name, password_hash, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		username, displayName, hash, role, true, now, now)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrConflict
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		ID: id, Username: username, DisplayName: displayName, PasswordHash: hash,
		Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// GetByUsername fetches a user by exact username. It returns ErrNotFound if
// there is no such user.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ? LIMIT 1", strings.TrimSpace(username)))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id. It returns ErrNotFound if there is no such user.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// ListActiveByRole returns active users holding role, ordered by username.
func (r *UserRepo) ListActiveByRole(ctx context.Context, role string) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE role = ? AND is_active = ? ORDER BY username", role, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
