package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/theatre-diary/internal/model"
	"github.com/iliyamo/theatre-diary/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,email,password_hash,role,display_name,avatar_url,is_active,created_at,updated_at"

// Create inserts user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, role, displayName string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, display_name) VALUES (?,?,?,?)",
		email, hash, role, nullString(strings.TrimSpace(displayName)))
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func scanUser(rs rowScanner) (model.User, error) {
	var (
		u            model.User
		name, avatar sql.NullString
	)
	err := rs.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &name, &avatar, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	u.DisplayName, u.AvatarURL = name.String, avatar.String
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdateProfile sets the public profile shown next to reviews.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, displayName, avatarURL string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET display_name=?, avatar_url=?, updated_at=CURRENT_TIMESTAMP WHERE id=?",
		nullString(strings.TrimSpace(displayName)), nullString(strings.TrimSpace(avatarURL)), id)
	return err
}
