package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sysmanage/common"
)

// UserRow is a local console user (not a managed-host account).
type UserRow struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	IsAdmin   bool       `json:"is_admin"`
	Active    bool       `json:"active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

const userCols = `id, username, email, is_admin, active, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*UserRow, error) {
	var u UserRow
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.IsAdmin, &u.Active,
		&u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a console user with a bcrypt password hash.
func CreateUser(ctx context.Context, username, email, passwordHash string, isAdmin bool) (*UserRow, error) {
	id := uuid.NewString()
	_, err := common.DB.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_admin)
		VALUES ($1,$2,$3,$4,$5)
	`, id, username, email, passwordHash, isAdmin)
	if err != nil {
		return nil, err
	}
	return scanUser(common.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

// ListUsers returns all console users.
func ListUsers(ctx context.Context) ([]UserRow, error) {
	rows, err := common.DB.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserRow
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// GetUser fetches a console user by id.
func GetUser(ctx context.Context, id string) (*UserRow, error) {
	return scanUser(common.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

// GetUserByEmail fetches a console user by email (SSO identity mapping).
func GetUserByEmail(ctx context.Context, email string) (*UserRow, error) {
	return scanUser(common.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE lower(email)=lower($1)`, email))
}

// GetUserCredentials returns id and password hash for an active user.
func GetUserCredentials(ctx context.Context, username string) (id, passwordHash string, err error) {
	err = common.DB.QueryRow(ctx, `
		SELECT id, password_hash FROM users WHERE username=$1 AND active
	`, username).Scan(&id, &passwordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, passwordHash, err
}

// UpdateUser patches mutable fields. Nil pointers leave columns untouched.
func UpdateUser(ctx context.Context, id string, email *string, active, isAdmin *bool, passwordHash *string) error {
	cmd, err := common.DB.Exec(ctx, `
		UPDATE users SET
		  email         = COALESCE($2, email),
		  active        = COALESCE($3, active),
		  is_admin      = COALESCE($4, is_admin),
		  password_hash = COALESCE($5, password_hash),
		  updated_at    = now()
		WHERE id=$1
	`, id, email, active, isAdmin, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordLogin stamps last_login.
func RecordLogin(ctx context.Context, id string) error {
	_, err := common.DB.Exec(ctx, `UPDATE users SET last_login=now() WHERE id=$1`, id)
	return err
}

// DeleteUser removes a console user.
func DeleteUser(ctx context.Context, id string) error {
	cmd, err := common.DB.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- refresh tokens ---
// Tokens are stored only as sha256 hex; the opaque value never hits the DB.

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// StoreRefreshToken persists a new refresh token hash.
func StoreRefreshToken(ctx context.Context, userID, token string, ttl time.Duration) error {
	_, err := common.DB.Exec(ctx, `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1,$2, now() + $3::interval)
	`, HashToken(token), userID, ttl.String())
	return err
}

// ConsumeRefreshToken revokes a live token and returns its user id.
// Expired, revoked, or unknown tokens return ErrNotFound.
func ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := common.DB.QueryRow(ctx, `
		UPDATE refresh_tokens SET revoked_at=now()
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > now()
		RETURNING user_id
	`, HashToken(token)).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

// RevokeUserRefreshTokens revokes all live tokens for a user (logout).
func RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := common.DB.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at=now()
		WHERE user_id=$1 AND revoked_at IS NULL
	`, userID)
	return err
}

// SweepRefreshTokens deletes tokens dead for more than a day.
func SweepRefreshTokens(ctx context.Context) (int64, error) {
	cmd, err := common.DB.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at < now() - interval '1 day'
		   OR revoked_at < now() - interval '1 day'
	`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
