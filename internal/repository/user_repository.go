package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/univecal/unical-api/internal/models"
)

// UserRepository manages persistence for user accounts and their refresh
// token sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, username, password_hash, confirmed, member_since, last_seen, avatar_hash, role, telegram_chat_id`

// AvatarHash derives the gravatar hash for an email address.
func AvatarHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// Create inserts a new user and fills in the generated ID.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.MemberSince.IsZero() {
		user.MemberSince = now
	}
	if user.LastSeen.IsZero() {
		user.LastSeen = now
	}
	if user.AvatarHash == "" {
		user.AvatarHash = AvatarHash(user.Email)
	}
	if user.Role == "" {
		user.Role = models.RoleStudent
	}

	const query = `INSERT INTO users (email, username, password_hash, confirmed, member_since, last_seen, avatar_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.GetContext(ctx, &user.ID, query,
		user.Email, user.Username, user.PasswordHash, user.Confirmed,
		user.MemberSince, user.LastSeen, user.AvatarHash, user.Role); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByID fetches a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE LOWER(email) = LOWER($1)`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmail checks whether another user already uses the email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND id <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

// Confirm marks the user's email address as verified.
func (r *UserRepository) Confirm(ctx context.Context, id int64) error {
	const query = `UPDATE users SET confirmed = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("confirm user: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// UpdateEmail replaces the email and the derived avatar hash.
func (r *UserRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	const query = `UPDATE users SET email = $2, avatar_hash = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, email, AvatarHash(email)); err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	return nil
}

// SetTelegramChatID links (or with nil clears) the user's Telegram chat.
func (r *UserRepository) SetTelegramChatID(ctx context.Context, id int64, chatID *string) error {
	const query = `UPDATE users SET telegram_chat_id = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, chatID); err != nil {
		return fmt.Errorf("set telegram chat: %w", err)
	}
	return nil
}

// FindByTelegramChatID resolves the user linked to a chat, if any.
func (r *UserRepository) FindByTelegramChatID(ctx context.Context, chatID string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE telegram_chat_id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, chatID); err != nil {
		return nil, err
	}
	return &user, nil
}

// PingLastSeen records request activity for the user.
func (r *UserRepository) PingLastSeen(ctx context.Context, id int64, ts time.Time) error {
	const query = `UPDATE users SET last_seen = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("ping last seen: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token session.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, ip_address, user_agent)
		VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken fetches a refresh token session by its opaque value.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent
		FROM refresh_tokens WHERE token = $1`
	var stored models.RefreshToken
	if err := r.db.GetContext(ctx, &stored, query, token); err != nil {
		return nil, err
	}
	return &stored, nil
}

// RevokeRefreshToken marks one session as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes every live session of a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND NOT revoked`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}
