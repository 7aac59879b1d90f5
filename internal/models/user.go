package models

import "time"

// UserRole controls access to administrative endpoints.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

// User represents a registered student account stored in the users table.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	Username       string    `db:"username" json:"username"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	Confirmed      bool      `db:"confirmed" json:"confirmed"`
	MemberSince    time.Time `db:"member_since" json:"member_since"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
	AvatarHash     string    `db:"avatar_hash" json:"avatar_hash"`
	Role           UserRole  `db:"role" json:"role"`
	TelegramChatID *string   `db:"telegram_chat_id" json:"chat_id,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
