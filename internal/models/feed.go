package models

import "time"

// Feed is a notification item, authored by a professor or generated by a
// lesson reschedule. Rows are insert-only.
type Feed struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Body        string    `db:"body" json:"body"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
	ProfessorID *int64    `db:"professor_id" json:"professor_id,omitempty"`
	LessonID    *int64    `db:"lesson_id" json:"lesson_id,omitempty"`
}

// FeedDetail is a feed joined with its author's display name and, for the
// requesting user, the read flag.
type FeedDetail struct {
	Feed
	ProfessorName *string `db:"professor_name" json:"professor,omitempty"`
	Read          bool    `db:"read" json:"read"`
}

// FeedRecipient is a (feed, chat) pair resolved by the dispatcher: a user
// following an affected course who has linked a Telegram chat.
type FeedRecipient struct {
	FeedID        int64   `db:"feed_id"`
	UserID        int64   `db:"user_id"`
	ChatID        string  `db:"telegram_chat_id"`
	Title         string  `db:"title"`
	Body          string  `db:"body"`
	ProfessorName *string `db:"professor_name"`
}
