package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/univecal/unical-api/internal/models"
)

// FeedRepository manages notification feeds, the user read-set and the
// relevant-feed queries backing the API and the dispatcher.
type FeedRepository struct {
	db  *sqlx.DB
	obs QueryObserver
}

// NewFeedRepository constructs a FeedRepository.
func NewFeedRepository(db *sqlx.DB, obs QueryObserver) *FeedRepository {
	return &FeedRepository{db: db, obs: obs}
}

// relevantFilter selects feeds authored by a professor teaching a followed
// course, or attached to a lesson on a followed course's calendar. One
// filtered query; never an application-side scan over all feeds. $1 is the
// user ID in every query embedding it.
const relevantFilter = `(
		f.professor_id IN (
			SELECT c.professor_id FROM courses c
			JOIN follows w ON w.course_id = c.id
			WHERE w.user_id = $1 AND c.professor_id IS NOT NULL)
		OR f.lesson_id IN (
			SELECT l.id FROM lessons l
			JOIN courses c ON c.calendar_id = l.calendar_id
			JOIN follows w ON w.course_id = c.id
			WHERE w.user_id = $1)
	)`

const feedDetailColumns = `f.id, f.title, f.body, f.timestamp, f.professor_id, f.lesson_id,
		p.first_name || ' ' || p.last_name AS professor_name,
		EXISTS (SELECT 1 FROM reads rd WHERE rd.user_id = $1 AND rd.feed_id = f.id) AS read`

// Create inserts a feed row and fills in the generated ID and timestamp.
func (r *FeedRepository) Create(ctx context.Context, feed *models.Feed) error {
	if feed.Timestamp.IsZero() {
		feed.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO feeds (title, body, timestamp, professor_id, lesson_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &feed.ID, query,
		feed.Title, feed.Body, feed.Timestamp, feed.ProfessorID, feed.LessonID); err != nil {
		return fmt.Errorf("create feed: %w", err)
	}
	return nil
}

// FindByID fetches a feed with author annotation for the given reader.
func (r *FeedRepository) FindByID(ctx context.Context, userID, feedID int64) (*models.FeedDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM feeds f
		LEFT JOIN professors p ON p.id = f.professor_id
		WHERE f.id = $2`, feedDetailColumns)
	var feed models.FeedDetail
	if err := r.db.GetContext(ctx, &feed, query, userID, feedID); err != nil {
		return nil, err
	}
	return &feed, nil
}

// Latest returns the n most recent relevant feeds, newest first. Ties on
// timestamp break on the higher ID so the order is deterministic.
func (r *FeedRepository) Latest(ctx context.Context, userID int64, n int) ([]models.FeedDetail, error) {
	defer r.obs.observe(time.Now(), "feeds.latest")
	query := fmt.Sprintf(`SELECT %s FROM feeds f
		LEFT JOIN professors p ON p.id = f.professor_id
		WHERE %s
		ORDER BY f.timestamp DESC, f.id DESC
		LIMIT $2`, feedDetailColumns, relevantFilter)
	feeds := []models.FeedDetail{}
	if err := r.db.SelectContext(ctx, &feeds, query, userID, n); err != nil {
		return nil, fmt.Errorf("latest feeds: %w", err)
	}
	return feeds, nil
}

// Paginated returns one page of relevant feeds plus the total count. The
// (timestamp DESC, id DESC) sort is stable across pages even when
// timestamps collide.
func (r *FeedRepository) Paginated(ctx context.Context, userID int64, page, size int) ([]models.FeedDetail, int, error) {
	defer r.obs.observe(time.Now(), "feeds.paginated")
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM feeds f
		LEFT JOIN professors p ON p.id = f.professor_id
		WHERE %s
		ORDER BY f.timestamp DESC, f.id DESC
		LIMIT $2 OFFSET $3`, feedDetailColumns, relevantFilter)
	feeds := []models.FeedDetail{}
	if err := r.db.SelectContext(ctx, &feeds, query, userID, size, offset); err != nil {
		return nil, 0, fmt.Errorf("paginated feeds: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM feeds f WHERE %s`, relevantFilter)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("count feeds: %w", err)
	}

	return feeds, total, nil
}

// UnreadCount counts relevant feeds outside the user's read-set.
func (r *FeedRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	defer r.obs.observe(time.Now(), "feeds.unread_count")
	query := fmt.Sprintf(`SELECT COUNT(*) FROM feeds f
		WHERE %s AND NOT EXISTS (
			SELECT 1 FROM reads rd WHERE rd.user_id = $1 AND rd.feed_id = f.id)`, relevantFilter)
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// MarkRead adds a feed to the user's read-set and reports whether it was
// newly marked. Marking twice is a no-op.
func (r *FeedRepository) MarkRead(ctx context.Context, userID, feedID int64) (bool, error) {
	const query = `INSERT INTO reads (user_id, feed_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, userID, feedID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("mark read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	return affected > 0, nil
}

// MarkUnread removes a feed from the user's read-set and reports whether a
// row was removed. Unmarking an unread feed is a no-op.
func (r *FeedRepository) MarkUnread(ctx context.Context, userID, feedID int64) (bool, error) {
	const query = `DELETE FROM reads WHERE user_id = $1 AND feed_id = $2`
	res, err := r.db.ExecContext(ctx, query, userID, feedID)
	if err != nil {
		return false, fmt.Errorf("mark unread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark unread: %w", err)
	}
	return affected > 0, nil
}

// HasRead tests read-set membership.
func (r *FeedRepository) HasRead(ctx context.Context, userID, feedID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM reads WHERE user_id = $1 AND feed_id = $2)`
	var read bool
	if err := r.db.GetContext(ctx, &read, query, userID, feedID); err != nil {
		return false, fmt.Errorf("check read: %w", err)
	}
	return read, nil
}

// ListByProfessor returns a professor's authored feeds, newest first.
func (r *FeedRepository) ListByProfessor(ctx context.Context, professorID int64) ([]models.Feed, error) {
	const query = `SELECT id, title, body, timestamp, professor_id, lesson_id
		FROM feeds WHERE professor_id = $1
		ORDER BY timestamp DESC, id DESC`
	feeds := []models.Feed{}
	if err := r.db.SelectContext(ctx, &feeds, query, professorID); err != nil {
		return nil, fmt.Errorf("list professor feeds: %w", err)
	}
	return feeds, nil
}

// MaxID returns the highest feed ID, or zero for an empty table. The
// dispatcher uses it as its starting watermark.
func (r *FeedRepository) MaxID(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(MAX(id), 0) FROM feeds`
	var max int64
	if err := r.db.GetContext(ctx, &max, query); err != nil {
		return 0, fmt.Errorf("max feed id: %w", err)
	}
	return max, nil
}

// Recipients resolves, for every feed after the watermark, the followers
// who have linked a Telegram chat. Rows come back ordered by feed ID so
// the dispatcher can advance its watermark monotonically.
func (r *FeedRepository) Recipients(ctx context.Context, afterID int64) ([]models.FeedRecipient, error) {
	defer r.obs.observe(time.Now(), "feeds.recipients")
	const query = `SELECT f.id AS feed_id, u.id AS user_id, u.telegram_chat_id, f.title, f.body,
			p.first_name || ' ' || p.last_name AS professor_name
		FROM feeds f
		LEFT JOIN professors p ON p.id = f.professor_id
		JOIN courses c ON (c.professor_id = f.professor_id
			OR c.calendar_id = (SELECT l.calendar_id FROM lessons l WHERE l.id = f.lesson_id))
		JOIN follows w ON w.course_id = c.id
		JOIN users u ON u.id = w.user_id AND u.telegram_chat_id IS NOT NULL
		WHERE f.id > $1
		GROUP BY f.id, u.id, u.telegram_chat_id, f.title, f.body, p.first_name, p.last_name
		ORDER BY f.id`
	recipients := []models.FeedRecipient{}
	if err := r.db.SelectContext(ctx, &recipients, query, afterID); err != nil {
		return nil, fmt.Errorf("feed recipients: %w", err)
	}
	return recipients, nil
}
