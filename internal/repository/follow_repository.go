package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/univecal/unical-api/internal/models"
)

// FollowRepository manages the user-course follow edges.
type FollowRepository struct {
	db *sqlx.DB
}

// NewFollowRepository constructs a FollowRepository.
func NewFollowRepository(db *sqlx.DB) *FollowRepository {
	return &FollowRepository{db: db}
}

// Follow inserts the edge unless it already exists and reports whether a
// row was added. A nonexistent course is treated as a no-op: the import
// feed occasionally references courses that were filtered out, and the
// batch contract counts it as "no change" rather than failing the request.
func (r *FollowRepository) Follow(ctx context.Context, userID, courseID int64) (bool, error) {
	const query = `INSERT INTO follows (user_id, course_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, userID, courseID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("follow course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("follow course: %w", err)
	}
	return affected > 0, nil
}

// Unfollow removes the edge if present and reports whether a row was
// removed. Missing edges are a no-op, never an error.
func (r *FollowRepository) Unfollow(ctx context.Context, userID, courseID int64) (bool, error) {
	const query = `DELETE FROM follows WHERE user_id = $1 AND course_id = $2`
	res, err := r.db.ExecContext(ctx, query, userID, courseID)
	if err != nil {
		return false, fmt.Errorf("unfollow course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unfollow course: %w", err)
	}
	return affected > 0, nil
}

// IsFollowing tests edge membership.
func (r *FollowRepository) IsFollowing(ctx context.Context, userID, courseID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM follows WHERE user_id = $1 AND course_id = $2)`
	var following bool
	if err := r.db.GetContext(ctx, &following, query, userID, courseID); err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return following, nil
}

// ListCourses returns the courses a user follows, with professor names.
func (r *FollowRepository) ListCourses(ctx context.Context, userID int64) ([]models.CourseDetail, error) {
	const query = `SELECT c.id, c.code, c.name, c.field, c.credit, c.total_credit, c.period, c.year, c.partition,
			c.calendar_id, c.professor_id,
			p.first_name || ' ' || p.last_name AS professor_name
		FROM courses c
		JOIN follows f ON f.course_id = c.id
		LEFT JOIN professors p ON p.id = c.professor_id
		WHERE f.user_id = $1
		ORDER BY c.name, c.id`
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, userID); err != nil {
		return nil, fmt.Errorf("list followed courses: %w", err)
	}
	return courses, nil
}

// UserStats summarises a user's followed schedule.
type UserStats struct {
	Courses int `db:"courses" json:"courses"`
	Credits int `db:"credits" json:"credits"`
	Lessons int `db:"lessons" json:"lessons"`
}

// Stats aggregates followed course count, total credits and total lessons.
func (r *FollowRepository) Stats(ctx context.Context, userID int64) (*UserStats, error) {
	const query = `SELECT
			(SELECT COUNT(*) FROM follows f JOIN courses c ON c.id = f.course_id WHERE f.user_id = $1) AS courses,
			(SELECT COALESCE(SUM(c.credit), 0) FROM follows f JOIN courses c ON c.id = f.course_id WHERE f.user_id = $1) AS credits,
			(SELECT COUNT(*) FROM follows f JOIN courses c ON c.id = f.course_id JOIN lessons l ON l.calendar_id = c.calendar_id WHERE f.user_id = $1) AS lessons`
	var stats UserStats
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &stats, nil
}
