package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/univecal/unical-api/internal/models"
)

// LessonRepository reads lesson schedules and applies reschedule commands.
type LessonRepository struct {
	db  *sqlx.DB
	obs QueryObserver
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db *sqlx.DB, obs QueryObserver) *LessonRepository {
	return &LessonRepository{db: db, obs: obs}
}

const lessonDetailColumns = `l.id, l.start, l."end", l.description, l.has_changed, l.calendar_id,
		c.name AS course_name, c.code AS course_code,
		(SELECT string_agg(cr.name, ', ' ORDER BY cr.name)
			FROM held_at h JOIN classrooms cr ON cr.id = h.classroom_id
			WHERE h.lesson_id = l.id) AS classrooms`

// FindByID fetches a single lesson.
func (r *LessonRepository) FindByID(ctx context.Context, id int64) (*models.Lesson, error) {
	const query = `SELECT id, start, "end", description, has_changed, calendar_id
		FROM lessons WHERE id = $1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListByUser returns the lessons of every course the user follows, in
// chronological order, optionally clipped to an inclusive window. The range
// is pushed into SQL so the database never streams an unbounded schedule.
func (r *LessonRepository) ListByUser(ctx context.Context, userID int64, rng models.LessonRange) ([]models.LessonDetail, error) {
	defer r.obs.observe(time.Now(), "lessons.list_by_user")
	query := fmt.Sprintf(`SELECT %s FROM lessons l
		JOIN courses c ON c.calendar_id = l.calendar_id
		JOIN follows w ON w.course_id = c.id
		WHERE w.user_id = $1`, lessonDetailColumns)
	args := []interface{}{userID}
	if rng.Start != nil {
		args = append(args, *rng.Start)
		query += fmt.Sprintf(` AND l.start >= $%d`, len(args))
	}
	if rng.End != nil {
		args = append(args, *rng.End)
		query += fmt.Sprintf(` AND l.start <= $%d`, len(args))
	}
	query += ` ORDER BY l.start, l.id`

	lessons := []models.LessonDetail{}
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, fmt.Errorf("list user lessons: %w", err)
	}
	return lessons, nil
}

// ListByCourse returns a course's lessons in chronological order.
func (r *LessonRepository) ListByCourse(ctx context.Context, courseID int64, rng models.LessonRange) ([]models.LessonDetail, error) {
	defer r.obs.observe(time.Now(), "lessons.list_by_course")
	query := fmt.Sprintf(`SELECT %s FROM lessons l
		JOIN courses c ON c.calendar_id = l.calendar_id
		WHERE c.id = $1`, lessonDetailColumns)
	args := []interface{}{courseID}
	if rng.Start != nil {
		args = append(args, *rng.Start)
		query += fmt.Sprintf(` AND l.start >= $%d`, len(args))
	}
	if rng.End != nil {
		args = append(args, *rng.End)
		query += fmt.Sprintf(` AND l.start <= $%d`, len(args))
	}
	query += ` ORDER BY l.start, l.id`

	lessons := []models.LessonDetail{}
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, fmt.Errorf("list course lessons: %w", err)
	}
	return lessons, nil
}

// Reschedule moves a lesson to a new time slot in one transaction. When the
// slot actually changes it marks the lesson, creates one feed per course on
// the lesson's calendar and reports the old slot alongside the created feed
// IDs. A no-op update produces no feeds. The row is locked for the duration
// so two concurrent moves cannot both observe the original slot.
func (r *LessonRepository) Reschedule(ctx context.Context, lessonID int64, start, end time.Time, title, body string) (*models.Reschedule, error) {
	defer r.obs.observe(time.Now(), "lessons.reschedule")
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reschedule: %w", err)
	}
	defer tx.Rollback()

	var lesson models.Lesson
	const lockQuery = `SELECT id, start, "end", description, has_changed, calendar_id
		FROM lessons WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &lesson, lockQuery, lessonID); err != nil {
		return nil, err
	}

	result := &models.Reschedule{
		Lesson:   lesson,
		OldStart: lesson.Start,
		OldEnd:   lesson.End,
	}
	if lesson.Start.Equal(start) && lesson.End.Equal(end) {
		return result, tx.Commit()
	}

	const updateQuery = `UPDATE lessons SET start = $1, "end" = $2, has_changed = TRUE WHERE id = $3`
	if _, err := tx.ExecContext(ctx, updateQuery, start, end, lessonID); err != nil {
		return nil, fmt.Errorf("update lesson: %w", err)
	}
	result.Changed = true
	result.Lesson.Start = start
	result.Lesson.End = end
	result.Lesson.HasChanged = true

	var courseNames []string
	const coursesQuery = `SELECT name FROM courses WHERE calendar_id = $1 ORDER BY id`
	if err := tx.SelectContext(ctx, &courseNames, coursesQuery, lesson.CalendarID); err != nil {
		return nil, fmt.Errorf("courses on calendar: %w", err)
	}

	const feedQuery = `INSERT INTO feeds (title, body, timestamp, lesson_id)
		VALUES ($1, $2, $3, $4) RETURNING id`
	now := time.Now().UTC()
	for _, name := range courseNames {
		feedTitle := title
		if feedTitle == "" {
			feedTitle = "Lesson rescheduled"
		}
		feedBody := body
		if feedBody == "" {
			feedBody = rescheduleBody(name, result.OldStart, start, end)
		}
		var feedID int64
		if err := tx.GetContext(ctx, &feedID, feedQuery, feedTitle, feedBody, now, lessonID); err != nil {
			return nil, fmt.Errorf("create reschedule feed: %w", err)
		}
		result.FeedIDs = append(result.FeedIDs, feedID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}
	return result, nil
}

func rescheduleBody(course string, oldStart, start, end time.Time) string {
	return fmt.Sprintf("The lesson of %s on %s has been moved to %s - %s.",
		course,
		oldStart.Format("Mon 02 Jan 15:04"),
		start.Format("Mon 02 Jan 15:04"),
		end.Format("15:04"))
}

// Locations returns the campus locations appearing in the user's schedule,
// ordered by first use, each with the classroom names it contributes. The
// assembly happens here because string_agg cannot both deduplicate and keep
// first-appearance order.
func (r *LessonRepository) Locations(ctx context.Context, userID int64) ([]models.UserLocation, error) {
	defer r.obs.observe(time.Now(), "lessons.locations")
	const query = `SELECT lo.id, lo.code, lo.name, lo.address, lo.lat, lo.lng, lo.polyline,
			cr.name AS classroom_name
		FROM lessons l
		JOIN courses c ON c.calendar_id = l.calendar_id
		JOIN follows w ON w.course_id = c.id
		JOIN held_at h ON h.lesson_id = l.id
		JOIN classrooms cr ON cr.id = h.classroom_id
		JOIN locations lo ON lo.id = cr.location_id
		WHERE w.user_id = $1
		ORDER BY l.start, l.id, cr.name`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("user locations: %w", err)
	}
	defer rows.Close()

	type row struct {
		models.Location
		ClassroomName string `db:"classroom_name"`
	}

	var out []models.UserLocation
	index := map[int64]int{}
	seen := map[int64]map[string]bool{}
	for rows.Next() {
		var rec row
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		i, ok := index[rec.ID]
		if !ok {
			i = len(out)
			index[rec.ID] = i
			seen[rec.ID] = map[string]bool{}
			out = append(out, models.UserLocation{Location: rec.Location})
		}
		if seen[rec.ID][rec.ClassroomName] {
			continue
		}
		seen[rec.ID][rec.ClassroomName] = true
		if out[i].Classrooms != "" {
			out[i].Classrooms += ", "
		}
		out[i].Classrooms += rec.ClassroomName
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user locations: %w", err)
	}
	if out == nil {
		out = []models.UserLocation{}
	}
	return out, nil
}

// Classrooms returns the rooms hosting a lesson, name-sorted.
func (r *LessonRepository) Classrooms(ctx context.Context, lessonID int64) ([]models.Classroom, error) {
	const query = `SELECT cr.id, cr.code, cr.name, cr.capacity, cr.location_id
		FROM held_at h JOIN classrooms cr ON cr.id = h.classroom_id
		WHERE h.lesson_id = $1 ORDER BY cr.name`
	rooms := []models.Classroom{}
	if err := r.db.SelectContext(ctx, &rooms, query, lessonID); err != nil {
		return nil, fmt.Errorf("lesson classrooms: %w", err)
	}
	return rooms, nil
}
