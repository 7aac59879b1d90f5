package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/univecal/unical-api/internal/models"
)

// ImportRepository upserts the university catalogue during batch imports.
// Every write is keyed on the record's natural identifier so re-running an
// import converges instead of duplicating.
type ImportRepository struct {
	db *sqlx.DB
}

// NewImportRepository constructs an ImportRepository.
func NewImportRepository(db *sqlx.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

// UpsertLocation inserts or refreshes a location by code and returns its ID.
func (r *ImportRepository) UpsertLocation(ctx context.Context, loc *models.Location) (int64, error) {
	const query = `INSERT INTO locations (code, name, address, lat, lng, polyline)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name, address = EXCLUDED.address,
			lat = EXCLUDED.lat, lng = EXCLUDED.lng, polyline = EXCLUDED.polyline
		RETURNING id`
	var id int64
	if err := r.db.GetContext(ctx, &id, query,
		loc.Code, loc.Name, loc.Address, loc.Lat, loc.Lng, loc.Polyline); err != nil {
		return 0, fmt.Errorf("upsert location %s: %w", loc.Code, err)
	}
	return id, nil
}

// UpsertClassroom inserts or refreshes a classroom by code and returns its ID.
func (r *ImportRepository) UpsertClassroom(ctx context.Context, room *models.Classroom) (int64, error) {
	const query = `INSERT INTO classrooms (code, name, capacity, location_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name, capacity = EXCLUDED.capacity,
			location_id = EXCLUDED.location_id
		RETURNING id`
	var id int64
	if err := r.db.GetContext(ctx, &id, query,
		room.Code, room.Name, room.Capacity, room.LocationID); err != nil {
		return 0, fmt.Errorf("upsert classroom %s: %w", room.Code, err)
	}
	return id, nil
}

// UpsertProfessor inserts or refreshes a professor under the
// university-assigned ID.
func (r *ImportRepository) UpsertProfessor(ctx context.Context, prof *models.Professor) error {
	const query = `INSERT INTO professors (id, first_name, last_name, username, email, avatar_url, avatar_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			username = EXCLUDED.username, email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url, avatar_hash = EXCLUDED.avatar_hash`
	if _, err := r.db.ExecContext(ctx, query,
		prof.ID, prof.FirstName, prof.LastName, prof.Username, prof.Email,
		prof.AvatarURL, prof.AvatarHash); err != nil {
		return fmt.Errorf("upsert professor %d: %w", prof.ID, err)
	}
	return nil
}

// UpsertDegree inserts or refreshes a degree by code and returns its ID.
func (r *ImportRepository) UpsertDegree(ctx context.Context, degree *models.Degree) (int64, error) {
	const query = `INSERT INTO degrees (code, name, category_code, category_desc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name, category_code = EXCLUDED.category_code,
			category_desc = EXCLUDED.category_desc
		RETURNING id`
	var id int64
	if err := r.db.GetContext(ctx, &id, query,
		degree.Code, degree.Name, degree.CategoryCode, degree.CategoryDesc); err != nil {
		return 0, fmt.Errorf("upsert degree %s: %w", degree.Code, err)
	}
	return id, nil
}

// UpsertCurriculum inserts or refreshes a curriculum by (code, degree) and
// returns its ID.
func (r *ImportRepository) UpsertCurriculum(ctx context.Context, cur *models.Curriculum) (int64, error) {
	const query = `INSERT INTO curriculums (code, name, degree_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (code, degree_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`
	var id int64
	if err := r.db.GetContext(ctx, &id, query, cur.Code, cur.Name, cur.DegreeID); err != nil {
		return 0, fmt.Errorf("upsert curriculum %s: %w", cur.Code, err)
	}
	return id, nil
}

// EnsureCalendar records a calendar under the university-assigned ID,
// idempotently.
func (r *ImportRepository) EnsureCalendar(ctx context.Context, id int64) error {
	const query = `INSERT INTO calendars (id) VALUES ($1) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("ensure calendar %d: %w", id, err)
	}
	return nil
}

// FindLocationIDByCode resolves a location by its import code.
func (r *ImportRepository) FindLocationIDByCode(ctx context.Context, code string) (int64, error) {
	const query = `SELECT id FROM locations WHERE code = $1`
	var id int64
	if err := r.db.GetContext(ctx, &id, query, code); err != nil {
		return 0, err
	}
	return id, nil
}

// ClassroomsMatching returns the classrooms whose name occurs in the given
// free text. Lesson descriptions embed the room name, so this is how rooms
// get attached during the lessons import.
func (r *ImportRepository) ClassroomsMatching(ctx context.Context, text string) ([]models.Classroom, error) {
	const query = `SELECT id, code, name, capacity, location_id FROM classrooms
		WHERE $1 ILIKE '%' || name || '%' ORDER BY length(name) DESC`
	rooms := []models.Classroom{}
	if err := r.db.SelectContext(ctx, &rooms, query, text); err != nil {
		return nil, fmt.Errorf("match classrooms: %w", err)
	}
	return rooms, nil
}

// UpsertCourse inserts or refreshes a course under the university-assigned
// ID. The calendar assignment survives re-imports: a course only receives a
// new calendar when it never had one.
func (r *ImportRepository) UpsertCourse(ctx context.Context, course *models.Course) error {
	const query = `INSERT INTO courses (id, code, name, field, credit, total_credit,
			period, year, partition, calendar_id, professor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, name = EXCLUDED.name, field = EXCLUDED.field,
			credit = EXCLUDED.credit, total_credit = EXCLUDED.total_credit,
			period = EXCLUDED.period, year = EXCLUDED.year,
			partition = EXCLUDED.partition,
			calendar_id = COALESCE(courses.calendar_id, EXCLUDED.calendar_id),
			professor_id = EXCLUDED.professor_id`
	if _, err := r.db.ExecContext(ctx, query,
		course.ID, course.Code, course.Name, course.Field, course.Credit,
		course.TotalCredit, course.Period, course.Year, course.Partition,
		course.CalendarID, course.ProfessorID); err != nil {
		return fmt.Errorf("upsert course %d: %w", course.ID, err)
	}
	return nil
}

// CourseCalendar returns the calendar currently attached to a course, or
// zero when it has none.
func (r *ImportRepository) CourseCalendar(ctx context.Context, courseID int64) (int64, error) {
	const query = `SELECT COALESCE(calendar_id, 0) FROM courses WHERE id = $1`
	var id int64
	if err := r.db.GetContext(ctx, &id, query, courseID); err != nil {
		return 0, err
	}
	return id, nil
}

// LinkCourseCurriculum attaches a course to a curriculum, idempotently.
func (r *ImportRepository) LinkCourseCurriculum(ctx context.Context, courseID, curriculumID int64) error {
	const query = `INSERT INTO courses_curriculums (course_id, curriculum_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, courseID, curriculumID); err != nil {
		return fmt.Errorf("link course %d to curriculum %d: %w", courseID, curriculumID, err)
	}
	return nil
}

// InsertLesson adds a lesson unless an identical slot already exists on the
// calendar. It reports whether a row was created and, when it was, fills in
// the generated ID.
func (r *ImportRepository) InsertLesson(ctx context.Context, lesson *models.Lesson) (bool, error) {
	const query = `INSERT INTO lessons (start, "end", description, calendar_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (start, "end", calendar_id, (COALESCE(description, ''))) DO NOTHING
		RETURNING id`
	err := r.db.GetContext(ctx, &lesson.ID, query,
		lesson.Start, lesson.End, lesson.Description, lesson.CalendarID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert lesson: %w", err)
	}
	return true, nil
}

// LinkLessonClassroom records where a lesson is held, idempotently.
func (r *ImportRepository) LinkLessonClassroom(ctx context.Context, lessonID, classroomID int64) error {
	const query = `INSERT INTO held_at (lesson_id, classroom_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, lessonID, classroomID); err != nil {
		return fmt.Errorf("link lesson %d to classroom %d: %w", lessonID, classroomID, err)
	}
	return nil
}
