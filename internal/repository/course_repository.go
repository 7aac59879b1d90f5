package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/univecal/unical-api/internal/models"
)

// CourseRepository reads the public course catalogue.
type CourseRepository struct {
	db  *sqlx.DB
	obs QueryObserver
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB, obs QueryObserver) *CourseRepository {
	return &CourseRepository{db: db, obs: obs}
}

const courseColumns = `c.id, c.code, c.name, c.field, c.credit, c.total_credit,
		c.period, c.year, c.partition, c.calendar_id, c.professor_id,
		p.first_name || ' ' || p.last_name AS professor_name`

// List returns one catalogue page matching the filter plus the total count.
// The search term matches course name or code, case-insensitively.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	defer r.obs.observe(time.Now(), "courses.list")
	where := "TRUE"
	args := []interface{}{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (c.name ILIKE $%d OR c.code ILIKE $%d)", len(args), len(args))
	}
	if filter.DegreeID != nil {
		args = append(args, *filter.DegreeID)
		where += fmt.Sprintf(` AND c.id IN (
			SELECT cc.course_id FROM courses_curriculums cc
			JOIN curriculums cu ON cu.id = cc.curriculum_id
			WHERE cu.degree_id = $%d)`, len(args))
	}
	if filter.Year != nil {
		args = append(args, *filter.Year)
		where += fmt.Sprintf(" AND c.year = $%d", len(args))
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM courses c WHERE %s`, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM courses c
		LEFT JOIN professors p ON p.id = c.professor_id
		WHERE %s
		ORDER BY c.name, c.id
		LIMIT $%d OFFSET $%d`, courseColumns, where, len(args)-1, len(args))
	courses := []models.CourseDetail{}
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	return courses, total, nil
}

// FindByID fetches one course with its professor annotation.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c
		LEFT JOIN professors p ON p.id = c.professor_id
		WHERE c.id = $1`, courseColumns)
	var course models.CourseDetail
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByCurriculum returns the courses attached to a curriculum.
func (r *CourseRepository) ListByCurriculum(ctx context.Context, curriculumID int64) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c
		LEFT JOIN professors p ON p.id = c.professor_id
		JOIN courses_curriculums cc ON cc.course_id = c.id
		WHERE cc.curriculum_id = $1
		ORDER BY c.year, c.name`, courseColumns)
	courses := []models.CourseDetail{}
	if err := r.db.SelectContext(ctx, &courses, query, curriculumID); err != nil {
		return nil, fmt.Errorf("curriculum courses: %w", err)
	}
	return courses, nil
}

// ListByProfessor returns the courses a professor teaches.
func (r *CourseRepository) ListByProfessor(ctx context.Context, professorID int64) ([]models.Course, error) {
	const query = `SELECT id, code, name, field, credit, total_credit,
			period, year, partition, calendar_id, professor_id
		FROM courses WHERE professor_id = $1 ORDER BY name`
	courses := []models.Course{}
	if err := r.db.SelectContext(ctx, &courses, query, professorID); err != nil {
		return nil, fmt.Errorf("professor courses: %w", err)
	}
	return courses, nil
}

// Exists reports whether a course ID is present.
func (r *CourseRepository) Exists(ctx context.Context, id int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, id); err != nil {
		return false, fmt.Errorf("course exists: %w", err)
	}
	return ok, nil
}
