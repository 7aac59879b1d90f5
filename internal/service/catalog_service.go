package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/univecal/unical-api/internal/models"
	appErrors "github.com/univecal/unical-api/pkg/errors"
)

type catalogRepository interface {
	ListDegrees(ctx context.Context) ([]models.Degree, error)
	FindDegree(ctx context.Context, id int64) (*models.Degree, error)
	ListCurriculums(ctx context.Context, degreeID int64) ([]models.Curriculum, error)
	FindProfessor(ctx context.Context, id int64) (*models.Professor, error)
	ListLocations(ctx context.Context) ([]models.Location, error)
	ListClassrooms(ctx context.Context, locationID int64) ([]models.Classroom, error)
}

type catalogCourseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.CourseDetail, error)
}

// CatalogService serves the public university catalogue.
type CatalogService struct {
	catalog catalogRepository
	courses catalogCourseRepository
	logger  *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(catalog catalogRepository, courses catalogCourseRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{catalog: catalog, courses: courses, logger: logger}
}

// Degrees lists every degree, optionally restricted to a category code.
func (s *CatalogService) Degrees(ctx context.Context, category string) ([]models.Degree, error) {
	degrees, err := s.catalog.ListDegrees(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list degrees")
	}
	if category == "" {
		return degrees, nil
	}
	filtered := []models.Degree{}
	for _, d := range degrees {
		if d.CategoryCode == category {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// DegreeCurriculums lists a degree's curriculums.
func (s *CatalogService) DegreeCurriculums(ctx context.Context, degreeID int64) ([]models.Curriculum, error) {
	if _, err := s.catalog.FindDegree(ctx, degreeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "degree not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load degree")
	}
	curriculums, err := s.catalog.ListCurriculums(ctx, degreeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list curriculums")
	}
	return curriculums, nil
}

// Courses returns one catalogue page with pagination metadata.
func (s *CatalogService) Courses(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Course returns one course.
func (s *CatalogService) Course(ctx context.Context, id int64) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Professor returns one professor.
func (s *CatalogService) Professor(ctx context.Context, id int64) (*models.Professor, error) {
	prof, err := s.catalog.FindProfessor(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	return prof, nil
}

// Locations lists the campus locations.
func (s *CatalogService) Locations(ctx context.Context) ([]models.Location, error) {
	locations, err := s.catalog.ListLocations(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list locations")
	}
	return locations, nil
}

// LocationClassrooms lists the rooms inside a location.
func (s *CatalogService) LocationClassrooms(ctx context.Context, locationID int64) ([]models.Classroom, error) {
	classrooms, err := s.catalog.ListClassrooms(ctx, locationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	return classrooms, nil
}
