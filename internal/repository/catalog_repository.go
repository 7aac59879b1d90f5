package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/univecal/unical-api/internal/models"
)

// CatalogRepository reads the static university catalogue: degrees,
// curriculums, professors and campus locations.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs a CatalogRepository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListDegrees returns all degrees ordered by name.
func (r *CatalogRepository) ListDegrees(ctx context.Context) ([]models.Degree, error) {
	const query = `SELECT id, code, name, category_code, category_desc
		FROM degrees ORDER BY name`
	degrees := []models.Degree{}
	if err := r.db.SelectContext(ctx, &degrees, query); err != nil {
		return nil, fmt.Errorf("list degrees: %w", err)
	}
	return degrees, nil
}

// FindDegree fetches one degree.
func (r *CatalogRepository) FindDegree(ctx context.Context, id int64) (*models.Degree, error) {
	const query = `SELECT id, code, name, category_code, category_desc
		FROM degrees WHERE id = $1`
	var degree models.Degree
	if err := r.db.GetContext(ctx, &degree, query, id); err != nil {
		return nil, err
	}
	return &degree, nil
}

// ListCurriculums returns a degree's curriculums.
func (r *CatalogRepository) ListCurriculums(ctx context.Context, degreeID int64) ([]models.Curriculum, error) {
	const query = `SELECT id, code, name, degree_id
		FROM curriculums WHERE degree_id = $1 ORDER BY code`
	curriculums := []models.Curriculum{}
	if err := r.db.SelectContext(ctx, &curriculums, query, degreeID); err != nil {
		return nil, fmt.Errorf("list curriculums: %w", err)
	}
	return curriculums, nil
}

// FindProfessor fetches one professor.
func (r *CatalogRepository) FindProfessor(ctx context.Context, id int64) (*models.Professor, error) {
	const query = `SELECT id, first_name, last_name, username, email, avatar_url, avatar_hash
		FROM professors WHERE id = $1`
	var prof models.Professor
	if err := r.db.GetContext(ctx, &prof, query, id); err != nil {
		return nil, err
	}
	return &prof, nil
}

// ListLocations returns all campus locations ordered by name.
func (r *CatalogRepository) ListLocations(ctx context.Context) ([]models.Location, error) {
	const query = `SELECT id, code, name, address, lat, lng, polyline
		FROM locations ORDER BY name`
	locations := []models.Location{}
	if err := r.db.SelectContext(ctx, &locations, query); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

// ListClassrooms returns the classrooms inside a location.
func (r *CatalogRepository) ListClassrooms(ctx context.Context, locationID int64) ([]models.Classroom, error) {
	const query = `SELECT id, code, name, capacity, location_id
		FROM classrooms WHERE location_id = $1 ORDER BY name`
	classrooms := []models.Classroom{}
	if err := r.db.SelectContext(ctx, &classrooms, query, locationID); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return classrooms, nil
}
