package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univecal/unical-api/internal/models"
	appErrors "github.com/univecal/unical-api/pkg/errors"
)

type mockLessonRepo struct {
	lessons    []models.LessonDetail
	reschedule *models.Reschedule
	missing    bool
	gotStart   time.Time
	gotEnd     time.Time
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id int64) (*models.Lesson, error) {
	return nil, sql.ErrNoRows
}

func (m *mockLessonRepo) ListByUser(ctx context.Context, userID int64, rng models.LessonRange) ([]models.LessonDetail, error) {
	return m.lessons, nil
}

func (m *mockLessonRepo) ListByCourse(ctx context.Context, courseID int64, rng models.LessonRange) ([]models.LessonDetail, error) {
	return m.lessons, nil
}

func (m *mockLessonRepo) Reschedule(ctx context.Context, lessonID int64, start, end time.Time, title, body string) (*models.Reschedule, error) {
	if m.missing {
		return nil, sql.ErrNoRows
	}
	m.gotStart = start
	m.gotEnd = end
	return m.reschedule, nil
}

func (m *mockLessonRepo) Locations(ctx context.Context, userID int64) ([]models.UserLocation, error) {
	return nil, nil
}

type mockCourseLookup struct {
	exists bool
}

func (m *mockCourseLookup) Exists(ctx context.Context, id int64) (bool, error) {
	return m.exists, nil
}

func strPtr(s string) *string { return &s }

func TestScheduleServiceUserLessonsRejectsInvertedRange(t *testing.T) {
	svc := NewScheduleService(&mockLessonRepo{}, &mockCourseLookup{}, validator.New(), zap.NewNop())

	start := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -7)
	_, err := svc.UserLessons(context.Background(), 1, models.LessonRange{Start: &start, End: &end})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceCourseLessonsUnknownCourse(t *testing.T) {
	svc := NewScheduleService(&mockLessonRepo{}, &mockCourseLookup{exists: false}, validator.New(), zap.NewNop())

	_, err := svc.CourseLessons(context.Background(), 404, models.LessonRange{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceRescheduleValidation(t *testing.T) {
	repo := &mockLessonRepo{reschedule: &models.Reschedule{Changed: true}}
	svc := NewScheduleService(repo, &mockCourseLookup{exists: true}, validator.New(), zap.NewNop())

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	_, err := svc.Reschedule(context.Background(), 1, RescheduleRequest{Start: start, End: start.Add(-time.Hour)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Reschedule(context.Background(), 1, RescheduleRequest{Start: start, End: start.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, repo.gotStart.Location())
}

func TestScheduleServiceRescheduleUnknownLesson(t *testing.T) {
	svc := NewScheduleService(&mockLessonRepo{missing: true}, &mockCourseLookup{}, validator.New(), zap.NewNop())

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	_, err := svc.Reschedule(context.Background(), 404, RescheduleRequest{Start: start, End: start.Add(time.Hour)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceExportICS(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := &mockLessonRepo{lessons: []models.LessonDetail{
		{
			Lesson:     models.Lesson{ID: 3, Start: start, End: start.Add(2 * time.Hour)},
			CourseName: strPtr("Algorithms"),
			CourseCode: strPtr("CT0110"),
			Classrooms: strPtr("Aula 1"),
		},
	}}
	svc := NewScheduleService(repo, &mockCourseLookup{}, validator.New(), zap.NewNop())

	doc, err := svc.ExportICS(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, doc, "BEGIN:VCALENDAR")
	assert.Contains(t, doc, "BEGIN:VEVENT")
	assert.Contains(t, doc, "UID:lesson-3@unical")
	assert.Contains(t, doc, "SUMMARY:Algorithms [CT0110]")
	assert.Contains(t, doc, "LOCATION:Aula 1")
	assert.Contains(t, doc, "METHOD:PUBLISH")
}
