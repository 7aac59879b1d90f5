package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univecal/unical-api/internal/models"
	appErrors "github.com/univecal/unical-api/pkg/errors"
)

type lessonRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Lesson, error)
	ListByUser(ctx context.Context, userID int64, rng models.LessonRange) ([]models.LessonDetail, error)
	ListByCourse(ctx context.Context, courseID int64, rng models.LessonRange) ([]models.LessonDetail, error)
	Reschedule(ctx context.Context, lessonID int64, start, end time.Time, title, body string) (*models.Reschedule, error)
	Locations(ctx context.Context, userID int64) ([]models.UserLocation, error)
}

type scheduleCourseLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// RescheduleRequest moves a lesson to a new slot.
type RescheduleRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
	Title string    `json:"title" validate:"max=64"`
	Body  string    `json:"body"`
}

// ScheduleService serves lesson schedules, the calendar export and the
// reschedule command.
type ScheduleService struct {
	lessons   lessonRepository
	courses   scheduleCourseLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(lessons lessonRepository, courses scheduleCourseLookup, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ScheduleService{lessons: lessons, courses: courses, validator: validate, logger: logger}
}

// UserLessons returns the schedule of every followed course, optionally
// clipped to an inclusive window.
func (s *ScheduleService) UserLessons(ctx context.Context, userID int64, rng models.LessonRange) ([]models.LessonDetail, error) {
	if rng.Start != nil && rng.End != nil && rng.End.Before(*rng.Start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end precedes start")
	}
	lessons, err := s.lessons.ListByUser(ctx, userID, rng)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}
	return lessons, nil
}

// CourseLessons returns one course's schedule.
func (s *ScheduleService) CourseLessons(ctx context.Context, courseID int64, rng models.LessonRange) ([]models.LessonDetail, error) {
	exists, err := s.courses.Exists(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	lessons, err := s.lessons.ListByCourse(ctx, courseID, rng)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}
	return lessons, nil
}

// Reschedule moves a lesson and returns the outcome, including the feeds
// generated for followers when the slot actually changed.
func (s *ScheduleService) Reschedule(ctx context.Context, lessonID int64, req RescheduleRequest) (*models.Reschedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	result, err := s.lessons.Reschedule(ctx, lessonID, req.Start.UTC(), req.End.UTC(), req.Title, req.Body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule lesson")
	}
	if result.Changed {
		s.logger.Info("lesson rescheduled",
			zap.Int64("lesson_id", lessonID),
			zap.Time("old_start", result.OldStart),
			zap.Time("new_start", result.Lesson.Start),
			zap.Int("feeds", len(result.FeedIDs)))
	}
	return result, nil
}

// UserLocations returns the campus locations on the user's schedule,
// ordered by first appearance.
func (s *ScheduleService) UserLocations(ctx context.Context, userID int64) ([]models.UserLocation, error) {
	locations, err := s.lessons.Locations(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load locations")
	}
	return locations, nil
}

// ExportICS renders the user's full schedule as an iCalendar document.
// Subscribing clients refresh it, so the export always covers every lesson
// regardless of date.
func (s *ScheduleService) ExportICS(ctx context.Context, userID int64) (string, error) {
	lessons, err := s.lessons.ListByUser(ctx, userID, models.LessonRange{})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//UniCal//Calendar//EN")
	cal.SetName("UniCal lessons")

	for _, lesson := range lessons {
		event := cal.AddEvent(fmt.Sprintf("lesson-%d@unical", lesson.ID))
		event.SetDtStampTime(time.Now().UTC())
		event.SetStartAt(lesson.Start.UTC())
		event.SetEndAt(lesson.End.UTC())
		if lesson.CourseName != nil {
			summary := *lesson.CourseName
			if lesson.CourseCode != nil && *lesson.CourseCode != "" {
				summary = fmt.Sprintf("%s [%s]", summary, *lesson.CourseCode)
			}
			event.SetSummary(summary)
		}
		if lesson.Description != nil && *lesson.Description != "" {
			event.SetDescription(*lesson.Description)
		}
		if lesson.Classrooms != nil && *lesson.Classrooms != "" {
			event.SetLocation(*lesson.Classrooms)
		}
	}

	return cal.Serialize(), nil
}
