package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/univecal/unical-api/internal/models"
	"github.com/univecal/unical-api/internal/service"
	appErrors "github.com/univecal/unical-api/pkg/errors"
	"github.com/univecal/unical-api/pkg/response"
)

// CatalogHandler serves the public university catalogue.
type CatalogHandler struct {
	catalog  *service.CatalogService
	schedule *service.ScheduleService
	feeds    *service.FeedService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(catalog *service.CatalogService, schedule *service.ScheduleService, feeds *service.FeedService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, schedule: schedule, feeds: feeds}
}

// Degrees godoc
// @Summary List degrees
// @Tags Catalogue
// @Produce json
// @Param cat query string false "Filter by category code"
// @Success 200 {object} response.Envelope
// @Router /degrees [get]
func (h *CatalogHandler) Degrees(c *gin.Context) {
	degrees, err := h.catalog.Degrees(c.Request.Context(), c.Query("cat"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, degrees, nil)
}

// DegreeCurriculums godoc
// @Summary List a degree's curriculums
// @Tags Catalogue
// @Produce json
// @Param id path int true "Degree ID"
// @Success 200 {object} response.Envelope
// @Router /degrees/{id}/curriculums [get]
func (h *CatalogHandler) DegreeCurriculums(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "degree not found"))
		return
	}
	curriculums, err := h.catalog.DegreeCurriculums(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, curriculums, nil)
}

// DegreeCourses godoc
// @Summary List a degree's courses
// @Tags Catalogue
// @Produce json
// @Param id path int true "Degree ID"
// @Param page query int false "Page"
// @Success 200 {object} response.Envelope
// @Router /degrees/{id}/courses [get]
func (h *CatalogHandler) DegreeCourses(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "degree not found"))
		return
	}
	filter := courseFilterFromQuery(c)
	filter.DegreeID = &id

	courses, pagination, err := h.catalog.Courses(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Courses godoc
// @Summary List courses
// @Tags Catalogue
// @Produce json
// @Param q query string false "Search by name or code"
// @Param year query int false "Filter by course year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CatalogHandler) Courses(c *gin.Context) {
	courses, pagination, err := h.catalog.Courses(c.Request.Context(), courseFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Course godoc
// @Summary Get one course
// @Tags Catalogue
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CatalogHandler) Course(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "course not found"))
		return
	}
	course, err := h.catalog.Course(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// CourseLessons godoc
// @Summary List a course's lessons
// @Tags Catalogue
// @Produce json
// @Param id path int true "Course ID"
// @Param start query string false "Inclusive range start (RFC 3339)"
// @Param end query string false "Inclusive range end (RFC 3339)"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/lessons [get]
func (h *CatalogHandler) CourseLessons(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "course not found"))
		return
	}
	rng, err := parseLessonRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	lessons, err := h.schedule.CourseLessons(c.Request.Context(), id, rng)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, nil)
}

// Locations godoc
// @Summary List campus locations
// @Tags Catalogue
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /locations [get]
func (h *CatalogHandler) Locations(c *gin.Context) {
	locations, err := h.catalog.Locations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, locations, nil)
}

// LocationClassrooms godoc
// @Summary List a location's classrooms
// @Tags Catalogue
// @Produce json
// @Param id path int true "Location ID"
// @Success 200 {object} response.Envelope
// @Router /locations/{id}/classrooms [get]
func (h *CatalogHandler) LocationClassrooms(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "location not found"))
		return
	}
	classrooms, err := h.catalog.LocationClassrooms(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classrooms, nil)
}

// Professor godoc
// @Summary Get one professor
// @Tags Catalogue
// @Produce json
// @Param id path int true "Professor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /professors/{id} [get]
func (h *CatalogHandler) Professor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "professor not found"))
		return
	}
	prof, err := h.catalog.Professor(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prof, nil)
}

// ProfessorFeeds godoc
// @Summary List a professor's announcements
// @Tags Catalogue
// @Produce json
// @Param id path int true "Professor ID"
// @Success 200 {object} response.Envelope
// @Router /professors/{id}/feeds [get]
func (h *CatalogHandler) ProfessorFeeds(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "professor not found"))
		return
	}
	feeds, err := h.feeds.ProfessorFeeds(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feeds, nil)
}

// PostProfessorFeed godoc
// @Summary Publish an announcement for a professor
// @Tags Catalogue
// @Accept json
// @Produce json
// @Param id path int true "Professor ID"
// @Param payload body service.PostFeedRequest true "Feed payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /professors/{id}/feeds [post]
func (h *CatalogHandler) PostProfessorFeed(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "professor not found"))
		return
	}
	var req service.PostFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feed payload"))
		return
	}
	feed, err := h.feeds.PostProfessorFeed(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, feed)
}

// RescheduleLesson godoc
// @Summary Move a lesson to a new time slot
// @Description Updates the slot and notifies followers of the affected courses
// @Tags Catalogue
// @Accept json
// @Produce json
// @Param id path int true "Lesson ID"
// @Param payload body service.RescheduleRequest true "New slot"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *CatalogHandler) RescheduleLesson(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "lesson not found"))
		return
	}
	var req service.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	result, err := h.schedule.Reschedule(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func courseFilterFromQuery(c *gin.Context) models.CourseFilter {
	var filter models.CourseFilter
	filter.Search = c.Query("q")
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.Year = &year
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	return filter
}
