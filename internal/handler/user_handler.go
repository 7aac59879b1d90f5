package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/univecal/unical-api/internal/models"
	"github.com/univecal/unical-api/internal/service"
	appErrors "github.com/univecal/unical-api/pkg/errors"
	"github.com/univecal/unical-api/pkg/response"
)

// CourseIDsRequest is the payload of the batch follow and unfollow
// endpoints.
type CourseIDsRequest struct {
	IDs []int64 `json:"ids" binding:"required"`
}

// UserHandler serves the per-user resources: profile, followed courses,
// schedule, feeds and the calendar export.
type UserHandler struct {
	auth     *service.AuthService
	follows  *service.FollowService
	feeds    *service.FeedService
	schedule *service.ScheduleService
}

// NewUserHandler constructs handler.
func NewUserHandler(auth *service.AuthService, follows *service.FollowService, feeds *service.FeedService, schedule *service.ScheduleService) *UserHandler {
	return &UserHandler{auth: auth, follows: follows, feeds: feeds, schedule: schedule}
}

// Profile godoc
// @Summary Get user profile
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Profile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	user, err := h.auth.Profile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Stats godoc
// @Summary Summarise the user's followed schedule
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/stats [get]
func (h *UserHandler) Stats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	stats, err := h.follows.Stats(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Courses godoc
// @Summary List followed courses
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/courses [get]
func (h *UserHandler) Courses(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	courses, err := h.follows.Courses(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Follow godoc
// @Summary Follow courses
// @Description Subscribe to the given courses; unknown or already followed IDs are skipped
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param payload body CourseIDsRequest true "Course IDs"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/courses [post]
func (h *UserHandler) Follow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	var req CourseIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course ids payload"))
		return
	}
	result, err := h.follows.Follow(c.Request.Context(), id, req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Unfollow godoc
// @Summary Unfollow courses
// @Description Unsubscribe from the given courses; edges that never existed are skipped
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param payload body CourseIDsRequest true "Course IDs"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/courses [delete]
func (h *UserHandler) Unfollow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	var req CourseIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course ids payload"))
		return
	}
	result, err := h.follows.Unfollow(c.Request.Context(), id, req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Lessons godoc
// @Summary List the user's lessons
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Param start query string false "Inclusive range start (RFC 3339)"
// @Param end query string false "Inclusive range end (RFC 3339)"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/lessons [get]
func (h *UserHandler) Lessons(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	rng, err := parseLessonRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	lessons, err := h.schedule.UserLessons(c.Request.Context(), id, rng)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, nil)
}

// Locations godoc
// @Summary List the campus locations on the user's schedule
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/locations [get]
func (h *UserHandler) Locations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	locations, err := h.schedule.UserLocations(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, locations, nil)
}

// CalendarICS godoc
// @Summary Export the user's schedule as iCalendar
// @Tags Users
// @Produce plain
// @Param id path int true "User ID"
// @Success 200 {string} string "text/calendar document"
// @Router /users/{id}/calendar.ics [get]
func (h *UserHandler) CalendarICS(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	document, err := h.schedule.ExportICS(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="calendar.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(document))
}

// Feeds godoc
// @Summary List relevant feeds
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Param page query int false "Page"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/feeds [get]
func (h *UserHandler) Feeds(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	feeds, pagination, err := h.feeds.List(c.Request.Context(), id, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feeds, pagination)
}

// LatestFeeds godoc
// @Summary List the most recent relevant feeds
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/feeds/latest [get]
func (h *UserHandler) LatestFeeds(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	feeds, err := h.feeds.Latest(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feeds, nil)
}

// UnreadFeeds godoc
// @Summary Count unread relevant feeds
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/feeds/unread [get]
func (h *UserHandler) UnreadFeeds(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	count, err := h.feeds.UnreadCount(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread": count}, nil)
}

// Feed godoc
// @Summary Get one feed
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Param feedId path int true "Feed ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/feeds/{feedId} [get]
func (h *UserHandler) Feed(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	feedID, ok := paramID(c, "feedId")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "feed not found"))
		return
	}
	feed, err := h.feeds.Get(c.Request.Context(), id, feedID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feed, nil)
}

// ReadFeed godoc
// @Summary Mark a feed as read
// @Description Adds the feed to the user's read-set; repeating is a no-op
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Param feedId path int true "Feed ID"
// @Success 204 {object} response.Envelope
// @Router /users/{id}/feeds/{feedId}/read [put]
func (h *UserHandler) ReadFeed(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	feedID, ok := paramID(c, "feedId")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "feed not found"))
		return
	}
	if err := h.feeds.MarkRead(c.Request.Context(), id, feedID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnreadFeed godoc
// @Summary Mark a feed as unread
// @Description Removes the feed from the user's read-set; repeating is a no-op
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Param feedId path int true "Feed ID"
// @Success 204 {object} response.Envelope
// @Router /users/{id}/feeds/{feedId}/read [delete]
func (h *UserHandler) UnreadFeed(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	feedID, ok := paramID(c, "feedId")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "feed not found"))
		return
	}
	if err := h.feeds.MarkUnread(c.Request.Context(), id, feedID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// FeedIDsRequest is the payload of the batch mark-read endpoint.
type FeedIDsRequest struct {
	IDs []int64 `json:"ids" binding:"required"`
}

// ReadFeeds godoc
// @Summary Mark several feeds as read
// @Description Marks the given feeds read; unknown or already read IDs are skipped
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param payload body FeedIDsRequest true "Feed IDs"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/feeds/read [post]
func (h *UserHandler) ReadFeeds(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "user not found"))
		return
	}
	var req FeedIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feed ids payload"))
		return
	}
	result, err := h.feeds.MarkReadBatch(c.Request.Context(), id, req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func parseLessonRange(c *gin.Context) (models.LessonRange, error) {
	var rng models.LessonRange
	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rng, appErrors.Clone(appErrors.ErrValidation, "invalid start parameter")
		}
		rng.Start = &t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rng, appErrors.Clone(appErrors.ErrValidation, "invalid end parameter")
		}
		rng.End = &t
	}
	return rng, nil
}
