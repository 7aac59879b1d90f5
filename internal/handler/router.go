package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univecal/unical-api/internal/middleware"
	"github.com/univecal/unical-api/internal/models"
	"github.com/univecal/unical-api/internal/service"
)

// Services bundles what the router needs to wire every endpoint.
type Services struct {
	Auth     *service.AuthService
	Follows  *service.FollowService
	Feeds    *service.FeedService
	Schedule *service.ScheduleService
	Catalog  *service.CatalogService
}

// RegisterRoutes attaches every API route group to the engine.
func RegisterRoutes(r *gin.Engine, prefix string, svcs Services) {
	authHandler := NewAuthHandler(svcs.Auth)
	userHandler := NewUserHandler(svcs.Auth, svcs.Follows, svcs.Feeds, svcs.Schedule)
	catalogHandler := NewCatalogHandler(svcs.Catalog, svcs.Schedule, svcs.Feeds)

	api := r.Group(prefix)

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/confirm", authHandler.ResendConfirmation)
		auth.GET("/confirm/:token", authHandler.Confirm)
		auth.POST("/reset", authHandler.RequestReset)
		auth.POST("/reset/confirm", authHandler.ConfirmReset)
		auth.GET("/email/:token", authHandler.ConfirmEmailChange)

		authed := auth.Group("", middleware.JWT(svcs.Auth))
		{
			authed.POST("/logout", authHandler.Logout)
			authed.PUT("/password", authHandler.ChangePassword)
			authed.POST("/email", authHandler.RequestEmailChange)
			authed.POST("/telegram", authHandler.TelegramLink)
		}
	}

	users := api.Group("/users/:id", middleware.JWT(svcs.Auth), middleware.SelfOrAdmin())
	{
		users.GET("", userHandler.Profile)
		users.GET("/stats", userHandler.Stats)
		users.GET("/courses", userHandler.Courses)
		users.POST("/courses", userHandler.Follow)
		users.DELETE("/courses", userHandler.Unfollow)
		users.GET("/lessons", userHandler.Lessons)
		users.GET("/locations", userHandler.Locations)
		users.GET("/calendar.ics", userHandler.CalendarICS)
		users.GET("/feeds", userHandler.Feeds)
		users.GET("/feeds/latest", userHandler.LatestFeeds)
		users.GET("/feeds/unread", userHandler.UnreadFeeds)
		users.GET("/feeds/:feedId", userHandler.Feed)
		users.PUT("/feeds/:feedId/read", userHandler.ReadFeed)
		users.DELETE("/feeds/:feedId/read", userHandler.UnreadFeed)
		users.POST("/feeds/read", userHandler.ReadFeeds)
	}

	api.GET("/degrees", catalogHandler.Degrees)
	api.GET("/degrees/:id/curriculums", catalogHandler.DegreeCurriculums)
	api.GET("/degrees/:id/courses", catalogHandler.DegreeCourses)
	api.GET("/courses", catalogHandler.Courses)
	api.GET("/courses/:id", catalogHandler.Course)
	api.GET("/courses/:id/lessons", catalogHandler.CourseLessons)
	api.GET("/locations", catalogHandler.Locations)
	api.GET("/locations/:id/classrooms", catalogHandler.LocationClassrooms)
	api.GET("/professors/:id", catalogHandler.Professor)
	api.GET("/professors/:id/feeds", catalogHandler.ProfessorFeeds)

	admin := api.Group("", middleware.JWT(svcs.Auth), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/professors/:id/feeds", catalogHandler.PostProfessorFeed)
		admin.PUT("/lessons/:id", catalogHandler.RescheduleLesson)
	}
}
