package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/univecal/unical-api/internal/models"
	"github.com/univecal/unical-api/internal/repository"
	appErrors "github.com/univecal/unical-api/pkg/errors"
)

type followRepository interface {
	Follow(ctx context.Context, userID, courseID int64) (bool, error)
	Unfollow(ctx context.Context, userID, courseID int64) (bool, error)
	IsFollowing(ctx context.Context, userID, courseID int64) (bool, error)
	ListCourses(ctx context.Context, userID int64) ([]models.CourseDetail, error)
	Stats(ctx context.Context, userID int64) (*repository.UserStats, error)
}

// BatchResult reports how many edges a batch mutation actually changed.
// Requested IDs that were already in the target state, or that do not
// exist, count as unchanged.
type BatchResult struct {
	Requested int `json:"requested"`
	Changed   int `json:"changed"`
}

// FollowService manages course subscriptions.
type FollowService struct {
	repo   followRepository
	cache  feedCache
	logger *zap.Logger
}

// NewFollowService constructs a FollowService.
func NewFollowService(repo followRepository, logger *zap.Logger) *FollowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowService{repo: repo, logger: logger}
}

// WithCache attaches the feed cache so follow changes can invalidate the
// unread count, and returns the service.
func (s *FollowService) WithCache(cache feedCache) *FollowService {
	s.cache = cache
	return s
}

// Changing the followed set changes which feeds are relevant, so a cached
// unread count is stale the moment an edge flips.
func (s *FollowService) invalidateUnreadCount(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, unreadCountKey(userID)); err != nil {
		s.logger.Warn("unread count cache invalidation failed", zap.Error(err))
	}
}

// Follow subscribes a user to the given courses. Duplicates and unknown
// course IDs are skipped silently; repeating the call converges on the
// same state.
func (s *FollowService) Follow(ctx context.Context, userID int64, courseIDs []int64) (*BatchResult, error) {
	result := &BatchResult{Requested: len(courseIDs)}
	for _, id := range courseIDs {
		added, err := s.repo.Follow(ctx, userID, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to follow course")
		}
		if added {
			result.Changed++
		}
	}
	if result.Changed > 0 {
		s.invalidateUnreadCount(ctx, userID)
	}
	return result, nil
}

// Unfollow removes subscriptions. Edges that never existed are skipped
// silently.
func (s *FollowService) Unfollow(ctx context.Context, userID int64, courseIDs []int64) (*BatchResult, error) {
	result := &BatchResult{Requested: len(courseIDs)}
	for _, id := range courseIDs {
		removed, err := s.repo.Unfollow(ctx, userID, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unfollow course")
		}
		if removed {
			result.Changed++
		}
	}
	if result.Changed > 0 {
		s.invalidateUnreadCount(ctx, userID)
	}
	return result, nil
}

// IsFollowing reports whether the user follows the course.
func (s *FollowService) IsFollowing(ctx context.Context, userID, courseID int64) (bool, error) {
	following, err := s.repo.IsFollowing(ctx, userID, courseID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check follow")
	}
	return following, nil
}

// Courses lists the user's followed courses.
func (s *FollowService) Courses(ctx context.Context, userID int64) ([]models.CourseDetail, error) {
	courses, err := s.repo.ListCourses(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list followed courses")
	}
	if courses == nil {
		courses = []models.CourseDetail{}
	}
	return courses, nil
}

// Stats summarises the user's followed schedule.
func (s *FollowService) Stats(ctx context.Context, userID int64) (*repository.UserStats, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user stats")
	}
	return stats, nil
}
