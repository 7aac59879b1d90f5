package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univecal/unical-api/internal/models"
	appErrors "github.com/univecal/unical-api/pkg/errors"
)

type feedRepository interface {
	Create(ctx context.Context, feed *models.Feed) error
	FindByID(ctx context.Context, userID, feedID int64) (*models.FeedDetail, error)
	Latest(ctx context.Context, userID int64, n int) ([]models.FeedDetail, error)
	Paginated(ctx context.Context, userID int64, page, size int) ([]models.FeedDetail, int, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, feedID int64) (bool, error)
	MarkUnread(ctx context.Context, userID, feedID int64) (bool, error)
	ListByProfessor(ctx context.Context, professorID int64) ([]models.Feed, error)
}

type feedCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type feedProfessorLookup interface {
	FindProfessor(ctx context.Context, id int64) (*models.Professor, error)
}

// FeedConfig tunes feed listing behaviour.
type FeedConfig struct {
	PageSize      int
	LatestCount   int
	CountCacheTTL time.Duration
}

// PostFeedRequest is a professor announcement payload.
type PostFeedRequest struct {
	Title string `json:"title" validate:"required,max=64"`
	Body  string `json:"body" validate:"required"`
}

// FeedService serves notification feeds scoped to what each user follows.
type FeedService struct {
	repo       feedRepository
	cache      feedCache
	professors feedProfessorLookup
	validator  *validator.Validate
	logger     *zap.Logger
	config     FeedConfig
	metrics    *MetricsService
}

// NewFeedService constructs a FeedService.
func NewFeedService(repo feedRepository, cache feedCache, professors feedProfessorLookup, validate *validator.Validate, logger *zap.Logger, config FeedConfig) *FeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.PageSize <= 0 {
		config.PageSize = 20
	}
	if config.LatestCount <= 0 {
		config.LatestCount = 5
	}
	return &FeedService{repo: repo, cache: cache, professors: professors, validator: validate, logger: logger, config: config}
}

// WithMetrics attaches cache instrumentation and returns the service.
func (s *FeedService) WithMetrics(m *MetricsService) *FeedService {
	s.metrics = m
	return s
}

func unreadCountKey(userID int64) string {
	return fmt.Sprintf("feeds:unread:%d", userID)
}

// Latest returns the most recent relevant feeds for a user.
func (s *FeedService) Latest(ctx context.Context, userID int64) ([]models.FeedDetail, error) {
	feeds, err := s.repo.Latest(ctx, userID, s.config.LatestCount)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feeds")
	}
	return feeds, nil
}

// List returns one page of relevant feeds with pagination metadata.
func (s *FeedService) List(ctx context.Context, userID int64, page int) ([]models.FeedDetail, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	feeds, total, err := s.repo.Paginated(ctx, userID, page, s.config.PageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feeds")
	}
	return feeds, &models.Pagination{Page: page, PageSize: s.config.PageSize, TotalCount: total}, nil
}

// Get returns a single feed annotated for the user.
func (s *FeedService) Get(ctx context.Context, userID, feedID int64) (*models.FeedDetail, error) {
	feed, err := s.repo.FindByID(ctx, userID, feedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feed not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feed")
	}
	return feed, nil
}

// UnreadCount returns the user's count of unread relevant feeds. The count
// is cached briefly; the cache is only an accelerator and every failure
// falls through to the database.
func (s *FeedService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	key := unreadCountKey(userID)
	var cached int
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.metrics.RecordCacheOperation(true)
		return cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("unread count cache read failed", zap.Error(err))
	}
	s.metrics.RecordCacheOperation(false)

	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread feeds")
	}

	if err := s.cache.Set(ctx, key, count, s.config.CountCacheTTL); err != nil {
		s.logger.Warn("unread count cache write failed", zap.Error(err))
	}
	return count, nil
}

// MarkRead adds a feed to the user's read-set. Re-marking is a no-op and
// still succeeds.
func (s *FeedService) MarkRead(ctx context.Context, userID, feedID int64) error {
	changed, err := s.repo.MarkRead(ctx, userID, feedID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark feed read")
	}
	if changed {
		if err := s.cache.Delete(ctx, unreadCountKey(userID)); err != nil {
			s.logger.Warn("unread count cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

// MarkUnread puts a feed back into the unread state. Unmarking a feed that
// was never read is a no-op and still succeeds.
func (s *FeedService) MarkUnread(ctx context.Context, userID, feedID int64) error {
	changed, err := s.repo.MarkUnread(ctx, userID, feedID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark feed unread")
	}
	if changed {
		if err := s.cache.Delete(ctx, unreadCountKey(userID)); err != nil {
			s.logger.Warn("unread count cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

// MarkReadBatch marks a list of feeds read and reports how many were newly
// marked. Unknown IDs and re-marks count as no change.
func (s *FeedService) MarkReadBatch(ctx context.Context, userID int64, feedIDs []int64) (*BatchResult, error) {
	result := &BatchResult{Requested: len(feedIDs)}
	invalidate := false
	for _, feedID := range feedIDs {
		changed, err := s.repo.MarkRead(ctx, userID, feedID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark feed read")
		}
		if changed {
			result.Changed++
			invalidate = true
		}
	}
	if invalidate {
		if err := s.cache.Delete(ctx, unreadCountKey(userID)); err != nil {
			s.logger.Warn("unread count cache invalidation failed", zap.Error(err))
		}
	}
	return result, nil
}

// ProfessorFeeds lists a professor's announcements.
func (s *FeedService) ProfessorFeeds(ctx context.Context, professorID int64) ([]models.Feed, error) {
	if _, err := s.professors.FindProfessor(ctx, professorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	feeds, err := s.repo.ListByProfessor(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list professor feeds")
	}
	return feeds, nil
}

// PostProfessorFeed publishes an announcement on behalf of a professor.
func (s *FeedService) PostProfessorFeed(ctx context.Context, professorID int64, req PostFeedRequest) (*models.Feed, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feed payload")
	}
	if _, err := s.professors.FindProfessor(ctx, professorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}

	feed := &models.Feed{
		Title:       req.Title,
		Body:        req.Body,
		ProfessorID: &professorID,
	}
	if err := s.repo.Create(ctx, feed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create feed")
	}
	return feed, nil
}
