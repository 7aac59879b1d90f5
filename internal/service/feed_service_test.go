package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univecal/unical-api/internal/models"
	appErrors "github.com/univecal/unical-api/pkg/errors"
)

type mockFeedRepo struct {
	feeds       []models.FeedDetail
	total       int
	unread      int
	unreadCalls int
	read        map[int64]bool
	created     *models.Feed
}

func (m *mockFeedRepo) Create(ctx context.Context, feed *models.Feed) error {
	feed.ID = 99
	m.created = feed
	return nil
}

func (m *mockFeedRepo) FindByID(ctx context.Context, userID, feedID int64) (*models.FeedDetail, error) {
	for _, f := range m.feeds {
		if f.ID == feedID {
			return &f, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeedRepo) Latest(ctx context.Context, userID int64, n int) ([]models.FeedDetail, error) {
	if n < len(m.feeds) {
		return m.feeds[:n], nil
	}
	return m.feeds, nil
}

func (m *mockFeedRepo) Paginated(ctx context.Context, userID int64, page, size int) ([]models.FeedDetail, int, error) {
	return m.feeds, m.total, nil
}

func (m *mockFeedRepo) UnreadCount(ctx context.Context, userID int64) (int, error) {
	m.unreadCalls++
	return m.unread, nil
}

func (m *mockFeedRepo) MarkRead(ctx context.Context, userID, feedID int64) (bool, error) {
	if m.read == nil {
		m.read = make(map[int64]bool)
	}
	if m.read[feedID] {
		return false, nil
	}
	m.read[feedID] = true
	return true, nil
}

func (m *mockFeedRepo) MarkUnread(ctx context.Context, userID, feedID int64) (bool, error) {
	if !m.read[feedID] {
		return false, nil
	}
	delete(m.read, feedID)
	return true, nil
}

func (m *mockFeedRepo) ListByProfessor(ctx context.Context, professorID int64) ([]models.Feed, error) {
	var out []models.Feed
	for _, f := range m.feeds {
		out = append(out, f.Feed)
	}
	return out, nil
}

type mockCache struct {
	entries map[string][]byte
	deleted []string
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := m.entries[key]
	if !ok {
		return appErrors.Clone(appErrors.ErrCacheMiss, "")
	}
	return json.Unmarshal(data, dest)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = data
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.entries, key)
	return nil
}

type mockProfessorLookup struct {
	professors map[int64]*models.Professor
}

func (m *mockProfessorLookup) FindProfessor(ctx context.Context, id int64) (*models.Professor, error) {
	if p, ok := m.professors[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func newFeedService(repo *mockFeedRepo, cache *mockCache, professors *mockProfessorLookup) *FeedService {
	return NewFeedService(repo, cache, professors, validator.New(), zap.NewNop(), FeedConfig{
		PageSize:      20,
		LatestCount:   5,
		CountCacheTTL: time.Minute,
	})
}

func TestFeedServiceUnreadCountCachesResult(t *testing.T) {
	repo := &mockFeedRepo{unread: 4}
	cache := &mockCache{}
	svc := newFeedService(repo, cache, &mockProfessorLookup{})

	count, err := svc.UnreadCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 1, repo.unreadCalls)

	count, err = svc.UnreadCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 1, repo.unreadCalls)
}

func TestFeedServiceMarkReadInvalidatesCount(t *testing.T) {
	repo := &mockFeedRepo{}
	cache := &mockCache{entries: map[string][]byte{"feeds:unread:1": []byte("4")}}
	svc := newFeedService(repo, cache, &mockProfessorLookup{})

	require.NoError(t, svc.MarkRead(context.Background(), 1, 50))
	assert.Equal(t, []string{"feeds:unread:1"}, cache.deleted)

	require.NoError(t, svc.MarkRead(context.Background(), 1, 50))
	assert.Len(t, cache.deleted, 1)
}

func TestFeedServiceMarkUnreadRestoresCount(t *testing.T) {
	repo := &mockFeedRepo{read: map[int64]bool{50: true}}
	cache := &mockCache{entries: map[string][]byte{"feeds:unread:1": []byte("3")}}
	svc := newFeedService(repo, cache, &mockProfessorLookup{})

	require.NoError(t, svc.MarkUnread(context.Background(), 1, 50))
	assert.False(t, repo.read[50])
	assert.Equal(t, []string{"feeds:unread:1"}, cache.deleted)

	require.NoError(t, svc.MarkUnread(context.Background(), 1, 50))
	assert.Len(t, cache.deleted, 1)
}

func TestFeedServiceMarkReadBatchCountsChangesOnly(t *testing.T) {
	repo := &mockFeedRepo{read: map[int64]bool{50: true}}
	cache := &mockCache{entries: map[string][]byte{"feeds:unread:1": []byte("4")}}
	svc := newFeedService(repo, cache, &mockProfessorLookup{})

	result, err := svc.MarkReadBatch(context.Background(), 1, []int64{50, 51, 52})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 2, result.Changed)
	assert.Equal(t, []string{"feeds:unread:1"}, cache.deleted)

	result, err = svc.MarkReadBatch(context.Background(), 1, []int64{51, 52})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Changed)
	assert.Len(t, cache.deleted, 1)
}

func TestFeedServiceListPagination(t *testing.T) {
	repo := &mockFeedRepo{feeds: []models.FeedDetail{{Feed: models.Feed{ID: 1, Title: "A"}}}, total: 41}
	svc := newFeedService(repo, &mockCache{}, &mockProfessorLookup{})

	feeds, pagination, err := svc.List(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, feeds, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 41, pagination.TotalCount)
}

func TestFeedServiceGetUnknownFeed(t *testing.T) {
	svc := newFeedService(&mockFeedRepo{}, &mockCache{}, &mockProfessorLookup{})

	_, err := svc.Get(context.Background(), 1, 404)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFeedServicePostProfessorFeed(t *testing.T) {
	repo := &mockFeedRepo{}
	professors := &mockProfessorLookup{professors: map[int64]*models.Professor{5: {ID: 5, FirstName: "Ada", LastName: "Rossi"}}}
	svc := newFeedService(repo, &mockCache{}, professors)

	feed, err := svc.PostProfessorFeed(context.Background(), 5, PostFeedRequest{Title: "Office hours", Body: "Moved to Friday"})
	require.NoError(t, err)
	assert.Equal(t, int64(99), feed.ID)
	require.NotNil(t, feed.ProfessorID)
	assert.Equal(t, int64(5), *feed.ProfessorID)

	_, err = svc.PostProfessorFeed(context.Background(), 6, PostFeedRequest{Title: "x", Body: "y"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.PostProfessorFeed(context.Background(), 5, PostFeedRequest{Title: "", Body: ""})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
