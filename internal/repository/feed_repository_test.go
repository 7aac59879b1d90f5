package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univecal/unical-api/internal/models"
)

func feedDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "body", "timestamp", "professor_id", "lesson_id", "professor_name", "read"})
}

func TestFeedRepositoryLatestOrdersNewestFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeedRepository(db, NewQueryObserver(zap.NewNop(), time.Second))

	now := time.Now().UTC()
	profID := int64(7)
	rows := feedDetailRows().
		AddRow(int64(12), "Exam moved", "New date", now, profID, nil, "Ada Lovelace", false).
		AddRow(int64(11), "Office hours", "Cancelled", now, profID, nil, "Ada Lovelace", true)
	mock.ExpectQuery("ORDER BY f.timestamp DESC, f.id DESC").
		WithArgs(int64(1), 5).
		WillReturnRows(rows)

	feeds, err := repo.Latest(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	require.Equal(t, int64(12), feeds[0].ID)
	require.False(t, feeds[0].Read)
	require.True(t, feeds[1].Read)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedRepositoryPaginatedReturnsTotal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeedRepository(db, NewQueryObserver(zap.NewNop(), time.Second))

	mock.ExpectQuery("LIMIT \\$2 OFFSET \\$3").
		WithArgs(int64(1), 20, 20).
		WillReturnRows(feedDetailRows().
			AddRow(int64(5), "Notice", "Body", time.Now().UTC(), nil, int64(40), nil, false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM feeds f")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	feeds, total, err := repo.Paginated(context.Background(), 1, 2, 20)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	require.Equal(t, 21, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedRepositoryMarkReadIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeedRepository(db, NewQueryObserver(zap.NewNop(), time.Second))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reads (user_id, feed_id) VALUES ($1, $2) ON CONFLICT DO NOTHING")).
		WithArgs(int64(1), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reads (user_id, feed_id) VALUES ($1, $2) ON CONFLICT DO NOTHING")).
		WithArgs(int64(1), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkRead(context.Background(), 1, 9)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.MarkRead(context.Background(), 1, 9)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedRepositoryMarkUnreadIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeedRepository(db, NewQueryObserver(zap.NewNop(), time.Second))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reads WHERE user_id = $1 AND feed_id = $2")).
		WithArgs(int64(1), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reads WHERE user_id = $1 AND feed_id = $2")).
		WithArgs(int64(1), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkUnread(context.Background(), 1, 9)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.MarkUnread(context.Background(), 1, 9)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedRepositoryUnreadCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeedRepository(db, NewQueryObserver(zap.NewNop(), time.Second))

	mock.ExpectQuery("NOT EXISTS").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.UnreadCount(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedRepositoryCreateFillsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeedRepository(db, NewQueryObserver(zap.NewNop(), time.Second))

	profID := int64(7)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO feeds (title, body, timestamp, professor_id, lesson_id)")).
		WithArgs("Title", "Body", sqlmock.AnyArg(), profID, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(33)))

	feed := &models.Feed{Title: "Title", Body: "Body", ProfessorID: &profID}
	require.NoError(t, repo.Create(context.Background(), feed))
	require.Equal(t, int64(33), feed.ID)
	require.False(t, feed.Timestamp.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
