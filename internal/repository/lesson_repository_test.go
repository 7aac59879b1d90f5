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

func TestLessonRepositoryRescheduleCreatesFeeds(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db, NewQueryObserver(zap.NewNop(), time.Second))

	oldStart := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	oldEnd := oldStart.Add(2 * time.Hour)
	newStart := oldStart.Add(24 * time.Hour)
	newEnd := oldEnd.Add(24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "start", "end", "description", "has_changed", "calendar_id"}).
			AddRow(int64(10), oldStart, oldEnd, nil, false, int64(500)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE lessons SET start = $1, "end" = $2, has_changed = TRUE WHERE id = $3`)).
		WithArgs(newStart, newEnd, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM courses WHERE calendar_id = $1")).
		WithArgs(int64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Algorithms").AddRow("Data Structures"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO feeds (title, body, timestamp, lesson_id)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(70)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO feeds (title, body, timestamp, lesson_id)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(71)))
	mock.ExpectCommit()

	result, err := repo.Reschedule(context.Background(), 10, newStart, newEnd, "", "")
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, oldStart, result.OldStart)
	require.Equal(t, newStart, result.Lesson.Start)
	require.True(t, result.Lesson.HasChanged)
	require.Equal(t, []int64{70, 71}, result.FeedIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryRescheduleSameSlotIsNoOp(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db, NewQueryObserver(zap.NewNop(), time.Second))

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "start", "end", "description", "has_changed", "calendar_id"}).
			AddRow(int64(10), start, end, nil, false, int64(500)))
	mock.ExpectCommit()

	result, err := repo.Reschedule(context.Background(), 10, start, end, "", "")
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.Empty(t, result.FeedIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListByUserPushesRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db, NewQueryObserver(zap.NewNop(), time.Second))

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`l\.start >= \$2 AND l\.start <= \$3`).
		WithArgs(int64(1), from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "start", "end", "description", "has_changed", "calendar_id", "course_name", "course_code", "classrooms"}).
			AddRow(int64(3), from.Add(9*time.Hour), from.Add(11*time.Hour), nil, false, int64(500), "Algorithms", "CT0110", "Aula 1"))

	lessons, err := repo.ListByUser(context.Background(), 1, models.LessonRange{Start: &from, End: &to})
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	require.Equal(t, "Algorithms", *lessons[0].CourseName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryLocationsFirstAppearanceOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db, NewQueryObserver(zap.NewNop(), time.Second))

	cols := []string{"id", "code", "name", "address", "lat", "lng", "polyline", "classroom_name"}
	mock.ExpectQuery("JOIN held_at").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(2), "B2", "Science Campus", nil, nil, nil, nil, "Aula 3").
			AddRow(int64(1), "B1", "Main Building", nil, nil, nil, nil, "Aula 1").
			AddRow(int64(2), "B2", "Science Campus", nil, nil, nil, nil, "Aula 3").
			AddRow(int64(2), "B2", "Science Campus", nil, nil, nil, nil, "Lab A"))

	locations, err := repo.Locations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, locations, 2)
	require.Equal(t, "Science Campus", locations[0].Name)
	require.Equal(t, "Aula 3, Lab A", locations[0].Classrooms)
	require.Equal(t, "Main Building", locations[1].Name)
	require.Equal(t, "Aula 1", locations[1].Classrooms)
	require.NoError(t, mock.ExpectationsWereMet())
}
