package importer

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/univecal/unical-api/internal/repository"
)

func newImporterMock(t *testing.T) (*Importer, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")
	return New(repository.NewImportRepository(db), zap.NewNop()), mock
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImporterLocationsParsesCoordinates(t *testing.T) {
	imp, mock := newImporterMock(t)
	path := writeFile(t, "locations.csv",
		"ID,NOME,GOOGLE_SEDE,INDIRIZZO\n"+
			"B1,Main Building,\"12.32,45.43\",Via Torino 155\n"+
			"B2,Science Campus,,\n")

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO locations (code, name, address, lat, lng, polyline)`)).
		WithArgs("B1", "Main Building", "Via Torino 155", 45.43, 12.32, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO locations (code, name, address, lat, lng, polyline)`)).
		WithArgs("B2", "Science Campus", nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	stats, err := imp.Locations(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Processed)
	require.Equal(t, 2, stats.Created)
	require.Zero(t, stats.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImporterClassroomsResolvesLocation(t *testing.T) {
	imp, mock := newImporterMock(t)
	path := writeFile(t, "classrooms.csv",
		"ID,NOME,CAPIENZA,SEDE_ID\n"+
			"A1,Aula 1,120,B1\n")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM locations WHERE code = $1`)).
		WithArgs("B1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO classrooms (code, name, capacity, location_id)`)).
		WithArgs("A1", "Aula 1", 120, int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	stats, err := imp.Classrooms(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImporterLessonsSkipsDuplicateSlots(t *testing.T) {
	imp, mock := newImporterMock(t)
	path := writeFile(t, "lessons.json", `{
		"348921": [
			{"start": "02-03-2026 09:00:00", "end": "02-03-2026 11:00:00", "description": "ALGORITHMS Aula 1"},
			{"start": "02-03-2026 09:00:00", "end": "02-03-2026 11:00:00", "description": "ALGORITHMS Aula 1"}
		]
	}`)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO calendars (id) VALUES ($1) ON CONFLICT DO NOTHING`)).
		WithArgs(int64(348921)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO lessons (start, "end", description, calendar_id)`)).
		WithArgs(start, end, "ALGORITHMS Aula 1", int64(348921)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(55)))
	mock.ExpectQuery(`WHERE \$1 ILIKE`).
		WithArgs("ALGORITHMS Aula 1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "capacity", "location_id"}).
			AddRow(int64(3), "A1", "Aula 1", nil, nil))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO held_at (lesson_id, classroom_id)`)).
		WithArgs(int64(55), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO lessons (start, "end", description, calendar_id)`)).
		WithArgs(start, end, "ALGORITHMS Aula 1", int64(348921)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	stats, err := imp.Lessons(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Processed)
	require.Equal(t, 1, stats.Created)
	require.Equal(t, 1, stats.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImporterLessonsWithoutDescriptionConverge(t *testing.T) {
	imp, mock := newImporterMock(t)
	path := writeFile(t, "lessons.json", `{
		"348921": [
			{"start": "02-03-2026 09:00:00", "end": "02-03-2026 11:00:00"},
			{"start": "02-03-2026 09:00:00", "end": "02-03-2026 11:00:00"}
		]
	}`)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	// The arbiter must coalesce NULL descriptions or identical slots would
	// never conflict and every re-import would duplicate them.
	insert := regexp.QuoteMeta(`ON CONFLICT (start, "end", calendar_id, (COALESCE(description, ''))) DO NOTHING`)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO calendars (id) VALUES ($1) ON CONFLICT DO NOTHING`)).
		WithArgs(int64(348921)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(insert).
		WithArgs(start, end, nil, int64(348921)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(56)))
	mock.ExpectQuery(insert).
		WithArgs(start, end, nil, int64(348921)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	stats, err := imp.Lessons(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Processed)
	require.Equal(t, 1, stats.Created)
	require.Equal(t, 1, stats.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImporterLessonsRejectsInvertedSlot(t *testing.T) {
	imp, mock := newImporterMock(t)
	path := writeFile(t, "lessons.json", `{
		"348921": [
			{"start": "02-03-2026 11:00:00", "end": "02-03-2026 09:00:00", "description": "x"}
		]
	}`)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO calendars (id) VALUES ($1) ON CONFLICT DO NOTHING`)).
		WithArgs(int64(348921)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	stats, err := imp.Lessons(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Processed)
	require.Zero(t, stats.Created)
	require.Equal(t, 1, stats.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}
