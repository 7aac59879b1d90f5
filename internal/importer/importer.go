// Package importer loads the university's exported catalogue files into the
// database. Each record is written in its own statement; a row that
// violates a constraint is logged and skipped so one bad line never aborts
// a batch.
package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/univecal/unical-api/internal/models"
	"github.com/univecal/unical-api/internal/repository"
)

// lessonDateFormat matches the timestamps in the calendar export.
const lessonDateFormat = "02-01-2006 15:04:05"

// Stats counts the outcome of one import run.
type Stats struct {
	Processed int
	Created   int
	Skipped   int
}

// Importer drives the batch import subcommands.
type Importer struct {
	repo   *repository.ImportRepository
	logger *zap.Logger
}

// New constructs an Importer.
func New(repo *repository.ImportRepository, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{repo: repo, logger: logger}
}

// Locations imports the campus locations CSV. Expected columns: ID, NOME,
// GOOGLE_SEDE (a "lng,lat" pair), and optionally INDIRIZZO.
func (i *Importer) Locations(ctx context.Context, path string) (*Stats, error) {
	stats := &Stats{}
	err := i.eachCSVRow(path, func(line int, row map[string]string) {
		stats.Processed++
		loc := &models.Location{
			Code: row["ID"],
			Name: row["NOME"],
		}
		if addr := row["INDIRIZZO"]; addr != "" {
			loc.Address = &addr
		}
		if coords := strings.SplitN(row["GOOGLE_SEDE"], ",", 3); len(coords) >= 2 {
			if lng, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64); err == nil {
				loc.Lng = &lng
			}
			if lat, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64); err == nil {
				loc.Lat = &lat
			}
		}
		if _, err := i.repo.UpsertLocation(ctx, loc); err != nil {
			i.skipRow(stats, line, err)
		} else {
			stats.Created++
		}
	})
	return stats, err
}

// Classrooms imports the classrooms CSV. Expected columns: ID, NOME,
// CAPIENZA, SEDE_ID (the location code).
func (i *Importer) Classrooms(ctx context.Context, path string) (*Stats, error) {
	stats := &Stats{}
	err := i.eachCSVRow(path, func(line int, row map[string]string) {
		stats.Processed++
		room := &models.Classroom{
			Code: row["ID"],
			Name: row["NOME"],
		}
		if capacity, err := strconv.Atoi(row["CAPIENZA"]); err == nil {
			room.Capacity = &capacity
		}
		if code := row["SEDE_ID"]; code != "" {
			locID, err := i.repo.FindLocationIDByCode(ctx, code)
			if err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					i.skipRow(stats, line, err)
					return
				}
				i.logger.Sugar().Warnw("unknown location code", "line", line, "code", code)
			} else {
				room.LocationID = &locID
			}
		}
		if _, err := i.repo.UpsertClassroom(ctx, room); err != nil {
			i.skipRow(stats, line, err)
		} else {
			stats.Created++
		}
	})
	return stats, err
}

// Courses imports the teaching activities CSV. Each row carries its
// professor, degree and curriculum, which are created on first sight; the
// course itself is keyed on the activity ID (AF_ID) and linked to the
// row's curriculum.
func (i *Importer) Courses(ctx context.Context, path string) (*Stats, error) {
	stats := &Stats{}
	err := i.eachCSVRow(path, func(line int, row map[string]string) {
		stats.Processed++

		profID, err := strconv.ParseInt(row["DOCENTE_ID"], 10, 64)
		if err != nil {
			i.skipRow(stats, line, fmt.Errorf("bad professor id %q", row["DOCENTE_ID"]))
			return
		}
		prof := &models.Professor{ID: profID, FirstName: row["NOME"], LastName: row["COGNOME"]}
		if email := row["MAIL"]; email != "" {
			prof.Email = &email
		}
		if err := i.repo.UpsertProfessor(ctx, prof); err != nil {
			i.skipRow(stats, line, err)
			return
		}

		degreeID, err := i.repo.UpsertDegree(ctx, &models.Degree{
			Code:         row["CDS_COD"],
			Name:         row["NOME_CDS"],
			CategoryCode: row["TIPO_CORSO_COD"],
		})
		if err != nil {
			i.skipRow(stats, line, err)
			return
		}

		curriculumID, err := i.repo.UpsertCurriculum(ctx, &models.Curriculum{
			Code:     row["PDS_COD"],
			Name:     row["PDS_DES"],
			DegreeID: degreeID,
		})
		if err != nil {
			i.skipRow(stats, line, err)
			return
		}

		calendarID, err := strconv.ParseInt(row["AF_ID"], 10, 64)
		if err != nil {
			i.skipRow(stats, line, fmt.Errorf("bad activity id %q", row["AF_ID"]))
			return
		}
		if err := i.repo.EnsureCalendar(ctx, calendarID); err != nil {
			i.skipRow(stats, line, err)
			return
		}

		course := &models.Course{
			ID:          calendarID,
			Code:        row["AF_GEN_COD"],
			Name:        row["DES"],
			Credit:      atoiOrZero(row["PESO"]),
			TotalCredit: atoiOrZero(row["PESO_TOTALE"]),
			Year:        atoiOrZero(row["ANNO_CORSO"]),
			CalendarID:  &calendarID,
			ProfessorID: &profID,
		}
		if period := row["DES_TIPO_CICLO"]; period != "" {
			course.Period = &period
		}
		if partition := row["PART_STU_DES"]; partition != "" {
			course.Partition = &partition
		}
		if err := i.repo.UpsertCourse(ctx, course); err != nil {
			i.skipRow(stats, line, err)
			return
		}
		if err := i.repo.LinkCourseCurriculum(ctx, course.ID, curriculumID); err != nil {
			i.skipRow(stats, line, err)
			return
		}
		stats.Created++
	})
	return stats, err
}

// lessonEvent is one entry of the calendar export.
type lessonEvent struct {
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
}

// Lessons imports the lessons JSON: a map from calendar ID to its events.
// Duplicate slots are skipped; classrooms named in the event description
// are attached to the lesson.
func (i *Importer) Lessons(ctx context.Context, path string) (*Stats, error) {
	stats := &Stats{}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var data map[string][]lessonEvent
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	for rawID, events := range data {
		calendarID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			i.logger.Sugar().Warnw("skipping calendar with bad id", "id", rawID)
			continue
		}
		if err := i.repo.EnsureCalendar(ctx, calendarID); err != nil {
			return stats, err
		}
		for _, event := range events {
			stats.Processed++
			if err := i.importLesson(ctx, calendarID, event, stats); err != nil {
				i.logger.Sugar().Warnw("lesson skipped", "calendar_id", calendarID, "error", err)
				stats.Skipped++
			}
		}
	}
	return stats, nil
}

func (i *Importer) importLesson(ctx context.Context, calendarID int64, event lessonEvent, stats *Stats) error {
	start, err := time.Parse(lessonDateFormat, event.Start)
	if err != nil {
		return fmt.Errorf("bad start %q: %w", event.Start, err)
	}
	end, err := time.Parse(lessonDateFormat, event.End)
	if err != nil {
		return fmt.Errorf("bad end %q: %w", event.End, err)
	}
	if !start.Before(end) {
		return fmt.Errorf("start %s not before end %s", event.Start, event.End)
	}

	lesson := &models.Lesson{Start: start, End: end, CalendarID: calendarID}
	if event.Description != "" {
		description := event.Description
		lesson.Description = &description
	}

	created, err := i.repo.InsertLesson(ctx, lesson)
	if err != nil {
		return err
	}
	if !created {
		stats.Skipped++
		return nil
	}
	stats.Created++

	if event.Description != "" {
		rooms, err := i.repo.ClassroomsMatching(ctx, event.Description)
		if err != nil {
			i.logger.Sugar().Warnw("classroom match failed", "lesson_id", lesson.ID, "error", err)
			return nil
		}
		for _, room := range rooms {
			if err := i.repo.LinkLessonClassroom(ctx, lesson.ID, room.ID); err != nil {
				i.logger.Sugar().Warnw("classroom link failed", "lesson_id", lesson.ID, "classroom_id", room.ID, "error", err)
			}
		}
	}
	return nil
}

// eachCSVRow streams a CSV file with a header line, invoking fn with each
// row as a column-name map.
func (i *Importer) eachCSVRow(path string, fn func(line int, row map[string]string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s line %d: %w", path, line+1, err)
		}
		line++

		row := make(map[string]string, len(header))
		for idx, name := range header {
			if idx < len(record) {
				row[strings.TrimSpace(name)] = strings.TrimSpace(record[idx])
			}
		}
		fn(line, row)
	}
}

func (i *Importer) skipRow(stats *Stats, line int, err error) {
	stats.Skipped++
	i.logger.Sugar().Warnw("row skipped", "line", line, "error", err)
}

// atoiOrZero parses loosely formatted numeric columns; blanks and junk
// become zero rather than aborting the whole file.
func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
