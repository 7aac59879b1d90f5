package models

import "time"

// Calendar groups the lessons shared by one or more courses.
type Calendar struct {
	ID int64 `db:"id" json:"id"`
}

// Lesson is a scheduled class occurrence. (start, end, calendar_id,
// description) is unique; has_changed flags a reschedule since import.
type Lesson struct {
	ID          int64     `db:"id" json:"id"`
	Start       time.Time `db:"start" json:"start"`
	End         time.Time `db:"end" json:"end"`
	Description *string   `db:"description" json:"description,omitempty"`
	HasChanged  bool      `db:"has_changed" json:"has_changed"`
	CalendarID  int64     `db:"calendar_id" json:"calendar_id"`
}

// Past reports whether the lesson has already ended.
func (l Lesson) Past() bool {
	return !l.End.After(time.Now().UTC())
}

// LessonDetail is the read model served to schedule views: the lesson plus
// its course and the comma-joined classrooms hosting it.
type LessonDetail struct {
	Lesson
	CourseName *string `db:"course_name" json:"course_name,omitempty"`
	CourseCode *string `db:"course_code" json:"course_code,omitempty"`
	Classrooms *string `db:"classrooms" json:"classrooms,omitempty"`
}

// LessonRange is an optional inclusive [Start, End] window pushed into the
// schedule queries.
type LessonRange struct {
	Start *time.Time
	End   *time.Time
}

// Reschedule is the outcome of a lesson update command.
type Reschedule struct {
	Lesson   Lesson    `json:"lesson"`
	Changed  bool      `json:"changed"`
	OldStart time.Time `json:"old_start"`
	OldEnd   time.Time `json:"old_end"`
	FeedIDs  []int64   `json:"feed_ids,omitempty"`
}
