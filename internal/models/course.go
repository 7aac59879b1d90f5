package models

// Course is a taught unit belonging to a professor and a lesson calendar.
type Course struct {
	ID          int64   `db:"id" json:"id"`
	Code        string  `db:"code" json:"code"`
	Name        string  `db:"name" json:"name"`
	Field       *string `db:"field" json:"field,omitempty"`
	Credit      int     `db:"credit" json:"credit"`
	TotalCredit int     `db:"total_credit" json:"total_credit"`
	Period      *string `db:"period" json:"period,omitempty"`
	Year        int     `db:"year" json:"year"`
	Partition   *string `db:"partition" json:"partition,omitempty"`
	CalendarID  *int64  `db:"calendar_id" json:"calendar_id,omitempty"`
	ProfessorID *int64  `db:"professor_id" json:"professor_id,omitempty"`
}

// CourseDetail augments a course with its professor's display name for
// catalogue listings.
type CourseDetail struct {
	Course
	ProfessorName *string `db:"professor_name" json:"professor,omitempty"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Search   string
	DegreeID *int64
	Year     *int
	Page     int
	PageSize int
}
