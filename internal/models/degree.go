package models

// Degree is an academic program (e.g. a bachelor's or master's course).
type Degree struct {
	ID           int64  `db:"id" json:"id"`
	Code         string `db:"code" json:"code"`
	Name         string `db:"name" json:"name"`
	CategoryCode string `db:"category_code" json:"category_code"`
	CategoryDesc string `db:"category_desc" json:"category"`
}

// Curriculum is a track within a Degree. (code, degree_id) is unique.
type Curriculum struct {
	ID       int64  `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	DegreeID int64  `db:"degree_id" json:"degree_id"`
}
