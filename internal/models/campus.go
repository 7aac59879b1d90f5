package models

// Location is a campus building hosting classrooms.
type Location struct {
	ID       int64    `db:"id" json:"id"`
	Code     string   `db:"code" json:"code"`
	Name     string   `db:"name" json:"name"`
	Address  *string  `db:"address" json:"address,omitempty"`
	Lat      *float64 `db:"lat" json:"lat,omitempty"`
	Lng      *float64 `db:"lng" json:"lng,omitempty"`
	Polyline *string  `db:"polyline" json:"polyline,omitempty"`
}

// Classroom is a physical teaching room inside a Location.
type Classroom struct {
	ID         int64  `db:"id" json:"id"`
	Code       string `db:"code" json:"code"`
	Name       string `db:"name" json:"name"`
	Capacity   *int   `db:"capacity" json:"capacity,omitempty"`
	LocationID *int64 `db:"location_id" json:"location_id,omitempty"`
}

// UserLocation annotates a location with the comma-joined classroom names
// used by a user's schedule, ordered by first appearance.
type UserLocation struct {
	Location
	Classrooms string `db:"classrooms" json:"classrooms"`
}
