package models

// Professor is a course instructor imported from the university feed.
type Professor struct {
	ID         int64   `db:"id" json:"id"`
	FirstName  string  `db:"first_name" json:"first_name"`
	LastName   string  `db:"last_name" json:"last_name"`
	Username   *string `db:"username" json:"username,omitempty"`
	Email      *string `db:"email" json:"email,omitempty"`
	AvatarURL  *string `db:"avatar_url" json:"avatar_url,omitempty"`
	AvatarHash *string `db:"avatar_hash" json:"avatar_hash,omitempty"`
}

// FullName returns "First Last" for display and notifications.
func (p Professor) FullName() string {
	return p.FirstName + " " + p.LastName
}
