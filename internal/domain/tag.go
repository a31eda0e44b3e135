package domain

import "time"

// Tag is an organization-scoped label attached to tickets. Tag lifecycle
// is independent of any ticket; the assignment relation is many-to-many.
type Tag struct {
	ID        string
	Name      string
	Color     string
	Icon      string
	CreatedAt time.Time
}
