package domain

import "time"

// InternalNote is an admin-only annotation on a ticket, never surfaced to
// the requester. Within a ticket's note list, pinned notes precede
// unpinned notes; within each partition, ascending creation order. That
// ordering is recomputed on every read, never persisted.
type InternalNote struct {
	ID        string
	TicketID  string
	AuthorID  string
	Text      string
	Pinned    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
