package domain

import "time"

// Response is one message in a ticket's thread, from either the requester
// or an admin. Insertion order within the owning ticket is meaningful.
//
// IsRead models "acknowledged by an admin" and is only meaningful on
// customer-authored responses; the unread counter in the triage view
// counts customer responses an admin has not yet acknowledged.
type Response struct {
	ID          string
	TicketID    string
	IsAdmin     bool
	AuthorID    *string
	Body        string
	IsRead      bool
	ReadAt      *time.Time
	Attachments []AttachmentReference
	CreatedAt   time.Time
}

func (r Response) clone() Response {
	out := r
	if r.Attachments != nil {
		out.Attachments = make([]AttachmentReference, len(r.Attachments))
		copy(out.Attachments, r.Attachments)
	}
	return out
}

// AttachmentReference points at a file stored outside this core.
type AttachmentReference struct {
	ID         string
	ResponseID string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}
