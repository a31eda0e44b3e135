package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/service"
)

// TagResponse is one catalog tag.
type TagResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// TicketSummary is one board row.
type TicketSummary struct {
	ID                 string        `json:"id"`
	Subject            string        `json:"subject"`
	RequesterName      string        `json:"requester_name"`
	RequesterEmail     string        `json:"requester_email"`
	Status             string        `json:"status"`
	Priority           *string       `json:"priority"`
	AssigneeID         *string       `json:"assignee_id"`
	Tags               []TagResponse `json:"tags"`
	ResponseCount      int           `json:"response_count"`
	UnreadCount        int           `json:"unread_count"`
	WaitingForResponse bool          `json:"waiting_for_response"`
	NoteCount          int           `json:"note_count"`
	HasPinnedNote      bool          `json:"has_pinned_note"`
	LastActivity       time.Time     `json:"last_activity"`
	CreatedAt          time.Time     `json:"created_at"`
}

// ResponseView is one message in a ticket's thread.
type ResponseView struct {
	ID          string               `json:"id"`
	IsAdmin     bool                 `json:"is_admin"`
	AuthorID    *string              `json:"author_id"`
	Body        string               `json:"body"`
	IsRead      bool                 `json:"is_read"`
	Attachments []AttachmentResponse `json:"attachments,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// TicketDetail is a summary plus the initial message and full thread.
type TicketDetail struct {
	TicketSummary
	Message   string         `json:"message"`
	Responses []ResponseView `json:"responses"`
}

// BoardResponse is the board read payload.
type BoardResponse struct {
	Tickets     []TicketSummary     `json:"tickets"`
	Groups      map[string][]string `json:"groups,omitempty"`
	TotalUnread int                 `json:"total_unread"`
	TotalLoaded int                 `json:"total_loaded"`
	HasMore     bool                `json:"has_more"`
	NextCursor  string              `json:"next_cursor,omitempty"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdatePriorityRequest payload; null priority clears it.
type UpdatePriorityRequest struct {
	Priority *string `json:"priority"`
}

// UpdateAssigneeRequest payload; null assignee unassigns.
type UpdateAssigneeRequest struct {
	AssigneeID *string `json:"assignee_id"`
}

// CreateResponseRequest payload.
type CreateResponseRequest struct {
	Body string `json:"body"`
}

// TagRequest payload for catalog create/update.
type TagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// FromTicketView maps a service view into the wire summary.
func FromTicketView(v service.TicketView) TicketSummary {
	t := v.Ticket
	summary := TicketSummary{
		ID:                 t.ID,
		Subject:            t.Subject,
		RequesterName:      t.RequesterName,
		RequesterEmail:     t.RequesterEmail,
		Status:             string(t.Status),
		AssigneeID:         t.AssigneeID,
		Tags:               fromTags(t.Tags),
		ResponseCount:      len(t.Responses),
		UnreadCount:        v.UnreadCount,
		WaitingForResponse: v.WaitingForResponse,
		NoteCount:          v.NoteCount,
		HasPinnedNote:      v.HasPinnedNote,
		LastActivity:       v.LastActivity,
		CreatedAt:          t.CreatedAt,
	}
	if t.Priority != nil {
		p := string(*t.Priority)
		summary.Priority = &p
	}
	return summary
}

// FromTicketDetail maps a view into the detail payload with the thread.
func FromTicketDetail(v service.TicketView) TicketDetail {
	detail := TicketDetail{
		TicketSummary: FromTicketView(v),
		Message:       v.Ticket.Message,
		Responses:     make([]ResponseView, 0, len(v.Ticket.Responses)),
	}
	for _, resp := range v.Ticket.Responses {
		detail.Responses = append(detail.Responses, FromResponse(resp))
	}
	return detail
}

// FromResponse maps one thread message.
func FromResponse(resp domain.Response) ResponseView {
	view := ResponseView{
		ID:        resp.ID,
		IsAdmin:   resp.IsAdmin,
		AuthorID:  resp.AuthorID,
		Body:      resp.Body,
		IsRead:    resp.IsRead,
		CreatedAt: resp.CreatedAt,
	}
	for _, att := range resp.Attachments {
		view.Attachments = append(view.Attachments, AttachmentResponse{
			ID:        att.ID,
			FileName:  att.FileName,
			MimeType:  att.MimeType,
			SizeBytes: att.SizeBytes,
		})
	}
	return view
}

func fromTags(tags []domain.Tag) []TagResponse {
	out := make([]TagResponse, 0, len(tags))
	for _, tag := range tags {
		out = append(out, TagResponse{ID: tag.ID, Name: tag.Name, Color: tag.Color, Icon: tag.Icon})
	}
	return out
}
