package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// NoteResponse is one internal note.
type NoteResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateNoteRequest payload.
type CreateNoteRequest struct {
	Text string `json:"text"`
}

// UpdateNoteRequest payload.
type UpdateNoteRequest struct {
	Text string `json:"text"`
}

// TogglePinRequest carries the caller's view of the current pinned state;
// the server flips it.
type TogglePinRequest struct {
	Pinned bool `json:"pinned"`
}

// FromNote maps a note.
func FromNote(note domain.InternalNote) NoteResponse {
	return NoteResponse{
		ID:        note.ID,
		TicketID:  note.TicketID,
		AuthorID:  note.AuthorID,
		Text:      note.Text,
		Pinned:    note.Pinned,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
}
