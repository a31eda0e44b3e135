package events

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketTagAssigned     EventType = "ticket_tag_assigned"
	EventTicketTagRemoved      EventType = "ticket_tag_removed"
	EventTicketResponsesRead   EventType = "ticket_responses_read"
	EventResponseReceived      EventType = "response_received"
	EventNoteAdded             EventType = "note_added"
	EventNoteDeleted           EventType = "note_deleted"
	EventNotePinToggled        EventType = "note_pin_toggled"
)

// Event represents a domain event emitted by the coordinator and the notes
// subsystem. Payloads carry old and new values, which doubles as the
// mutation audit trail.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// PriorityChangedPayload payload.
type PriorityChangedPayload struct {
	OldPriority *domain.TicketPriority `json:"old_priority,omitempty"`
	NewPriority *domain.TicketPriority `json:"new_priority,omitempty"`
}

// AssignedPayload payload.
type AssignedPayload struct {
	OldAssigneeID *string `json:"old_assignee_id,omitempty"`
	NewAssigneeID *string `json:"new_assignee_id,omitempty"`
}

// TagPayload payload for tag assignment and removal.
type TagPayload struct {
	TagID string `json:"tag_id"`
}

// ResponsesReadPayload payload.
type ResponsesReadPayload struct {
	ReadCount int `json:"read_count"`
}

// ResponseReceivedPayload payload for a response arriving over the
// realtime channel or from a local admin reply.
type ResponseReceivedPayload struct {
	ResponseID string `json:"response_id"`
	IsAdmin    bool   `json:"is_admin"`
}

// NotePayload payload for note lifecycle events.
type NotePayload struct {
	NoteID string `json:"note_id"`
	Pinned bool   `json:"pinned,omitempty"`
}
