package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// ValidStatus reports whether s is one of the known ticket statuses.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates triage urgency. Tickets may carry no priority
// at all; that state is modeled as a nil *TicketPriority, not a sentinel
// value.
type TicketPriority string

const (
	TicketPriorityCritical TicketPriority = "critical"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityLow      TicketPriority = "low"
)

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityCritical, TicketPriorityHigh, TicketPriorityMedium, TicketPriorityLow:
		return true
	}
	return false
}

var priorityWeights = map[TicketPriority]int{
	TicketPriorityCritical: 4,
	TicketPriorityHigh:     3,
	TicketPriorityMedium:   2,
	TicketPriorityLow:      1,
}

// PriorityWeight maps a priority to its sort weight. A nil priority
// weighs 0, below low.
func PriorityWeight(p *TicketPriority) int {
	if p == nil {
		return 0
	}
	return priorityWeights[*p]
}

// Ticket is the aggregate for a support request and its thread. Status and
// priority are independent axes: closing a ticket does not clear priority,
// and unassigning does not change status.
type Ticket struct {
	ID             string
	OrgID          string
	Subject        string
	Message        string
	RequesterName  string
	RequesterEmail string
	Status         TicketStatus
	Priority       *TicketPriority
	AssigneeID     *string
	Responses      []Response
	Tags           []Tag
	CreatedAt      time.Time
}

// HasTag reports whether the ticket carries the given tag.
func (t *Ticket) HasTag(tagID string) bool {
	for _, tag := range t.Tags {
		if tag.ID == tagID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the ticket so read-side snapshots cannot
// observe a torn write.
func (t Ticket) Clone() Ticket {
	out := t
	if t.Responses != nil {
		out.Responses = make([]Response, len(t.Responses))
		copy(out.Responses, t.Responses)
		for i := range out.Responses {
			out.Responses[i] = out.Responses[i].clone()
		}
	}
	if t.Tags != nil {
		out.Tags = make([]Tag, len(t.Tags))
		copy(out.Tags, t.Tags)
	}
	return out
}
