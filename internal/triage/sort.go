package triage

import (
	"sort"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// SortMode selects a ticket ordering.
type SortMode string

const (
	SortNewest    SortMode = "date-newest"
	SortOldest    SortMode = "date-oldest"
	SortPriority  SortMode = "priority"
	SortResponses SortMode = "responses"
	SortUpdated   SortMode = "updated"
)

// LastActivity is the ticket's creation time or the newest response time,
// whichever is later. A ticket with zero responses sorts by its own
// creation time.
func LastActivity(t domain.Ticket) time.Time {
	latest := t.CreatedAt
	for _, r := range t.Responses {
		if r.CreatedAt.After(latest) {
			latest = r.CreatedAt
		}
	}
	return latest
}

// SortTickets returns a new slice ordered by the given mode. Every mode is
// a strict ordering: ties fall through to newest-first and finally to id,
// so re-sorting sorted data yields identical output. An unknown mode
// defaults to newest-first rather than failing, keeping forward-compatible
// mode strings harmless.
func SortTickets(tickets []domain.Ticket, mode SortMode) []domain.Ticket {
	out := make([]domain.Ticket, len(tickets))
	copy(out, tickets)

	var less func(a, b domain.Ticket) bool
	switch mode {
	case SortOldest:
		less = func(a, b domain.Ticket) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		}
	case SortPriority:
		less = func(a, b domain.Ticket) bool {
			wa, wb := domain.PriorityWeight(a.Priority), domain.PriorityWeight(b.Priority)
			if wa != wb {
				return wa > wb
			}
			return newestFirst(a, b)
		}
	case SortResponses:
		less = func(a, b domain.Ticket) bool {
			if len(a.Responses) != len(b.Responses) {
				return len(a.Responses) > len(b.Responses)
			}
			return newestFirst(a, b)
		}
	case SortUpdated:
		less = func(a, b domain.Ticket) bool {
			la, lb := LastActivity(a), LastActivity(b)
			if !la.Equal(lb) {
				return la.After(lb)
			}
			return newestFirst(a, b)
		}
	default: // SortNewest and unrecognized modes
		less = newestFirst
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func newestFirst(a, b domain.Ticket) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}
