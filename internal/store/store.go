package store

import (
	"sync"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// Store holds the currently fetched tickets and exposes read access. It is
// the single source of truth for all derived views and the single mutation
// point for the write side: pagination merges, optimistic mutations, and
// realtime ingress all pass through its methods under one lock.
type Store struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]domain.Ticket
}

// New creates an empty store.
func New() *Store {
	return &Store{byID: make(map[string]domain.Ticket)}
}

// TicketPatch shallow-merges fields into a ticket. Nil pointer fields and
// false Set* flags leave the current value untouched; priority and
// assignee need explicit flags because nil is a meaningful target value
// for both.
type TicketPatch struct {
	Status      *domain.TicketStatus
	SetPriority bool
	Priority    *domain.TicketPriority
	SetAssignee bool
	AssigneeID  *string
	Tags        []domain.Tag
	Responses   []domain.Response
}

// Load replaces the full working set, used for the initial fetch or a
// filter-changed refetch. If the input repeats an id, the later record
// wins.
func (s *Store) Load(tickets []domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.byID = make(map[string]domain.Ticket, len(tickets))
	for _, t := range tickets {
		if _, ok := s.byID[t.ID]; !ok {
			s.order = append(s.order, t.ID)
		}
		s.byID[t.ID] = t.Clone()
	}
}

// Append merges a pagination page: ids already present are skipped, which
// guards against duplicate delivery from a racing reload. Current ordering
// is preserved and new ids go at the end.
func (s *Store) Append(tickets []domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tickets {
		if _, ok := s.byID[t.ID]; ok {
			continue
		}
		s.order = append(s.order, t.ID)
		s.byID[t.ID] = t.Clone()
	}
}

// UpdateTicket shallow-merges the patch into the addressed ticket. A
// missing id is a silent no-op: a mutation landing after the ticket has
// scrolled out of the loaded window must not resurrect it.
func (s *Store) UpdateTicket(id string, patch TicketPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.SetPriority {
		t.Priority = patch.Priority
	}
	if patch.SetAssignee {
		t.AssigneeID = patch.AssigneeID
	}
	if patch.Tags != nil {
		t.Tags = make([]domain.Tag, len(patch.Tags))
		copy(t.Tags, patch.Tags)
	}
	if patch.Responses != nil {
		t.Responses = make([]domain.Response, len(patch.Responses))
		copy(t.Responses, patch.Responses)
	}
	s.byID[id] = t
}

// ReplaceTicket swaps the stored record for a fresh copy, keeping the
// ticket's position in load order. Used by the remote change feed, where
// the refetched row is authoritative and a field-wise merge could keep
// stale children. An absent id is a silent no-op, matching UpdateTicket.
func (s *Store) ReplaceTicket(t domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[t.ID]; !ok {
		return
	}
	s.byID[t.ID] = t.Clone()
}

// AppendResponse adds a response to the owning ticket's thread, used by
// the realtime ingress and by locally sent admin replies. Duplicate
// response ids are skipped; an absent ticket is a silent no-op.
func (s *Store) AppendResponse(ticketID string, resp domain.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[ticketID]
	if !ok {
		return
	}
	for _, existing := range t.Responses {
		if existing.ID == resp.ID {
			return
		}
	}
	t.Responses = append(append([]domain.Response{}, t.Responses...), resp)
	s.byID[ticketID] = t
}

// MarkResponsesRead flags every unread customer response on the ticket as
// acknowledged and returns how many were flipped.
func (s *Store) MarkResponsesRead(ticketID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[ticketID]
	if !ok {
		return 0
	}
	flipped := 0
	responses := make([]domain.Response, len(t.Responses))
	copy(responses, t.Responses)
	for i := range responses {
		if !responses[i].IsAdmin && !responses[i].IsRead {
			responses[i].IsRead = true
			flipped++
		}
	}
	if flipped > 0 {
		t.Responses = responses
		s.byID[ticketID] = t
	}
	return flipped
}

// DetachTag strips the tag from every loaded ticket, used when a catalog
// tag is deleted org-wide.
func (s *Store) DetachTag(tagID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.byID {
		kept := t.Tags[:0:0]
		for _, tag := range t.Tags {
			if tag.ID != tagID {
				kept = append(kept, tag)
			}
		}
		if len(kept) != len(t.Tags) {
			t.Tags = kept
			s.byID[id] = t
		}
	}
}

// RemoveIfPresent drops the ticket from the working set when loaded.
func (s *Store) RemoveIfPresent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the addressed ticket.
func (s *Store) Get(id string) (domain.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return domain.Ticket{}, false
	}
	return t.Clone(), true
}

// All returns a snapshot of the working set in load order. The snapshot is
// a deep copy, so read-side engines may run on any goroutine without
// locking.
func (s *Store) All() []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Ticket, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Len reports the number of loaded tickets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
