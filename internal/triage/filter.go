// Package triage implements the pure read side of the ticket dashboard:
// filtering, sorting, grouping, derived flags, and analytics. Every
// function here operates on a snapshot slice and never mutates shared
// state, so callers may run them on any goroutine without locking.
package triage

import (
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// PriorityFilter is a selectable priority bucket. Unlike
// domain.TicketPriority it includes "none", because no-priority is itself
// a filterable state.
type PriorityFilter string

const (
	PriorityFilterCritical PriorityFilter = "critical"
	PriorityFilterHigh     PriorityFilter = "high"
	PriorityFilterMedium   PriorityFilter = "medium"
	PriorityFilterLow      PriorityFilter = "low"
	PriorityFilterNone     PriorityFilter = "none"
)

// Assignment filter selections. Besides the two sentinels, any admin id is
// a valid selection.
const (
	AssignmentUnassigned = "unassigned"
	AssignmentMine       = "mine"
)

// Criteria captures every filter axis. The zero value of each axis is its
// identity: an empty slice or string matches everything rather than
// nothing. Axes combine with logical AND; multiple values within one axis
// combine with OR.
type Criteria struct {
	Search      string
	Statuses    []domain.TicketStatus
	Priorities  []PriorityFilter
	Assignments []string
	TagIDs      []string
	CreatedFrom *time.Time
	CreatedTo   *time.Time

	// CurrentAdminID resolves the "mine" assignment selection. It is not
	// itself a filter axis.
	CurrentAdminID string
}

// FilterBySearch keeps tickets whose subject, requester name, or initial
// message contains the query, case-insensitively. A ticket matches if any
// scanned field matches.
func FilterBySearch(tickets []domain.Ticket, query string) []domain.Ticket {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return tickets
	}
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if strings.Contains(strings.ToLower(t.Subject), query) ||
			strings.Contains(strings.ToLower(t.RequesterName), query) ||
			strings.Contains(strings.ToLower(t.Message), query) {
			out = append(out, t)
		}
	}
	return out
}

// FilterByStatuses keeps tickets whose status is in the set. An empty set
// is the identity.
func FilterByStatuses(tickets []domain.Ticket, statuses []domain.TicketStatus) []domain.Ticket {
	if len(statuses) == 0 {
		return tickets
	}
	allowed := make(map[domain.TicketStatus]struct{}, len(statuses))
	for _, s := range statuses {
		allowed[s] = struct{}{}
	}
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if _, ok := allowed[t.Status]; ok {
			out = append(out, t)
		}
	}
	return out
}

// FilterByPriorities keeps tickets whose priority bucket is in the set,
// where PriorityFilterNone selects tickets without a priority.
func FilterByPriorities(tickets []domain.Ticket, priorities []PriorityFilter) []domain.Ticket {
	if len(priorities) == 0 {
		return tickets
	}
	allowed := make(map[PriorityFilter]struct{}, len(priorities))
	for _, p := range priorities {
		allowed[p] = struct{}{}
	}
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if _, ok := allowed[priorityBucket(t.Priority)]; ok {
			out = append(out, t)
		}
	}
	return out
}

func priorityBucket(p *domain.TicketPriority) PriorityFilter {
	if p == nil {
		return PriorityFilterNone
	}
	return PriorityFilter(*p)
}

// FilterByAssignment keeps tickets matching any selection: "unassigned",
// "mine" (resolved against currentAdminID), or a specific admin id.
func FilterByAssignment(tickets []domain.Ticket, selections []string, currentAdminID string) []domain.Ticket {
	if len(selections) == 0 {
		return tickets
	}
	wantUnassigned := false
	adminIDs := make(map[string]struct{}, len(selections))
	for _, sel := range selections {
		switch sel {
		case AssignmentUnassigned:
			wantUnassigned = true
		case AssignmentMine:
			if currentAdminID != "" {
				adminIDs[currentAdminID] = struct{}{}
			}
		default:
			adminIDs[sel] = struct{}{}
		}
	}
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.AssigneeID == nil {
			if wantUnassigned {
				out = append(out, t)
			}
			continue
		}
		if _, ok := adminIDs[*t.AssigneeID]; ok {
			out = append(out, t)
		}
	}
	return out
}

// FilterByTags keeps tickets carrying any tag in the set (union
// semantics within the axis).
func FilterByTags(tickets []domain.Ticket, tagIDs []string) []domain.Ticket {
	if len(tagIDs) == 0 {
		return tickets
	}
	wanted := make(map[string]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		wanted[id] = struct{}{}
	}
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		for _, tag := range t.Tags {
			if _, ok := wanted[tag.ID]; ok {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// FilterByCreatedRange keeps tickets created within [from, to], both
// bounds inclusive. A nil bound is open.
func FilterByCreatedRange(tickets []domain.Ticket, from, to *time.Time) []domain.Ticket {
	if from == nil && to == nil {
		return tickets
	}
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if from != nil && t.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && t.CreatedAt.After(*to) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ApplyAllFilters composes every active predicate with logical AND. With
// all-identity criteria the input comes back unchanged and in order.
func ApplyAllFilters(tickets []domain.Ticket, c Criteria) []domain.Ticket {
	out := FilterBySearch(tickets, c.Search)
	out = FilterByStatuses(out, c.Statuses)
	out = FilterByPriorities(out, c.Priorities)
	out = FilterByAssignment(out, c.Assignments, c.CurrentAdminID)
	out = FilterByTags(out, c.TagIDs)
	out = FilterByCreatedRange(out, c.CreatedFrom, c.CreatedTo)
	return out
}

// HasActiveFilters reports whether at least one criterion deviates from
// its identity value. Consumers use it to distinguish "no tickets" from
// "no tickets match your filters".
func HasActiveFilters(c Criteria) bool {
	return strings.TrimSpace(c.Search) != "" ||
		len(c.Statuses) > 0 ||
		len(c.Priorities) > 0 ||
		len(c.Assignments) > 0 ||
		len(c.TagIDs) > 0 ||
		c.CreatedFrom != nil ||
		c.CreatedTo != nil
}

// Fingerprint returns a canonical identifier for the criteria, used by
// the pagination controller to detect criteria changes and discard stale
// page fetches. Equal criteria always produce equal fingerprints
// regardless of slice ordering.
func (c Criteria) Fingerprint() string {
	var b strings.Builder
	b.WriteString("q=")
	b.WriteString(strings.ToLower(strings.TrimSpace(c.Search)))
	b.WriteString(";s=")
	b.WriteString(strings.Join(sortedStrings(statusStrings(c.Statuses)), ","))
	b.WriteString(";p=")
	b.WriteString(strings.Join(sortedStrings(priorityStrings(c.Priorities)), ","))
	b.WriteString(";a=")
	b.WriteString(strings.Join(sortedStrings(append([]string{}, c.Assignments...)), ","))
	b.WriteString(";t=")
	b.WriteString(strings.Join(sortedStrings(append([]string{}, c.TagIDs...)), ","))
	b.WriteString(";from=")
	if c.CreatedFrom != nil {
		b.WriteString(c.CreatedFrom.UTC().Format(time.RFC3339))
	}
	b.WriteString(";to=")
	if c.CreatedTo != nil {
		b.WriteString(c.CreatedTo.UTC().Format(time.RFC3339))
	}
	return b.String()
}

func sortedStrings(in []string) []string {
	sort.Strings(in)
	return in
}

func statusStrings(in []domain.TicketStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func priorityStrings(in []PriorityFilter) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = string(p)
	}
	return out
}
