package triage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

func ptrPriority(p domain.TicketPriority) *domain.TicketPriority { return &p }
func ptrString(s string) *string                                 { return &s }
func ptrTime(t time.Time) *time.Time                             { return &t }

func fixtureTickets() []domain.Ticket {
	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	return []domain.Ticket{
		{
			ID: "t1", Subject: "Login broken", RequesterName: "Ada", Message: "cannot sign in",
			Status: domain.TicketStatusOpen, Priority: ptrPriority(domain.TicketPriorityCritical),
			AssigneeID: ptrString("admin-1"),
			Tags:       []domain.Tag{{ID: "tag-bug", Name: "bug"}},
			CreatedAt:  base,
		},
		{
			ID: "t2", Subject: "Billing question", RequesterName: "Grace", Message: "invoice looks wrong",
			Status: domain.TicketStatusInProgress, Priority: ptrPriority(domain.TicketPriorityLow),
			AssigneeID: ptrString("admin-2"),
			Tags:       []domain.Tag{{ID: "tag-billing", Name: "billing"}},
			CreatedAt:  base.Add(24 * time.Hour),
		},
		{
			ID: "t3", Subject: "Feature request", RequesterName: "Linus", Message: "dark mode please",
			Status: domain.TicketStatusClosed, Priority: nil,
			AssigneeID: nil,
			CreatedAt:  base.Add(48 * time.Hour),
		},
	}
}

func TestFilterBySearchScansSubjectRequesterAndMessage(t *testing.T) {
	tickets := fixtureTickets()

	assert.Len(t, FilterBySearch(tickets, "LOGIN"), 1)
	assert.Len(t, FilterBySearch(tickets, "grace"), 1)
	assert.Len(t, FilterBySearch(tickets, "dark mode"), 1)
	assert.Empty(t, FilterBySearch(tickets, "nonexistent"))
	assert.Len(t, FilterBySearch(tickets, "   "), 3, "whitespace query is the identity")
}

func TestFilterByStatuses(t *testing.T) {
	tickets := fixtureTickets()

	out := FilterByStatuses(tickets, []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusClosed})
	require.Len(t, out, 2)
	assert.Equal(t, "t1", out[0].ID)
	assert.Equal(t, "t3", out[1].ID)

	assert.Len(t, FilterByStatuses(tickets, nil), 3)
}

func TestFilterByPrioritiesNoneBucket(t *testing.T) {
	tickets := fixtureTickets()

	out := FilterByPriorities(tickets, []PriorityFilter{PriorityFilterNone})
	require.Len(t, out, 1)
	assert.Equal(t, "t3", out[0].ID)

	out = FilterByPriorities(tickets, []PriorityFilter{PriorityFilterCritical, PriorityFilterNone})
	assert.Len(t, out, 2)
}

func TestFilterByAssignment(t *testing.T) {
	tickets := fixtureTickets()

	mine := FilterByAssignment(tickets, []string{AssignmentMine}, "admin-1")
	require.Len(t, mine, 1)
	assert.Equal(t, "t1", mine[0].ID)

	unassigned := FilterByAssignment(tickets, []string{AssignmentUnassigned}, "admin-1")
	require.Len(t, unassigned, 1)
	assert.Equal(t, "t3", unassigned[0].ID)

	both := FilterByAssignment(tickets, []string{AssignmentMine, AssignmentUnassigned}, "admin-1")
	assert.Len(t, both, 2)

	explicit := FilterByAssignment(tickets, []string{"admin-2"}, "admin-1")
	require.Len(t, explicit, 1)
	assert.Equal(t, "t2", explicit[0].ID)

	// "mine" without a current admin matches nothing assigned.
	orphanMine := FilterByAssignment(tickets, []string{AssignmentMine}, "")
	assert.Empty(t, orphanMine)
}

func TestFilterByTagsUnionWithinAxis(t *testing.T) {
	tickets := fixtureTickets()

	out := FilterByTags(tickets, []string{"tag-bug", "tag-billing"})
	assert.Len(t, out, 2)

	out = FilterByTags(tickets, []string{"tag-missing"})
	assert.Empty(t, out)
}

func TestFilterByCreatedRangeInclusiveBounds(t *testing.T) {
	tickets := fixtureTickets()
	from := tickets[0].CreatedAt
	to := tickets[1].CreatedAt

	out := FilterByCreatedRange(tickets, ptrTime(from), ptrTime(to))
	require.Len(t, out, 2, "both boundary timestamps are included")

	onlyFrom := FilterByCreatedRange(tickets, ptrTime(tickets[2].CreatedAt), nil)
	require.Len(t, onlyFrom, 1)
	assert.Equal(t, "t3", onlyFrom[0].ID)
}

func TestApplyAllFiltersIdentityAndComposition(t *testing.T) {
	tickets := fixtureTickets()

	identity := ApplyAllFilters(tickets, Criteria{})
	require.Len(t, identity, 3)
	for i := range tickets {
		assert.Equal(t, tickets[i].ID, identity[i].ID, "identity criteria preserve order")
	}

	// Axes AND together: critical priority and the billing tag never
	// coincide, so the intersection is empty even though each matches
	// something alone.
	crit := Criteria{
		Priorities: []PriorityFilter{PriorityFilterCritical},
		TagIDs:     []string{"tag-billing"},
	}
	assert.Empty(t, ApplyAllFilters(tickets, crit))
}

func TestHasActiveFilters(t *testing.T) {
	assert.False(t, HasActiveFilters(Criteria{CurrentAdminID: "admin-1"}))
	assert.False(t, HasActiveFilters(Criteria{Search: "   "}))
	assert.True(t, HasActiveFilters(Criteria{Search: "x"}))
	assert.True(t, HasActiveFilters(Criteria{TagIDs: []string{"tag-bug"}}))
	assert.True(t, HasActiveFilters(Criteria{CreatedTo: ptrTime(time.Now())}))
}

func TestFingerprintCanonicalizesOrdering(t *testing.T) {
	a := Criteria{
		Statuses:    []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusClosed},
		Priorities:  []PriorityFilter{PriorityFilterHigh, PriorityFilterLow},
		Assignments: []string{"mine", "unassigned"},
	}
	b := Criteria{
		Statuses:    []domain.TicketStatus{domain.TicketStatusClosed, domain.TicketStatusOpen},
		Priorities:  []PriorityFilter{PriorityFilterLow, PriorityFilterHigh},
		Assignments: []string{"unassigned", "mine"},
	}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := Criteria{Statuses: []domain.TicketStatus{domain.TicketStatusOpen}}
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
