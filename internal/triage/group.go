package triage

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// Bucket keys for the fixed groupings. Assignee and tag groupings use the
// admin/tag ids themselves plus the sentinel keys below.
const (
	BucketAll        = "all"
	BucketNone       = "none"
	BucketUnassigned = "unassigned"
	BucketUntagged   = "untagged"

	BucketToday     = "today"
	BucketYesterday = "yesterday"
	BucketThisWeek  = "this_week"
	BucketThisMonth = "this_month"
	BucketOlder     = "older"
)

// GroupByStatus partitions tickets into the fixed status buckets plus an
// "all" bucket holding every ticket. Original relative order is preserved
// within each bucket.
func GroupByStatus(tickets []domain.Ticket) map[string][]domain.Ticket {
	groups := map[string][]domain.Ticket{
		string(domain.TicketStatusOpen):       {},
		string(domain.TicketStatusInProgress): {},
		string(domain.TicketStatusClosed):     {},
		BucketAll:                             {},
	}
	for _, t := range tickets {
		groups[string(t.Status)] = append(groups[string(t.Status)], t)
		groups[BucketAll] = append(groups[BucketAll], t)
	}
	return groups
}

// CountByStatus computes status bucket sizes without materializing the
// partitions.
func CountByStatus(tickets []domain.Ticket) map[string]int {
	counts := map[string]int{
		string(domain.TicketStatusOpen):       0,
		string(domain.TicketStatusInProgress): 0,
		string(domain.TicketStatusClosed):     0,
		BucketAll:                             len(tickets),
	}
	for _, t := range tickets {
		counts[string(t.Status)]++
	}
	return counts
}

// GroupByPriority partitions tickets into the fixed priority buckets,
// including "none" for tickets without a priority.
func GroupByPriority(tickets []domain.Ticket) map[string][]domain.Ticket {
	groups := map[string][]domain.Ticket{
		string(domain.TicketPriorityCritical): {},
		string(domain.TicketPriorityHigh):     {},
		string(domain.TicketPriorityMedium):   {},
		string(domain.TicketPriorityLow):      {},
		BucketNone:                            {},
	}
	for _, t := range tickets {
		key := priorityKey(t.Priority)
		groups[key] = append(groups[key], t)
	}
	return groups
}

// CountByPriority computes priority bucket sizes.
func CountByPriority(tickets []domain.Ticket) map[string]int {
	counts := map[string]int{
		string(domain.TicketPriorityCritical): 0,
		string(domain.TicketPriorityHigh):     0,
		string(domain.TicketPriorityMedium):   0,
		string(domain.TicketPriorityLow):      0,
		BucketNone:                            0,
	}
	for _, t := range tickets {
		counts[priorityKey(t.Priority)]++
	}
	return counts
}

func priorityKey(p *domain.TicketPriority) string {
	if p == nil {
		return BucketNone
	}
	return string(*p)
}

// GroupByAssignee partitions tickets into "unassigned" plus one bucket per
// admin id actually present. No bucket materializes for admins with zero
// tickets.
func GroupByAssignee(tickets []domain.Ticket) map[string][]domain.Ticket {
	groups := map[string][]domain.Ticket{BucketUnassigned: {}}
	for _, t := range tickets {
		key := BucketUnassigned
		if t.AssigneeID != nil {
			key = *t.AssigneeID
		}
		groups[key] = append(groups[key], t)
	}
	return groups
}

// CountByAssignee computes assignee bucket sizes.
func CountByAssignee(tickets []domain.Ticket) map[string]int {
	counts := map[string]int{BucketUnassigned: 0}
	for _, t := range tickets {
		key := BucketUnassigned
		if t.AssigneeID != nil {
			key = *t.AssigneeID
		}
		counts[key]++
	}
	return counts
}

// GroupByTag partitions tickets into "untagged" plus one bucket per tag id
// present. A ticket with N tags appears in all N tag buckets and is
// excluded from "untagged".
func GroupByTag(tickets []domain.Ticket) map[string][]domain.Ticket {
	groups := map[string][]domain.Ticket{BucketUntagged: {}}
	for _, t := range tickets {
		if len(t.Tags) == 0 {
			groups[BucketUntagged] = append(groups[BucketUntagged], t)
			continue
		}
		for _, tag := range t.Tags {
			groups[tag.ID] = append(groups[tag.ID], t)
		}
	}
	return groups
}

// CountByTag computes tag bucket sizes.
func CountByTag(tickets []domain.Ticket) map[string]int {
	counts := map[string]int{BucketUntagged: 0}
	for _, t := range tickets {
		if len(t.Tags) == 0 {
			counts[BucketUntagged]++
			continue
		}
		for _, tag := range t.Tags {
			counts[tag.ID]++
		}
	}
	return counts
}

// dateBucket assigns a creation time to one of the fixed recency buckets.
// Boundaries derive from now at each invocation and are never cached
// across calls.
func dateBucket(created time.Time, now time.Time) string {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case !created.Before(startOfToday):
		return BucketToday
	case !created.Before(startOfToday.AddDate(0, 0, -1)):
		return BucketYesterday
	case !created.Before(startOfToday.AddDate(0, 0, -7)):
		return BucketThisWeek
	case !created.Before(startOfToday.AddDate(0, 0, -30)):
		return BucketThisMonth
	default:
		return BucketOlder
	}
}

// GroupByDateBucket partitions tickets by creation recency: today,
// yesterday, the last 7 days excluding those, the last 30 days excluding
// the above, and older.
func GroupByDateBucket(tickets []domain.Ticket, now time.Time) map[string][]domain.Ticket {
	groups := map[string][]domain.Ticket{
		BucketToday:     {},
		BucketYesterday: {},
		BucketThisWeek:  {},
		BucketThisMonth: {},
		BucketOlder:     {},
	}
	for _, t := range tickets {
		key := dateBucket(t.CreatedAt, now)
		groups[key] = append(groups[key], t)
	}
	return groups
}

// CountByDateBucket computes recency bucket sizes.
func CountByDateBucket(tickets []domain.Ticket, now time.Time) map[string]int {
	counts := map[string]int{
		BucketToday:     0,
		BucketYesterday: 0,
		BucketThisWeek:  0,
		BucketThisMonth: 0,
		BucketOlder:     0,
	}
	for _, t := range tickets {
		counts[dateBucket(t.CreatedAt, now)]++
	}
	return counts
}

// UnreadCount counts customer responses an admin has not yet acknowledged.
// The is_read flag models "read by an admin", so admin-authored responses
// never contribute regardless of their flag, and the ticket's initial
// message is not a response at all.
func UnreadCount(t domain.Ticket) int {
	count := 0
	for _, r := range t.Responses {
		if !r.IsAdmin && !r.IsRead {
			count++
		}
	}
	return count
}

// TotalUnread sums UnreadCount across the loaded set, feeding the header
// badge.
func TotalUnread(tickets []domain.Ticket) int {
	total := 0
	for _, t := range tickets {
		total += UnreadCount(t)
	}
	return total
}

// IsWaitingForResponse reports whether the customer is awaiting an admin
// reply: the most recent response is customer-authored and the ticket is
// not closed. A ticket with no responses is not waiting; the original
// message is not itself a response.
func IsWaitingForResponse(t domain.Ticket) bool {
	if t.Status == domain.TicketStatusClosed || len(t.Responses) == 0 {
		return false
	}
	latest := t.Responses[0]
	for _, r := range t.Responses[1:] {
		if r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return !latest.IsAdmin
}
