package triage

import (
	"sort"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// Window restricts analytics to tickets created within a trailing period.
type Window string

const (
	Window7d  Window = "7d"
	Window30d Window = "30d"
	Window90d Window = "90d"
	WindowAll Window = "all"
)

// Metrics aggregates triage health numbers over a ticket snapshot.
type Metrics struct {
	TotalTickets        int
	OpenTickets         int
	InProgressTickets   int
	ClosedTickets       int
	AvgFirstResponse    time.Duration
	MedianFirstResponse time.Duration
	AvgResolution       time.Duration
	ResponseRate        float64
	TicketsToday        int
	TicketsThisWeek     int
	TicketsThisMonth    int
	PriorityCounts      map[string]int
}

// AdminPerformance summarizes one admin's share of the workload.
type AdminPerformance struct {
	AdminID          string
	AdminName        string
	TicketsHandled   int
	ClosedTickets    int
	AvgFirstResponse time.Duration
}

// WindowCutoff returns the creation-time cutoff for the window, or zero
// time for WindowAll. Computed per invocation, never cached.
func WindowCutoff(w Window, now time.Time) time.Time {
	switch w {
	case Window7d:
		return now.AddDate(0, 0, -7)
	case Window30d:
		return now.AddDate(0, 0, -30)
	case Window90d:
		return now.AddDate(0, 0, -90)
	default:
		return time.Time{}
	}
}

func windowed(tickets []domain.Ticket, w Window, now time.Time) []domain.Ticket {
	cutoff := WindowCutoff(w, now)
	if cutoff.IsZero() {
		return tickets
	}
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if !t.CreatedAt.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// firstAdminResponseDelay returns the time from ticket creation to the
// first admin response, or false when no admin has responded.
func firstAdminResponseDelay(t domain.Ticket) (time.Duration, bool) {
	for _, r := range t.Responses {
		if r.IsAdmin {
			return r.CreatedAt.Sub(t.CreatedAt), true
		}
	}
	return 0, false
}

// ComputeMetrics derives the dashboard metrics from a snapshot. Resolution
// time is measured from creation to the last response on closed tickets.
func ComputeMetrics(tickets []domain.Ticket, w Window, now time.Time) Metrics {
	scoped := windowed(tickets, w, now)

	m := Metrics{
		TotalTickets:   len(scoped),
		PriorityCounts: CountByPriority(scoped),
	}

	var totalResponse time.Duration
	responseDelays := make([]time.Duration, 0, len(scoped))
	var totalResolution time.Duration
	resolved := 0

	for _, t := range scoped {
		switch t.Status {
		case domain.TicketStatusOpen:
			m.OpenTickets++
		case domain.TicketStatusInProgress:
			m.InProgressTickets++
		case domain.TicketStatusClosed:
			m.ClosedTickets++
		}

		if delay, ok := firstAdminResponseDelay(t); ok {
			totalResponse += delay
			responseDelays = append(responseDelays, delay)
		}

		if t.Status == domain.TicketStatusClosed && len(t.Responses) > 0 {
			totalResolution += LastActivity(t).Sub(t.CreatedAt)
			resolved++
		}
	}

	if len(responseDelays) > 0 {
		m.AvgFirstResponse = totalResponse / time.Duration(len(responseDelays))
		sort.Slice(responseDelays, func(i, j int) bool { return responseDelays[i] < responseDelays[j] })
		m.MedianFirstResponse = responseDelays[len(responseDelays)/2]
		m.ResponseRate = float64(len(responseDelays)) / float64(len(scoped)) * 100
	}
	if resolved > 0 {
		m.AvgResolution = totalResolution / time.Duration(resolved)
	}

	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, t := range tickets {
		if !t.CreatedAt.Before(startOfToday) {
			m.TicketsToday++
		}
		if !t.CreatedAt.Before(startOfToday.AddDate(0, 0, -7)) {
			m.TicketsThisWeek++
		}
		if !t.CreatedAt.Before(startOfToday.AddDate(0, -1, 0)) {
			m.TicketsThisMonth++
		}
	}

	return m
}

// ComputeAdminPerformance derives per-admin workload numbers from a
// snapshot. Admins with no assigned tickets in the window are omitted.
func ComputeAdminPerformance(tickets []domain.Ticket, admins []domain.AdminUser, w Window, now time.Time) []AdminPerformance {
	scoped := windowed(tickets, w, now)

	names := make(map[string]string, len(admins))
	for _, a := range admins {
		name := a.DisplayName
		if name == "" {
			name = a.Email
		}
		names[a.ID] = name
	}

	type agg struct {
		handled  int
		closed   int
		delay    time.Duration
		answered int
	}
	byAdmin := make(map[string]*agg)
	order := make([]string, 0)

	for _, t := range scoped {
		if t.AssigneeID == nil {
			continue
		}
		id := *t.AssigneeID
		entry, ok := byAdmin[id]
		if !ok {
			entry = &agg{}
			byAdmin[id] = entry
			order = append(order, id)
		}
		entry.handled++
		if t.Status == domain.TicketStatusClosed {
			entry.closed++
		}
		if delay, ok := firstAdminResponseDelay(t); ok {
			entry.delay += delay
			entry.answered++
		}
	}

	sort.Strings(order)
	out := make([]AdminPerformance, 0, len(order))
	for _, id := range order {
		entry := byAdmin[id]
		perf := AdminPerformance{
			AdminID:        id,
			AdminName:      names[id],
			TicketsHandled: entry.handled,
			ClosedTickets:  entry.closed,
		}
		if entry.answered > 0 {
			perf.AvgFirstResponse = entry.delay / time.Duration(entry.answered)
		}
		out = append(out, perf)
	}
	return out
}
