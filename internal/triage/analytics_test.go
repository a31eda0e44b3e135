package triage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

func TestWindowCutoff(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.AddDate(0, 0, -7), WindowCutoff(Window7d, now))
	assert.Equal(t, now.AddDate(0, 0, -30), WindowCutoff(Window30d, now))
	assert.Equal(t, now.AddDate(0, 0, -90), WindowCutoff(Window90d, now))
	assert.True(t, WindowCutoff(WindowAll, now).IsZero())
	assert.True(t, WindowCutoff(Window("bogus"), now).IsZero())
}

func analyticsFixture(now time.Time) []domain.Ticket {
	critical := domain.TicketPriorityCritical
	admin1 := "admin-1"
	admin2 := "admin-2"

	return []domain.Ticket{
		{
			ID:         "t1",
			Status:     domain.TicketStatusClosed,
			Priority:   &critical,
			AssigneeID: &admin1,
			CreatedAt:  now.Add(-48 * time.Hour),
			Responses: []domain.Response{
				{ID: "r1", IsAdmin: true, CreatedAt: now.Add(-47 * time.Hour)},
				{ID: "r2", IsAdmin: false, CreatedAt: now.Add(-40 * time.Hour)},
			},
		},
		{
			ID:         "t2",
			Status:     domain.TicketStatusOpen,
			AssigneeID: &admin1,
			CreatedAt:  now.Add(-24 * time.Hour),
			Responses: []domain.Response{
				{ID: "r3", IsAdmin: true, CreatedAt: now.Add(-21 * time.Hour)},
			},
		},
		{
			ID:        "t3",
			Status:    domain.TicketStatusInProgress,
			CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			ID:         "t4",
			Status:     domain.TicketStatusClosed,
			AssigneeID: &admin2,
			CreatedAt:  now.Add(-60 * 24 * time.Hour),
		},
	}
}

func TestComputeMetrics(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	m := ComputeMetrics(analyticsFixture(now), WindowAll, now)

	assert.Equal(t, 4, m.TotalTickets)
	assert.Equal(t, 1, m.OpenTickets)
	assert.Equal(t, 1, m.InProgressTickets)
	assert.Equal(t, 2, m.ClosedTickets)

	// First admin response delays: t1 one hour, t2 three hours.
	assert.Equal(t, 2*time.Hour, m.AvgFirstResponse)
	assert.Equal(t, 3*time.Hour, m.MedianFirstResponse)
	assert.InDelta(t, 50.0, m.ResponseRate, 0.01)

	// Only t1 is closed with a thread; resolution runs to its last response.
	assert.Equal(t, 8*time.Hour, m.AvgResolution)

	assert.Equal(t, 1, m.PriorityCounts[string(domain.TicketPriorityCritical)])
	assert.Equal(t, 3, m.PriorityCounts[BucketNone])

	assert.Equal(t, 1, m.TicketsToday)
	assert.Equal(t, 3, m.TicketsThisWeek)
	assert.Equal(t, 3, m.TicketsThisMonth)
}

func TestComputeMetricsWindowScopesAggregates(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	m := ComputeMetrics(analyticsFixture(now), Window7d, now)

	assert.Equal(t, 3, m.TotalTickets, "the sixty-day-old ticket falls outside the window")
	assert.Equal(t, 1, m.ClosedTickets)

	// Recent-creation counters always cover the full snapshot.
	assert.Equal(t, 3, m.TicketsThisMonth)
}

func TestComputeMetricsEmptySnapshot(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	m := ComputeMetrics(nil, WindowAll, now)

	assert.Zero(t, m.TotalTickets)
	assert.Zero(t, m.AvgFirstResponse)
	assert.Zero(t, m.MedianFirstResponse)
	assert.Zero(t, m.AvgResolution)
	assert.Zero(t, m.ResponseRate)
}

func TestComputeAdminPerformance(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	admins := []domain.AdminUser{
		{ID: "admin-1", Email: "one@example.com", DisplayName: "Admin One"},
		{ID: "admin-2", Email: "two@example.com"},
	}

	perf := ComputeAdminPerformance(analyticsFixture(now), admins, WindowAll, now)
	require.Len(t, perf, 2, "unassigned tickets contribute to nobody")

	assert.Equal(t, "admin-1", perf[0].AdminID)
	assert.Equal(t, "Admin One", perf[0].AdminName)
	assert.Equal(t, 2, perf[0].TicketsHandled)
	assert.Equal(t, 1, perf[0].ClosedTickets)
	assert.Equal(t, 2*time.Hour, perf[0].AvgFirstResponse)

	assert.Equal(t, "admin-2", perf[1].AdminID)
	assert.Equal(t, "two@example.com", perf[1].AdminName, "name falls back to email")
	assert.Equal(t, 1, perf[1].TicketsHandled)
	assert.Zero(t, perf[1].AvgFirstResponse, "no answered tickets")
}

func TestComputeAdminPerformanceWindowed(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	perf := ComputeAdminPerformance(analyticsFixture(now), nil, Window7d, now)

	require.Len(t, perf, 1)
	assert.Equal(t, "admin-1", perf[0].AdminID)
	assert.Empty(t, perf[0].AdminName, "unknown directory entry yields no name")
}
