package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/auth"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/service"
	"github.com/spec-kit/ticket-triage/internal/triage"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// BoardHandler serves the triage board reads: the ticket list, bucket
// counts, analytics, and the pickers backing the filter bar.
type BoardHandler struct {
	triage *service.TriageService
}

// NewBoardHandler constructs handler.
func NewBoardHandler(triageService *service.TriageService) *BoardHandler {
	return &BoardHandler{triage: triageService}
}

// ListTickets GET /admin/tickets.
func (h *BoardHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}

	crit, err := h.parseCriteria(c, principal.Admin.ID)
	if err != nil {
		return err
	}
	query := service.BoardQuery{
		Criteria: crit,
		Sort:     h.parseSort(c),
		GroupBy:  c.Query("group_by"),
		Refresh:  c.QueryBool("refresh"),
		Cursor:   c.Query("cursor"),
	}
	view, err := h.triage.Board(c.UserContext(), query)
	if err != nil {
		return err
	}

	resp := dto.BoardResponse{
		Tickets:     make([]dto.TicketSummary, 0, len(view.Tickets)),
		Groups:      view.Groups,
		TotalUnread: view.TotalUnread,
		TotalLoaded: view.TotalLoaded,
		HasMore:     view.HasMore,
		NextCursor:  view.NextCursor,
	}
	for _, t := range view.Tickets {
		resp.Tickets = append(resp.Tickets, dto.FromTicketView(t))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetTicket GET /admin/tickets/:id.
func (h *BoardHandler) GetTicket(c *fiber.Ctx) error {
	if _, err := adminPrincipal(c); err != nil {
		return err
	}
	view, err := h.triage.Ticket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(*view)})
}

// GetCounts GET /admin/tickets/counts.
func (h *BoardHandler) GetCounts(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}

	crit, err := h.parseCriteria(c, principal.Admin.ID)
	if err != nil {
		return err
	}
	counts, totalUnread, err := h.triage.Counts(c.UserContext(), crit, c.Query("group_by"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"counts":       counts,
		"total_unread": totalUnread,
	}})
}

// GetAnalytics GET /admin/analytics.
func (h *BoardHandler) GetAnalytics(c *fiber.Ctx) error {
	if _, err := adminPrincipal(c); err != nil {
		return err
	}

	window := triage.Window(c.Query("window", string(triage.Window30d)))
	switch window {
	case triage.Window7d, triage.Window30d, triage.Window90d, triage.WindowAll:
	default:
		return apperrors.NewValidationError("unknown window", map[string]any{"window": string(window)})
	}

	metrics, performance, err := h.triage.Analytics(c.UserContext(), window)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"metrics":     metrics,
		"performance": performance,
	}})
}

// ListAdmins GET /admin/admins.
func (h *BoardHandler) ListAdmins(c *fiber.Ctx) error {
	if _, err := adminPrincipal(c); err != nil {
		return err
	}
	admins, err := h.triage.Admins(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": admins})
}

// parseCriteria builds the filter criteria from query params. With
// defaults=true the configured working-set filters apply first and any
// explicit axes override them. Unknown enum values and unparseable
// timestamps are rejected rather than left to match nothing.
func (h *BoardHandler) parseCriteria(c *fiber.Ctx, currentAdminID string) (triage.Criteria, error) {
	var crit triage.Criteria
	if c.QueryBool("defaults") {
		crit = h.triage.DefaultCriteria(currentAdminID)
	} else {
		crit.CurrentAdminID = currentAdminID
	}

	if search := c.Query("search"); search != "" {
		crit.Search = search
	}
	if statuses := parseCSV(c.Query("status")); len(statuses) > 0 {
		crit.Statuses = crit.Statuses[:0]
		for _, raw := range statuses {
			status := domain.TicketStatus(raw)
			if !domain.ValidStatus(status) {
				return crit, apperrors.NewValidationError("unknown status", map[string]any{"status": raw})
			}
			crit.Statuses = append(crit.Statuses, status)
		}
	}
	if priorities := parseCSV(c.Query("priority")); len(priorities) > 0 {
		for _, raw := range priorities {
			filter := triage.PriorityFilter(raw)
			switch filter {
			case triage.PriorityFilterCritical, triage.PriorityFilterHigh,
				triage.PriorityFilterMedium, triage.PriorityFilterLow, triage.PriorityFilterNone:
			default:
				return crit, apperrors.NewValidationError("unknown priority", map[string]any{"priority": raw})
			}
			crit.Priorities = append(crit.Priorities, filter)
		}
	}
	if assignments := parseCSV(c.Query("assignment")); len(assignments) > 0 {
		crit.Assignments = assignments
	}
	if tagIDs := parseCSV(c.Query("tags")); len(tagIDs) > 0 {
		crit.TagIDs = tagIDs
	}
	from, err := parseTime(c.Query("created_from"), false)
	if err != nil {
		return crit, err
	}
	crit.CreatedFrom = from
	to, err := parseTime(c.Query("created_to"), true)
	if err != nil {
		return crit, err
	}
	crit.CreatedTo = to
	return crit, nil
}

func (h *BoardHandler) parseSort(c *fiber.Ctx) triage.SortMode {
	if raw := c.Query("sort"); raw != "" {
		return triage.SortMode(raw)
	}
	return h.triage.DefaultSort()
}

func adminPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Admin == nil {
		return nil, apperrors.NewUnauthorized("admin required")
	}
	return principal, nil
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseTime accepts RFC3339 or a bare date. A bare date used as an upper
// bound covers the whole day, so it resolves to that day's last instant;
// the created range stays inclusive on both ends.
func parseTime(val string, upperBound bool) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, val); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", val)
	if err != nil {
		return nil, apperrors.NewValidationError("unparseable timestamp", map[string]any{"value": val})
	}
	if upperBound {
		parsed = parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &parsed, nil
}
