package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/service"
	"github.com/spec-kit/ticket-triage/internal/triage"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// MutationsHandler exposes the single-ticket mutation endpoints. Every
// write goes through the coordinator, so the optimistic/rollback protocol
// and in-flight guards apply uniformly.
type MutationsHandler struct {
	mutations *service.MutationService
	triage    *service.TriageService
}

// NewMutationsHandler constructs handler.
func NewMutationsHandler(mutations *service.MutationService, triageService *service.TriageService) *MutationsHandler {
	return &MutationsHandler{mutations: mutations, triage: triageService}
}

// UpdateStatus PATCH /admin/tickets/:id/status.
func (h *MutationsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.mutations.UpdateStatus(c.UserContext(), principal.Admin.ID, c.Params("id"), domain.TicketStatus(req.Status))
	if err != nil {
		return err
	}
	return settledResponse(c, ticket)
}

// UpdatePriority PATCH /admin/tickets/:id/priority.
func (h *MutationsHandler) UpdatePriority(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	var priority *domain.TicketPriority
	if req.Priority != nil {
		p := domain.TicketPriority(*req.Priority)
		priority = &p
	}
	ticket, err := h.mutations.UpdatePriority(c.UserContext(), principal.Admin.ID, c.Params("id"), priority)
	if err != nil {
		return err
	}
	return settledResponse(c, ticket)
}

// UpdateAssignee PATCH /admin/tickets/:id/assignee.
func (h *MutationsHandler) UpdateAssignee(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateAssigneeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.mutations.UpdateAssignee(c.UserContext(), principal.Admin.ID, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return settledResponse(c, ticket)
}

// AssignTag POST /admin/tickets/:id/tags/:tagID.
func (h *MutationsHandler) AssignTag(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	tag, err := h.triage.GetTag(c.UserContext(), c.Params("tagID"))
	if err != nil {
		return err
	}
	ticket, err := h.mutations.AssignTag(c.UserContext(), principal.Admin.ID, c.Params("id"), *tag)
	if err != nil {
		return err
	}
	return settledResponse(c, ticket)
}

// RemoveTag DELETE /admin/tickets/:id/tags/:tagID.
func (h *MutationsHandler) RemoveTag(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.mutations.RemoveTag(c.UserContext(), principal.Admin.ID, c.Params("id"), c.Params("tagID"))
	if err != nil {
		return err
	}
	return settledResponse(c, ticket)
}

// MarkRead POST /admin/tickets/:id/read.
func (h *MutationsHandler) MarkRead(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.mutations.MarkResponsesRead(c.UserContext(), principal.Admin.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return settledResponse(c, ticket)
}

// AddResponse POST /admin/tickets/:id/responses.
func (h *MutationsHandler) AddResponse(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	resp, err := h.mutations.AddAdminResponse(c.UserContext(), principal.Admin.ID, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromResponse(*resp)})
}

// settledResponse renders the ticket's post-mutation state. A nil ticket
// means the target is not in the loaded window and the mutation was
// dropped; the caller gets an empty 200.
func settledResponse(c *fiber.Ctx, ticket *domain.Ticket) error {
	if ticket == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	view := service.TicketView{
		Ticket:             *ticket,
		UnreadCount:        triage.UnreadCount(*ticket),
		WaitingForResponse: triage.IsWaitingForResponse(*ticket),
		LastActivity:       triage.LastActivity(*ticket),
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketView(view)})
}
