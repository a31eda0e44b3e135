package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/service"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// NotesHandler exposes the internal notes subsystem.
type NotesHandler struct {
	notes *service.NotesService
}

// NewNotesHandler constructs handler.
func NewNotesHandler(notes *service.NotesService) *NotesHandler {
	return &NotesHandler{notes: notes}
}

// ListNotes GET /admin/tickets/:id/notes.
func (h *NotesHandler) ListNotes(c *fiber.Ctx) error {
	if _, err := adminPrincipal(c); err != nil {
		return err
	}
	notes, err := h.notes.ListNotes(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	out := make([]dto.NoteResponse, 0, len(notes))
	for _, note := range notes {
		out = append(out, dto.FromNote(note))
	}
	return c.JSON(fiber.Map{"data": out})
}

// AddNote POST /admin/tickets/:id/notes.
func (h *NotesHandler) AddNote(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	note, err := h.notes.AddNote(c.UserContext(), c.Params("id"), principal.Admin.ID, req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromNote(*note)})
}

// EditNote PATCH /admin/notes/:noteID.
func (h *NotesHandler) EditNote(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.notes.EditNote(c.UserContext(), principal.Admin.ID, c.Params("noteID"), req.Text); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// TogglePin POST /admin/notes/:noteID/pin.
func (h *NotesHandler) TogglePin(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TogglePinRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.notes.TogglePin(c.UserContext(), principal.Admin.ID, c.Params("noteID"), req.Pinned); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DeleteNote DELETE /admin/notes/:noteID.
func (h *NotesHandler) DeleteNote(c *fiber.Ctx) error {
	principal, err := adminPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.notes.DeleteNote(c.UserContext(), principal.Admin.ID, c.Params("noteID")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// PinnedTickets GET /admin/notes/pinned.
func (h *NotesHandler) PinnedTickets(c *fiber.Ctx) error {
	if _, err := adminPrincipal(c); err != nil {
		return err
	}
	pinned, err := h.notes.PinnedTicketIDs(c.UserContext())
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(pinned))
	for id := range pinned {
		ids = append(ids, id)
	}
	return c.JSON(fiber.Map{"data": ids})
}
