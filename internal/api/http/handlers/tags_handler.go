package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/service"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// TagsHandler manages the tag catalog.
type TagsHandler struct {
	triage *service.TriageService
}

// NewTagsHandler constructs handler.
func NewTagsHandler(triageService *service.TriageService) *TagsHandler {
	return &TagsHandler{triage: triageService}
}

// ListTags GET /admin/tags.
func (h *TagsHandler) ListTags(c *fiber.Ctx) error {
	if _, err := adminPrincipal(c); err != nil {
		return err
	}
	tags, err := h.triage.ListTags(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.TagResponse, 0, len(tags))
	for _, tag := range tags {
		out = append(out, dto.TagResponse{ID: tag.ID, Name: tag.Name, Color: tag.Color, Icon: tag.Icon})
	}
	return c.JSON(fiber.Map{"data": out})
}

// CreateTag POST /admin/tags.
func (h *TagsHandler) CreateTag(c *fiber.Ctx) error {
	if _, err := adminPrincipal(c); err != nil {
		return err
	}
	var req dto.TagRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	tag, err := h.triage.CreateTag(c.UserContext(), req.Name, req.Color, req.Icon)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TagResponse{
		ID: tag.ID, Name: tag.Name, Color: tag.Color, Icon: tag.Icon,
	}})
}

// UpdateTag PATCH /admin/tags/:tagID.
func (h *TagsHandler) UpdateTag(c *fiber.Ctx) error {
	if _, err := adminPrincipal(c); err != nil {
		return err
	}
	var req dto.TagRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	tag := domain.Tag{ID: c.Params("tagID"), Name: req.Name, Color: req.Color, Icon: req.Icon}
	if err := h.triage.UpdateTag(c.UserContext(), tag); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DeleteTag DELETE /admin/tags/:tagID.
func (h *TagsHandler) DeleteTag(c *fiber.Ctx) error {
	if _, err := adminPrincipal(c); err != nil {
		return err
	}
	if err := h.triage.DeleteTag(c.UserContext(), c.Params("tagID")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
