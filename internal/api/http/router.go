package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/http/handlers"
	"github.com/spec-kit/ticket-triage/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Board          *handlers.BoardHandler
	Mutations      *handlers.MutationsHandler
	Notes          *handlers.NotesHandler
	Tags           *handlers.TagsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)

	admin.Get("/tickets", cfg.Board.ListTickets)
	admin.Get("/tickets/counts", cfg.Board.GetCounts)
	admin.Get("/tickets/:id", cfg.Board.GetTicket)
	admin.Get("/analytics", cfg.Board.GetAnalytics)
	admin.Get("/admins", cfg.Board.ListAdmins)

	admin.Patch("/tickets/:id/status", cfg.Mutations.UpdateStatus)
	admin.Patch("/tickets/:id/priority", cfg.Mutations.UpdatePriority)
	admin.Patch("/tickets/:id/assignee", cfg.Mutations.UpdateAssignee)
	admin.Post("/tickets/:id/tags/:tagID", cfg.Mutations.AssignTag)
	admin.Delete("/tickets/:id/tags/:tagID", cfg.Mutations.RemoveTag)
	admin.Post("/tickets/:id/read", cfg.Mutations.MarkRead)
	admin.Post("/tickets/:id/responses", cfg.Mutations.AddResponse)

	admin.Get("/tickets/:id/notes", cfg.Notes.ListNotes)
	admin.Post("/tickets/:id/notes", cfg.Notes.AddNote)
	admin.Get("/notes/pinned", cfg.Notes.PinnedTickets)
	admin.Patch("/notes/:noteID", cfg.Notes.EditNote)
	admin.Post("/notes/:noteID/pin", cfg.Notes.TogglePin)
	admin.Delete("/notes/:noteID", cfg.Notes.DeleteNote)

	admin.Get("/tags", cfg.Tags.ListTags)
	admin.Post("/tags", cfg.Tags.CreateTag)
	admin.Patch("/tags/:tagID", cfg.Tags.UpdateTag)
	admin.Delete("/tags/:tagID", cfg.Tags.DeleteTag)
}
