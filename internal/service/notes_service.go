package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// NotesService manages admin-only internal notes: CRUD, pin/unpin, and the
// cross-ticket aggregates. The pinned-tickets set and note counts are
// recomputed from the full note collection on every read rather than
// incrementally maintained, so a deletion through any path cannot leave a
// cached set drifting.
type NotesService struct {
	notes      repository.NoteRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	orgID      string
}

// NotesDependencies bundles collaborators for the notes subsystem.
type NotesDependencies struct {
	Notes      repository.NoteRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	OrgID      string
}

// NewNotesService constructs the subsystem.
func NewNotesService(deps NotesDependencies) *NotesService {
	return &NotesService{
		notes:      deps.Notes,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		orgID:      deps.OrgID,
	}
}

// OrderNotes returns the notes sorted pinned-first, then ascending by
// creation time within each partition, with id as the final deterministic
// tiebreak. The ordering is derived on every call and never persisted.
func OrderNotes(notes []domain.InternalNote) []domain.InternalNote {
	out := make([]domain.InternalNote, len(notes))
	copy(out, notes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListNotes returns the ticket's notes in display order.
func (s *NotesService) ListNotes(ctx context.Context, ticketID string) ([]domain.InternalNote, error) {
	notes, err := s.notes.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("note list failed", err)
	}
	return OrderNotes(notes), nil
}

// AddNote creates an unpinned note. Empty or whitespace-only text is a
// validation error, not a silent drop.
func (s *NotesService) AddNote(ctx context.Context, ticketID, authorID, text string) (*domain.InternalNote, error) {
	text = trimmed(text)
	if text == "" {
		return nil, apperrors.NewValidationError("note text required", nil)
	}

	now := time.Now()
	note := &domain.InternalNote{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		AuthorID:  authorID,
		Text:      text,
		Pinned:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.notes.CreateNote(ctx, note); err != nil {
		return nil, apperrors.NewPersistenceError("note create failed", err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventNoteAdded,
		TicketID: ticketID,
		ActorID:  authorID,
		Payload:  events.NotePayload{NoteID: note.ID},
	})
	return note, nil
}

// EditNote replaces a note's text with the same validation as AddNote.
func (s *NotesService) EditNote(ctx context.Context, actorID, noteID, text string) error {
	text = trimmed(text)
	if text == "" {
		return apperrors.NewValidationError("note text required", nil)
	}
	if err := s.notes.UpdateNoteText(ctx, noteID, text); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// TogglePin flips the pinned flag. It does not reorder other notes beyond
// the pinned/unpinned partition rule applied at read time.
func (s *NotesService) TogglePin(ctx context.Context, actorID, noteID string, currentPinned bool) error {
	newPinned := !currentPinned
	if err := s.notes.SetPinned(ctx, noteID, newPinned); err != nil {
		return apperrors.MapError(err)
	}

	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventNotePinToggled,
		TicketID: note.TicketID,
		ActorID:  actorID,
		Payload:  events.NotePayload{NoteID: noteID, Pinned: newPinned},
	})
	return nil
}

// DeleteNote removes the note permanently. Aggregates pick the change up
// on their next recomputation.
func (s *NotesService) DeleteNote(ctx context.Context, actorID, noteID string) error {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := s.notes.DeleteNote(ctx, noteID); err != nil {
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventNoteDeleted,
		TicketID: note.TicketID,
		ActorID:  actorID,
		Payload:  events.NotePayload{NoteID: noteID},
	})
	return nil
}

// PinnedTicketIDs returns the set of ticket ids having at least one pinned
// note, recomputed from the full collection.
func (s *NotesService) PinnedTicketIDs(ctx context.Context) (map[string]struct{}, error) {
	ids, err := s.notes.ListPinnedTicketIDs(ctx, s.orgID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("pinned set fetch failed", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// NoteCounts returns total note count per ticket id, same recomputation
// discipline as PinnedTicketIDs.
func (s *NotesService) NoteCounts(ctx context.Context) (map[string]int, error) {
	counts, err := s.notes.ListNoteCounts(ctx, s.orgID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("note counts fetch failed", err)
	}
	return counts, nil
}

func (s *NotesService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
