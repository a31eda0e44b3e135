package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/store"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// OperationKind identifies a mutation family for in-flight tracking. The
// UI-visible contract is one change of a given kind per ticket at a time.
type OperationKind string

const (
	OpStatus   OperationKind = "status"
	OpPriority OperationKind = "priority"
	OpAssignee OperationKind = "assignee"
	OpTag      OperationKind = "tag"
	OpMarkRead OperationKind = "mark_read"
	OpRespond  OperationKind = "respond"
)

type inflightKey struct {
	ticketID string
	kind     OperationKind
}

// MutationService turns a single admin intent into an optimistic store
// update, a persistence call, and reconciliation. Failures roll the store
// back to the snapshotted prior value; in-flight markers are cleared only
// by completion, never by timeout.
type MutationService struct {
	store      *store.Store
	tickets    repository.TicketMutator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu       sync.Mutex
	inflight map[inflightKey]struct{}
}

// MutationDependencies bundles collaborators for the coordinator.
type MutationDependencies struct {
	Store      *store.Store
	Tickets    repository.TicketMutator
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewMutationService constructs the coordinator.
func NewMutationService(deps MutationDependencies) *MutationService {
	return &MutationService{
		store:      deps.Store,
		tickets:    deps.Tickets,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		inflight:   make(map[inflightKey]struct{}),
	}
}

// acquire records the in-flight marker, rejecting a second call for the
// same (ticket, kind) while one is pending.
func (s *MutationService) acquire(ticketID string, kind OperationKind) error {
	key := inflightKey{ticketID: ticketID, kind: kind}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		s.metrics.RecordMutation(string(kind), "conflict")
		return apperrors.NewConflict("operation already in flight", map[string]any{
			"ticket_id": ticketID,
			"operation": string(kind),
		})
	}
	s.inflight[key] = struct{}{}
	return nil
}

func (s *MutationService) release(ticketID string, kind OperationKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, inflightKey{ticketID: ticketID, kind: kind})
}

// InFlight reports whether an operation of the kind is pending for the
// ticket.
func (s *MutationService) InFlight(ticketID string, kind OperationKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inflight[inflightKey{ticketID: ticketID, kind: kind}]
	return busy
}

// UpdateStatus changes the ticket's status. A ticket no longer in the
// loaded window is a silent no-op: it has scrolled out of view, not gone
// wrong.
func (s *MutationService) UpdateStatus(ctx context.Context, actorID, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": string(newStatus)})
	}
	if err := s.acquire(ticketID, OpStatus); err != nil {
		return nil, err
	}
	defer s.release(ticketID, OpStatus)

	prior, ok := s.store.Get(ticketID)
	if !ok {
		s.logger.Debug("status change for unloaded ticket ignored", zap.String("ticket_id", ticketID))
		return nil, nil
	}
	oldStatus := prior.Status

	s.store.UpdateTicket(ticketID, store.TicketPatch{Status: &newStatus})

	if err := s.tickets.SetStatus(ctx, ticketID, newStatus); err != nil {
		s.store.UpdateTicket(ticketID, store.TicketPatch{Status: &oldStatus})
		s.metrics.RecordMutation(string(OpStatus), "rolled_back")
		s.logger.Warn("status change rolled back", zap.String("ticket_id", ticketID), zap.Error(err))
		return s.settled(ticketID), apperrors.NewPersistenceError("status update failed", err)
	}

	s.metrics.RecordMutation(string(OpStatus), "applied")
	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload:  events.StatusChangedPayload{OldStatus: oldStatus, NewStatus: newStatus},
	})
	return s.settled(ticketID), nil
}

// UpdatePriority changes the ticket's priority; nil clears it. Status and
// priority are independent axes, so neither touches the other.
func (s *MutationService) UpdatePriority(ctx context.Context, actorID, ticketID string, newPriority *domain.TicketPriority) (*domain.Ticket, error) {
	if newPriority != nil && !domain.ValidPriority(*newPriority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(*newPriority)})
	}
	if err := s.acquire(ticketID, OpPriority); err != nil {
		return nil, err
	}
	defer s.release(ticketID, OpPriority)

	prior, ok := s.store.Get(ticketID)
	if !ok {
		s.logger.Debug("priority change for unloaded ticket ignored", zap.String("ticket_id", ticketID))
		return nil, nil
	}
	oldPriority := prior.Priority

	s.store.UpdateTicket(ticketID, store.TicketPatch{SetPriority: true, Priority: newPriority})

	if err := s.tickets.SetPriority(ctx, ticketID, newPriority); err != nil {
		s.store.UpdateTicket(ticketID, store.TicketPatch{SetPriority: true, Priority: oldPriority})
		s.metrics.RecordMutation(string(OpPriority), "rolled_back")
		s.logger.Warn("priority change rolled back", zap.String("ticket_id", ticketID), zap.Error(err))
		return s.settled(ticketID), apperrors.NewPersistenceError("priority update failed", err)
	}

	s.metrics.RecordMutation(string(OpPriority), "applied")
	s.publish(ctx, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload:  events.PriorityChangedPayload{OldPriority: oldPriority, NewPriority: newPriority},
	})
	return s.settled(ticketID), nil
}

// UpdateAssignee reassigns the ticket; nil unassigns. Unassigning does not
// change status.
func (s *MutationService) UpdateAssignee(ctx context.Context, actorID, ticketID string, assigneeID *string) (*domain.Ticket, error) {
	if err := s.acquire(ticketID, OpAssignee); err != nil {
		return nil, err
	}
	defer s.release(ticketID, OpAssignee)

	prior, ok := s.store.Get(ticketID)
	if !ok {
		s.logger.Debug("assignment for unloaded ticket ignored", zap.String("ticket_id", ticketID))
		return nil, nil
	}
	oldAssignee := prior.AssigneeID

	s.store.UpdateTicket(ticketID, store.TicketPatch{SetAssignee: true, AssigneeID: assigneeID})

	if err := s.tickets.SetAssignee(ctx, ticketID, assigneeID); err != nil {
		s.store.UpdateTicket(ticketID, store.TicketPatch{SetAssignee: true, AssigneeID: oldAssignee})
		s.metrics.RecordMutation(string(OpAssignee), "rolled_back")
		s.logger.Warn("assignment rolled back", zap.String("ticket_id", ticketID), zap.Error(err))
		return s.settled(ticketID), apperrors.NewPersistenceError("assignment failed", err)
	}

	s.metrics.RecordMutation(string(OpAssignee), "applied")
	s.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload:  events.AssignedPayload{OldAssigneeID: oldAssignee, NewAssigneeID: assigneeID},
	})
	return s.settled(ticketID), nil
}

// AssignTag attaches the tag to the ticket. Assigning a tag already
// present is an idempotent no-op that still clears in-flight state
// cleanly.
func (s *MutationService) AssignTag(ctx context.Context, actorID, ticketID string, tag domain.Tag) (*domain.Ticket, error) {
	if err := s.acquire(ticketID, OpTag); err != nil {
		return nil, err
	}
	defer s.release(ticketID, OpTag)

	prior, ok := s.store.Get(ticketID)
	if !ok {
		s.logger.Debug("tag assignment for unloaded ticket ignored", zap.String("ticket_id", ticketID))
		return nil, nil
	}
	if prior.HasTag(tag.ID) {
		return s.settled(ticketID), nil
	}

	// The snapshot must be non-nil: a nil Tags in the rollback patch would
	// read as "untouched" and leave the optimistic tag behind.
	rollbackTags := append([]domain.Tag{}, prior.Tags...)
	newTags := append(append([]domain.Tag{}, prior.Tags...), tag)
	s.store.UpdateTicket(ticketID, store.TicketPatch{Tags: newTags})

	if err := s.tickets.AssignTag(ctx, ticketID, tag.ID); err != nil {
		s.store.UpdateTicket(ticketID, store.TicketPatch{Tags: rollbackTags})
		s.metrics.RecordMutation(string(OpTag), "rolled_back")
		s.logger.Warn("tag assignment rolled back", zap.String("ticket_id", ticketID), zap.Error(err))
		return s.settled(ticketID), apperrors.NewPersistenceError("tag assignment failed", err)
	}

	s.metrics.RecordMutation(string(OpTag), "applied")
	s.publish(ctx, events.Event{
		Type:     events.EventTicketTagAssigned,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload:  events.TagPayload{TagID: tag.ID},
	})
	return s.settled(ticketID), nil
}

// RemoveTag detaches the tag from the ticket. Removing a tag the ticket
// does not carry is an idempotent no-op.
func (s *MutationService) RemoveTag(ctx context.Context, actorID, ticketID, tagID string) (*domain.Ticket, error) {
	if err := s.acquire(ticketID, OpTag); err != nil {
		return nil, err
	}
	defer s.release(ticketID, OpTag)

	prior, ok := s.store.Get(ticketID)
	if !ok {
		s.logger.Debug("tag removal for unloaded ticket ignored", zap.String("ticket_id", ticketID))
		return nil, nil
	}
	if !prior.HasTag(tagID) {
		return s.settled(ticketID), nil
	}

	rollbackTags := append([]domain.Tag{}, prior.Tags...)
	newTags := make([]domain.Tag, 0, len(prior.Tags)-1)
	for _, tag := range prior.Tags {
		if tag.ID != tagID {
			newTags = append(newTags, tag)
		}
	}
	s.store.UpdateTicket(ticketID, store.TicketPatch{Tags: newTags})

	if err := s.tickets.RemoveTag(ctx, ticketID, tagID); err != nil {
		s.store.UpdateTicket(ticketID, store.TicketPatch{Tags: rollbackTags})
		s.metrics.RecordMutation(string(OpTag), "rolled_back")
		s.logger.Warn("tag removal rolled back", zap.String("ticket_id", ticketID), zap.Error(err))
		return s.settled(ticketID), apperrors.NewPersistenceError("tag removal failed", err)
	}

	s.metrics.RecordMutation(string(OpTag), "applied")
	s.publish(ctx, events.Event{
		Type:     events.EventTicketTagRemoved,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload:  events.TagPayload{TagID: tagID},
	})
	return s.settled(ticketID), nil
}

// MarkResponsesRead acknowledges every unread customer response on the
// ticket, driving the unread badge to zero for it.
func (s *MutationService) MarkResponsesRead(ctx context.Context, actorID, ticketID string) (*domain.Ticket, error) {
	if err := s.acquire(ticketID, OpMarkRead); err != nil {
		return nil, err
	}
	defer s.release(ticketID, OpMarkRead)

	prior, ok := s.store.Get(ticketID)
	if !ok {
		s.logger.Debug("mark-read for unloaded ticket ignored", zap.String("ticket_id", ticketID))
		return nil, nil
	}

	flipped := s.store.MarkResponsesRead(ticketID)
	if flipped == 0 {
		return s.settled(ticketID), nil
	}

	if err := s.tickets.MarkResponsesRead(ctx, ticketID); err != nil {
		s.store.UpdateTicket(ticketID, store.TicketPatch{Responses: prior.Responses})
		s.metrics.RecordMutation(string(OpMarkRead), "rolled_back")
		s.logger.Warn("mark-read rolled back", zap.String("ticket_id", ticketID), zap.Error(err))
		return s.settled(ticketID), apperrors.NewPersistenceError("mark-read failed", err)
	}

	s.metrics.RecordMutation(string(OpMarkRead), "applied")
	s.publish(ctx, events.Event{
		Type:     events.EventTicketResponsesRead,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload:  events.ResponsesReadPayload{ReadCount: flipped},
	})
	return s.settled(ticketID), nil
}

// AddAdminResponse persists an admin reply and appends it to the loaded
// thread. Unlike the patch mutations this is persist-first: there is no
// prior value to roll back to, so nothing is applied until the store call
// succeeds.
func (s *MutationService) AddAdminResponse(ctx context.Context, adminID, ticketID, body string) (*domain.Response, error) {
	if bodyTrimmed := trimmed(body); bodyTrimmed == "" {
		return nil, apperrors.NewValidationError("response body required", nil)
	}
	if err := s.acquire(ticketID, OpRespond); err != nil {
		return nil, err
	}
	defer s.release(ticketID, OpRespond)

	now := time.Now()
	resp := &domain.Response{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		IsAdmin:   true,
		AuthorID:  &adminID,
		Body:      trimmed(body),
		IsRead:    true,
		ReadAt:    &now,
		CreatedAt: now,
	}
	if err := s.tickets.CreateResponse(ctx, resp); err != nil {
		s.metrics.RecordMutation(string(OpRespond), "rolled_back")
		return nil, apperrors.NewPersistenceError("response create failed", err)
	}

	s.store.AppendResponse(ticketID, *resp)
	s.metrics.RecordMutation(string(OpRespond), "applied")
	s.publish(ctx, events.Event{
		Type:     events.EventResponseReceived,
		TicketID: ticketID,
		ActorID:  adminID,
		Payload:  events.ResponseReceivedPayload{ResponseID: resp.ID, IsAdmin: true},
	})
	return resp, nil
}

func (s *MutationService) settled(ticketID string) *domain.Ticket {
	if t, ok := s.store.Get(ticketID); ok {
		return &t
	}
	return nil
}

func (s *MutationService) publish(ctx context.Context, event events.Event) {
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
