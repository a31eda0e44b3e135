package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/store"
	"github.com/spec-kit/ticket-triage/internal/triage"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// BoardQuery is one read of the triage board: the filter criteria, the
// sort mode, an optional grouping axis, and paging intent.
type BoardQuery struct {
	Criteria triage.Criteria
	Sort     triage.SortMode
	GroupBy  string
	// Refresh forces a first-page reload even when tickets are already
	// loaded for this query.
	Refresh bool
	// Cursor, when set, requests the next page before reading.
	Cursor string
}

// TicketView is one ticket dressed with the derived per-ticket signals
// the board renders next to it.
type TicketView struct {
	Ticket             domain.Ticket
	UnreadCount        int
	WaitingForResponse bool
	LastActivity       time.Time
	NoteCount          int
	HasPinnedNote      bool
}

// BoardView is the assembled read model for one board query.
type BoardView struct {
	Tickets     []TicketView
	Groups      map[string][]string
	TotalUnread int
	TotalLoaded int
	HasMore     bool
	NextCursor  string
}

// TriageService is the read side of the engine: it drives the paginator,
// snapshots the store, and runs the pure filter/sort/group passes over the
// snapshot. It never mutates tickets.
type TriageService struct {
	store     *store.Store
	paginator *store.Paginator
	notes     *NotesService
	admins    repository.AdminDirectory
	tags      repository.TagRepository
	cfg       config.TriageConfig
	logger    *zap.Logger
}

// TriageDependencies bundles collaborators for the read side.
type TriageDependencies struct {
	Store     *store.Store
	Paginator *store.Paginator
	Notes     *NotesService
	Admins    repository.AdminDirectory
	Tags      repository.TagRepository
	Config    config.TriageConfig
	Logger    *zap.Logger
}

// NewTriageService constructs the service.
func NewTriageService(deps TriageDependencies) *TriageService {
	return &TriageService{
		store:     deps.Store,
		paginator: deps.Paginator,
		notes:     deps.Notes,
		admins:    deps.Admins,
		tags:      deps.Tags,
		cfg:       deps.Config,
		logger:    deps.Logger,
	}
}

// DefaultCriteria returns the working-set filters applied on first load
// and when an admin clears their filters.
func (s *TriageService) DefaultCriteria(currentAdminID string) triage.Criteria {
	crit := triage.Criteria{CurrentAdminID: currentAdminID}
	for _, raw := range s.cfg.DefaultStatuses {
		status := domain.TicketStatus(raw)
		if domain.ValidStatus(status) {
			crit.Statuses = append(crit.Statuses, status)
		}
	}
	crit.Assignments = append(crit.Assignments, s.cfg.DefaultAssignmentFilters...)
	return crit
}

// DefaultSort returns the configured startup sort mode.
func (s *TriageService) DefaultSort() triage.SortMode {
	return triage.SortMode(s.cfg.DefaultSort)
}

// Board serves one board read. Paging happens first (a fresh first page,
// or the next page when a cursor is given), then the pure passes run over
// the resulting snapshot.
func (s *TriageService) Board(ctx context.Context, q BoardQuery) (*BoardView, error) {
	if q.Cursor != "" {
		if err := s.paginator.LoadNextPage(ctx, q.Criteria, q.Sort, q.Cursor); err != nil {
			return nil, err
		}
	} else if q.Refresh || s.store.Len() == 0 {
		if err := s.paginator.LoadFirstPage(ctx, q.Criteria, q.Sort); err != nil {
			return nil, err
		}
	}

	snapshot := s.store.All()
	filtered := triage.ApplyAllFilters(snapshot, q.Criteria)
	sorted := triage.SortTickets(filtered, q.Sort)

	noteCounts, err := s.notes.NoteCounts(ctx)
	if err != nil {
		s.logger.Warn("note counts unavailable", zap.Error(err))
		noteCounts = map[string]int{}
	}
	pinned, err := s.notes.PinnedTicketIDs(ctx)
	if err != nil {
		s.logger.Warn("pinned set unavailable", zap.Error(err))
		pinned = map[string]struct{}{}
	}

	views := make([]TicketView, 0, len(sorted))
	for _, t := range sorted {
		_, hasPinned := pinned[t.ID]
		views = append(views, TicketView{
			Ticket:             t,
			UnreadCount:        triage.UnreadCount(t),
			WaitingForResponse: triage.IsWaitingForResponse(t),
			LastActivity:       triage.LastActivity(t),
			NoteCount:          noteCounts[t.ID],
			HasPinnedNote:      hasPinned,
		})
	}

	view := &BoardView{
		Tickets:     views,
		TotalUnread: triage.TotalUnread(snapshot),
		TotalLoaded: len(snapshot),
		HasMore:     s.paginator.HasMore(q.Criteria, q.Sort),
		NextCursor:  s.paginator.Cursor(q.Criteria, q.Sort),
	}
	if q.GroupBy != "" {
		groups, err := groupIDs(sorted, q.GroupBy)
		if err != nil {
			return nil, err
		}
		view.Groups = groups
	}
	return view, nil
}

// Ticket returns one loaded ticket dressed with its derived signals. A
// ticket outside the loaded window is not found here; the caller reloads
// the board to pull it in.
func (s *TriageService) Ticket(ctx context.Context, ticketID string) (*TicketView, error) {
	t, ok := s.store.Get(ticketID)
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	view := TicketView{
		Ticket:             t,
		UnreadCount:        triage.UnreadCount(t),
		WaitingForResponse: triage.IsWaitingForResponse(t),
		LastActivity:       triage.LastActivity(t),
	}
	notes, err := s.notes.ListNotes(ctx, ticketID)
	if err != nil {
		s.logger.Warn("notes unavailable", zap.String("ticket_id", ticketID), zap.Error(err))
		return &view, nil
	}
	view.NoteCount = len(notes)
	for _, n := range notes {
		if n.Pinned {
			view.HasPinnedNote = true
			break
		}
	}
	return &view, nil
}

// Counts returns group-bucket counts over the filtered working set plus
// the total unread badge.
func (s *TriageService) Counts(ctx context.Context, crit triage.Criteria, groupBy string) (map[string]int, int, error) {
	snapshot := s.store.All()
	filtered := triage.ApplyAllFilters(snapshot, crit)

	var counts map[string]int
	switch groupBy {
	case "", triage.BucketAll:
		counts = map[string]int{triage.BucketAll: len(filtered)}
	case "status":
		counts = triage.CountByStatus(filtered)
	case "priority":
		counts = triage.CountByPriority(filtered)
	case "assignee":
		counts = triage.CountByAssignee(filtered)
	case "tag":
		counts = triage.CountByTag(filtered)
	case "date":
		counts = triage.CountByDateBucket(filtered, time.Now())
	default:
		return nil, 0, apperrors.NewValidationError("unknown grouping", map[string]any{"group_by": groupBy})
	}
	return counts, triage.TotalUnread(snapshot), nil
}

// Analytics computes board metrics over the loaded set for the window.
func (s *TriageService) Analytics(ctx context.Context, window triage.Window) (triage.Metrics, []triage.AdminPerformance, error) {
	admins, err := s.admins.ListAdmins(ctx)
	if err != nil {
		return triage.Metrics{}, nil, apperrors.NewPersistenceError("admin list failed", err)
	}
	snapshot := s.store.All()
	now := time.Now()
	return triage.ComputeMetrics(snapshot, window, now), triage.ComputeAdminPerformance(snapshot, admins, window, now), nil
}

// Admins lists assignable admins for the picker.
func (s *TriageService) Admins(ctx context.Context) ([]domain.AdminUser, error) {
	admins, err := s.admins.ListAdmins(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("admin list failed", err)
	}
	return admins, nil
}

// ListTags returns the tag catalog.
func (s *TriageService) ListTags(ctx context.Context) ([]domain.Tag, error) {
	tags, err := s.tags.ListTags(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("tag list failed", err)
	}
	return tags, nil
}

// GetTag resolves one catalog tag.
func (s *TriageService) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	tag, err := s.tags.GetTag(ctx, tagID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tag, nil
}

// CreateTag adds a catalog tag.
func (s *TriageService) CreateTag(ctx context.Context, name, color, icon string) (*domain.Tag, error) {
	name = trimmed(name)
	if name == "" {
		return nil, apperrors.NewValidationError("tag name required", nil)
	}
	tag := &domain.Tag{ID: uuid.NewString(), Name: name, Color: color, Icon: icon}
	if err := s.tags.CreateTag(ctx, tag); err != nil {
		return nil, apperrors.NewPersistenceError("tag create failed", err)
	}
	return tag, nil
}

// UpdateTag edits a catalog tag.
func (s *TriageService) UpdateTag(ctx context.Context, tag domain.Tag) error {
	if trimmed(tag.Name) == "" {
		return apperrors.NewValidationError("tag name required", nil)
	}
	if err := s.tags.UpdateTag(ctx, &tag); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// DeleteTag removes a catalog tag. Assignments cascade in the database;
// loaded tickets are detached immediately so the board never shows a
// dangling tag.
func (s *TriageService) DeleteTag(ctx context.Context, tagID string) error {
	if err := s.tags.DeleteTag(ctx, tagID); err != nil {
		return apperrors.MapError(err)
	}
	s.store.DetachTag(tagID)
	return nil
}

func groupIDs(tickets []domain.Ticket, groupBy string) (map[string][]string, error) {
	var groups map[string][]domain.Ticket
	switch groupBy {
	case "status":
		groups = triage.GroupByStatus(tickets)
	case "priority":
		groups = triage.GroupByPriority(tickets)
	case "assignee":
		groups = triage.GroupByAssignee(tickets)
	case "tag":
		groups = triage.GroupByTag(tickets)
	case "date":
		groups = triage.GroupByDateBucket(tickets, time.Now())
	default:
		return nil, apperrors.NewValidationError("unknown grouping", map[string]any{"group_by": groupBy})
	}

	out := make(map[string][]string, len(groups))
	for bucket, members := range groups {
		ids := make([]string, 0, len(members))
		for _, t := range members {
			ids = append(ids, t.ID)
		}
		out[bucket] = ids
	}
	return out, nil
}
