package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/triage"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// TicketPage is one server page of tickets.
type TicketPage struct {
	Tickets    []domain.Ticket
	NextCursor string
	HasMore    bool
}

// TicketFetcher is the external ticket-fetch interface this core consumes.
// An empty cursor requests the first page; otherwise the fetch returns
// tickets strictly after the cursor.
type TicketFetcher interface {
	FetchTickets(ctx context.Context, orgID, cursor string, pageSize int) (TicketPage, error)
}

// LoadState describes a query's fetch lifecycle.
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
)

type queryState struct {
	state   LoadState
	cursor  string
	hasMore bool
	lastErr error
}

// Paginator drives "load more" against the store. Each active query,
// identified by its filter+sort criteria, runs its own
// idle → loading → idle state machine. A page that arrives after the
// criteria have changed is discarded rather than merged; the fetch itself
// is never canceled, its result is simply compared on arrival.
type Paginator struct {
	store    *Store
	fetcher  TicketFetcher
	orgID    string
	pageSize int
	logger   *zap.Logger

	mu      sync.Mutex
	current string
	queries map[string]*queryState
}

// NewPaginator constructs the controller.
func NewPaginator(s *Store, fetcher TicketFetcher, orgID string, pageSize int, logger *zap.Logger) *Paginator {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Paginator{
		store:    s,
		fetcher:  fetcher,
		orgID:    orgID,
		pageSize: pageSize,
		logger:   logger,
		queries:  make(map[string]*queryState),
	}
}

func queryKey(crit triage.Criteria, mode triage.SortMode) string {
	return crit.Fingerprint() + ";sort=" + string(mode)
}

// LoadFirstPage fetches the first page for the criteria and replaces the
// store's working set. A second call for the same criteria while one is
// loading is rejected with a conflict.
func (p *Paginator) LoadFirstPage(ctx context.Context, crit triage.Criteria, mode triage.SortMode) error {
	key := queryKey(crit, mode)

	p.mu.Lock()
	qs := p.ensureQuery(key)
	if qs.state == StateLoading {
		p.mu.Unlock()
		return apperrors.NewConflict("page load already in flight", map[string]any{"query": key})
	}
	qs.state = StateLoading
	qs.lastErr = nil
	p.current = key
	p.mu.Unlock()

	page, err := p.fetcher.FetchTickets(ctx, p.orgID, "", p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	qs.state = StateIdle
	if p.current != key {
		p.logger.Debug("discarding stale first page", zap.String("query", key))
		return nil
	}
	if err != nil {
		qs.lastErr = err
		return apperrors.NewPersistenceError("ticket fetch failed", err)
	}
	p.store.Load(page.Tickets)
	qs.cursor = page.NextCursor
	qs.hasMore = page.HasMore
	return nil
}

// LoadNextPage fetches strictly after the cursor and merges via Append.
// It refuses to run while a load for the same criteria is already in
// flight, preventing duplicate concurrent page fetches from a
// double-click. On failure the loaded set is retained unchanged.
func (p *Paginator) LoadNextPage(ctx context.Context, crit triage.Criteria, mode triage.SortMode, cursor string) error {
	key := queryKey(crit, mode)

	p.mu.Lock()
	qs := p.ensureQuery(key)
	if qs.state == StateLoading {
		p.mu.Unlock()
		return apperrors.NewConflict("page load already in flight", map[string]any{"query": key})
	}
	if cursor == "" {
		cursor = qs.cursor
	}
	qs.state = StateLoading
	qs.lastErr = nil
	p.current = key
	p.mu.Unlock()

	page, err := p.fetcher.FetchTickets(ctx, p.orgID, cursor, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	qs.state = StateIdle
	if p.current != key {
		p.logger.Debug("discarding stale page", zap.String("query", key))
		return nil
	}
	if err != nil {
		qs.lastErr = err
		return apperrors.NewPersistenceError("ticket fetch failed", err)
	}
	p.store.Append(page.Tickets)
	qs.cursor = page.NextCursor
	qs.hasMore = page.HasMore
	return nil
}

// State reports the query's load state and its last surfaced error.
func (p *Paginator) State(crit triage.Criteria, mode triage.SortMode) (LoadState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	qs, ok := p.queries[queryKey(crit, mode)]
	if !ok {
		return StateIdle, nil
	}
	return qs.state, qs.lastErr
}

// Cursor returns the stored next-page cursor for the criteria.
func (p *Paginator) Cursor(crit triage.Criteria, mode triage.SortMode) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if qs, ok := p.queries[queryKey(crit, mode)]; ok {
		return qs.cursor
	}
	return ""
}

// HasMore reports whether the server indicated further pages.
func (p *Paginator) HasMore(crit triage.Criteria, mode triage.SortMode) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if qs, ok := p.queries[queryKey(crit, mode)]; ok {
		return qs.hasMore
	}
	return false
}

func (p *Paginator) ensureQuery(key string) *queryState {
	qs, ok := p.queries[key]
	if !ok {
		qs = &queryState{state: StateIdle}
		p.queries[key] = qs
	}
	return qs
}
