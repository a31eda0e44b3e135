package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/triage"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// fakeFetcher serves pre-scripted pages and can hold a fetch open until
// released, which lets tests interleave competing loads deterministically.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]TicketPage
	err   error

	hold    chan struct{}
	started chan struct{}
}

func (f *fakeFetcher) FetchTickets(ctx context.Context, orgID, cursor string, pageSize int) (TicketPage, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return TicketPage{}, f.err
	}
	return f.pages[cursor], nil
}

func page(ids []string, next string, hasMore bool) TicketPage {
	tickets := make([]domain.Ticket, 0, len(ids))
	for _, id := range ids {
		tickets = append(tickets, domain.Ticket{ID: id, CreatedAt: time.Now()})
	}
	return TicketPage{Tickets: tickets, NextCursor: next, HasMore: hasMore}
}

func loadedIDs(s *Store) []string {
	all := s.All()
	ids := make([]string, 0, len(all))
	for _, t := range all {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestLoadFirstPageThenNext(t *testing.T) {
	s := New()
	fetcher := &fakeFetcher{pages: map[string]TicketPage{
		"":      page([]string{"a", "b"}, "cur-1", true),
		"cur-1": page([]string{"c"}, "", false),
	}}
	p := NewPaginator(s, fetcher, "org-1", 2, zap.NewNop())
	crit := triage.Criteria{}

	require.NoError(t, p.LoadFirstPage(context.Background(), crit, triage.SortNewest))
	assert.Equal(t, []string{"a", "b"}, loadedIDs(s))
	assert.True(t, p.HasMore(crit, triage.SortNewest))
	assert.Equal(t, "cur-1", p.Cursor(crit, triage.SortNewest))

	require.NoError(t, p.LoadNextPage(context.Background(), crit, triage.SortNewest, ""))
	assert.Equal(t, []string{"a", "b", "c"}, loadedIDs(s))
	assert.False(t, p.HasMore(crit, triage.SortNewest))
}

func TestNextPageDuplicatesAreDropped(t *testing.T) {
	s := New()
	fetcher := &fakeFetcher{pages: map[string]TicketPage{
		"":      page([]string{"a", "b"}, "cur-1", true),
		"cur-1": page([]string{"b", "c"}, "", false),
	}}
	p := NewPaginator(s, fetcher, "org-1", 2, zap.NewNop())
	crit := triage.Criteria{}

	require.NoError(t, p.LoadFirstPage(context.Background(), crit, triage.SortNewest))
	require.NoError(t, p.LoadNextPage(context.Background(), crit, triage.SortNewest, ""))

	assert.Equal(t, []string{"a", "b", "c"}, loadedIDs(s))
}

func TestConcurrentLoadSameQueryConflicts(t *testing.T) {
	s := New()
	fetcher := &fakeFetcher{
		pages:   map[string]TicketPage{"": page([]string{"a"}, "", false)},
		hold:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	p := NewPaginator(s, fetcher, "org-1", 2, zap.NewNop())
	crit := triage.Criteria{}

	done := make(chan error, 1)
	go func() {
		done <- p.LoadFirstPage(context.Background(), crit, triage.SortNewest)
	}()
	<-fetcher.started

	err := p.LoadFirstPage(context.Background(), crit, triage.SortNewest)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	state, _ := p.State(crit, triage.SortNewest)
	assert.Equal(t, StateLoading, state)

	close(fetcher.hold)
	require.NoError(t, <-done)
	state, _ = p.State(crit, triage.SortNewest)
	assert.Equal(t, StateIdle, state)
}

// sequencedFetcher blocks its first call until released; later calls
// return immediately. It simulates a slow fetch overtaken by a newer one.
type sequencedFetcher struct {
	mu           sync.Mutex
	calls        int
	firstStarted chan struct{}
	firstRelease chan struct{}
}

func (f *sequencedFetcher) FetchTickets(ctx context.Context, orgID, cursor string, pageSize int) (TicketPage, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if n == 1 {
		f.firstStarted <- struct{}{}
		<-f.firstRelease
		return page([]string{"old"}, "", false), nil
	}
	return page([]string{"fresh"}, "", false), nil
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	s := New()
	fetcher := &sequencedFetcher{
		firstStarted: make(chan struct{}, 1),
		firstRelease: make(chan struct{}),
	}
	p := NewPaginator(s, fetcher, "org-1", 2, zap.NewNop())

	oldCrit := triage.Criteria{Search: "old"}
	newCrit := triage.Criteria{Search: "new"}

	done := make(chan error, 1)
	go func() {
		done <- p.LoadFirstPage(context.Background(), oldCrit, triage.SortNewest)
	}()
	<-fetcher.firstStarted

	// The admin changes filters while the first fetch is in flight; the
	// newer query completes first.
	require.NoError(t, p.LoadFirstPage(context.Background(), newCrit, triage.SortNewest))
	assert.Equal(t, []string{"fresh"}, loadedIDs(s))

	// The slow fetch finally lands, no longer matching the current
	// criteria. Its payload must be dropped without error.
	close(fetcher.firstRelease)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"fresh"}, loadedIDs(s))
}

func TestFailedNextPageKeepsLoadedSet(t *testing.T) {
	s := New()
	fetcher := &fakeFetcher{pages: map[string]TicketPage{
		"": page([]string{"a", "b"}, "cur-1", true),
	}}
	p := NewPaginator(s, fetcher, "org-1", 2, zap.NewNop())
	crit := triage.Criteria{}

	require.NoError(t, p.LoadFirstPage(context.Background(), crit, triage.SortNewest))

	fetcher.mu.Lock()
	fetcher.err = assert.AnError
	fetcher.mu.Unlock()

	err := p.LoadNextPage(context.Background(), crit, triage.SortNewest, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERSISTENCE_FAILED"))
	assert.Equal(t, []string{"a", "b"}, loadedIDs(s), "a failed page load must not disturb loaded tickets")

	_, lastErr := p.State(crit, triage.SortNewest)
	assert.Error(t, lastErr)
}

func TestDistinctCriteriaTrackIndependentStates(t *testing.T) {
	s := New()
	fetcher := &fakeFetcher{pages: map[string]TicketPage{
		"": page([]string{"a"}, "cur-1", true),
	}}
	p := NewPaginator(s, fetcher, "org-1", 2, zap.NewNop())

	critA := triage.Criteria{Search: "alpha"}
	critB := triage.Criteria{Search: "beta"}

	require.NoError(t, p.LoadFirstPage(context.Background(), critA, triage.SortNewest))
	assert.True(t, p.HasMore(critA, triage.SortNewest))
	assert.False(t, p.HasMore(critB, triage.SortNewest))
	assert.Equal(t, "", p.Cursor(critB, triage.SortNewest))
}
