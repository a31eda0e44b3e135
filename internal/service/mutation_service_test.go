package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/store"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

type fakeMutator struct {
	mu      sync.Mutex
	failing map[string]error
	calls   []string

	// Conflict tests park the first SetStatus call here until released.
	entered chan struct{}
	release chan struct{}
}

func newFakeMutator() *fakeMutator {
	return &fakeMutator{failing: make(map[string]error)}
}

func (f *fakeMutator) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	return f.failing[method]
}

func (f *fakeMutator) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeMutator) SetStatus(_ context.Context, _ string, _ domain.TicketStatus) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.record("SetStatus")
}

func (f *fakeMutator) SetPriority(_ context.Context, _ string, _ *domain.TicketPriority) error {
	return f.record("SetPriority")
}

func (f *fakeMutator) SetAssignee(_ context.Context, _ string, _ *string) error {
	return f.record("SetAssignee")
}

func (f *fakeMutator) AssignTag(_ context.Context, _, _ string) error {
	return f.record("AssignTag")
}

func (f *fakeMutator) RemoveTag(_ context.Context, _, _ string) error {
	return f.record("RemoveTag")
}

func (f *fakeMutator) MarkResponsesRead(_ context.Context, _ string) error {
	return f.record("MarkResponsesRead")
}

func (f *fakeMutator) CreateResponse(_ context.Context, _ *domain.Response) error {
	return f.record("CreateResponse")
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) byType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func loadedTicket(id string) domain.Ticket {
	return domain.Ticket{
		ID:        id,
		OrgID:     "org-1",
		Subject:   "printer on fire",
		Status:    domain.TicketStatusOpen,
		CreatedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}
}

func newMutationFixture(tickets ...domain.Ticket) (*MutationService, *store.Store, *fakeMutator, *recordingDispatcher, *observability.Metrics) {
	st := store.New()
	st.Load(tickets)
	mutator := newFakeMutator()
	dispatcher := &recordingDispatcher{}
	metrics := observability.NewMetrics()
	svc := NewMutationService(MutationDependencies{
		Store:      st,
		Tickets:    mutator,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Metrics:    metrics,
	})
	return svc, st, mutator, dispatcher, metrics
}

func TestUpdateStatusAppliesAndPublishes(t *testing.T) {
	svc, st, mutator, dispatcher, metrics := newMutationFixture(loadedTicket("t1"))

	updated, err := svc.UpdateStatus(context.Background(), "admin-1", "t1", domain.TicketStatusClosed)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)

	stored, ok := st.Get("t1")
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)

	assert.Equal(t, 1, mutator.callCount("SetStatus"))
	assert.Equal(t, int64(1), metrics.MutationCount(string(OpStatus), "applied"))

	published := dispatcher.byType(events.EventTicketStatusChanged)
	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.StatusChangedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusOpen, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusClosed, payload.NewStatus)
	assert.Equal(t, "admin-1", published[0].ActorID)
	assert.False(t, svc.InFlight("t1", OpStatus))
}

func TestUpdateStatusRollsBackOnPersistenceFailure(t *testing.T) {
	svc, st, mutator, dispatcher, metrics := newMutationFixture(loadedTicket("t1"))
	mutator.failing["SetStatus"] = assert.AnError

	updated, err := svc.UpdateStatus(context.Background(), "admin-1", "t1", domain.TicketStatusClosed)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERSISTENCE_FAILED"))

	require.NotNil(t, updated)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status, "settled value reflects the rollback")

	stored, _ := st.Get("t1")
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)

	assert.Equal(t, int64(1), metrics.MutationCount(string(OpStatus), "rolled_back"))
	assert.Empty(t, dispatcher.byType(events.EventTicketStatusChanged))
	assert.False(t, svc.InFlight("t1", OpStatus))
}

func TestUpdateStatusUnloadedTicketIsSilentNoOp(t *testing.T) {
	svc, _, mutator, dispatcher, _ := newMutationFixture(loadedTicket("t1"))

	updated, err := svc.UpdateStatus(context.Background(), "admin-1", "gone", domain.TicketStatusClosed)
	assert.NoError(t, err)
	assert.Nil(t, updated)
	assert.Zero(t, mutator.callCount("SetStatus"), "nothing persisted for an unloaded ticket")
	assert.Empty(t, dispatcher.events)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, mutator, _, _ := newMutationFixture(loadedTicket("t1"))

	_, err := svc.UpdateStatus(context.Background(), "admin-1", "t1", domain.TicketStatus("resolved"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Zero(t, mutator.callCount("SetStatus"))
}

func TestUpdatePriorityClearsWithNil(t *testing.T) {
	high := domain.TicketPriorityHigh
	ticket := loadedTicket("t1")
	ticket.Priority = &high
	svc, st, _, dispatcher, _ := newMutationFixture(ticket)

	updated, err := svc.UpdatePriority(context.Background(), "admin-1", "t1", nil)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Nil(t, updated.Priority)

	stored, _ := st.Get("t1")
	assert.Nil(t, stored.Priority)

	published := dispatcher.byType(events.EventTicketPriorityChanged)
	require.Len(t, published, 1)
	payload := published[0].Payload.(events.PriorityChangedPayload)
	require.NotNil(t, payload.OldPriority)
	assert.Equal(t, high, *payload.OldPriority)
	assert.Nil(t, payload.NewPriority)
}

func TestUpdatePriorityRejectsUnknownValue(t *testing.T) {
	svc, _, mutator, _, _ := newMutationFixture(loadedTicket("t1"))

	bogus := domain.TicketPriority("urgent")
	_, err := svc.UpdatePriority(context.Background(), "admin-1", "t1", &bogus)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Zero(t, mutator.callCount("SetPriority"))
}

func TestUpdateAssigneeRollbackRestoresPriorAssignee(t *testing.T) {
	admin1 := "admin-1"
	ticket := loadedTicket("t1")
	ticket.AssigneeID = &admin1
	svc, st, mutator, _, metrics := newMutationFixture(ticket)
	mutator.failing["SetAssignee"] = assert.AnError

	admin2 := "admin-2"
	_, err := svc.UpdateAssignee(context.Background(), "admin-1", "t1", &admin2)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERSISTENCE_FAILED"))

	stored, _ := st.Get("t1")
	require.NotNil(t, stored.AssigneeID)
	assert.Equal(t, "admin-1", *stored.AssigneeID)
	assert.Equal(t, int64(1), metrics.MutationCount(string(OpAssignee), "rolled_back"))
}

func TestConcurrentSameKindMutationConflicts(t *testing.T) {
	svc, _, mutator, _, metrics := newMutationFixture(loadedTicket("t1"))
	mutator.entered = make(chan struct{}, 1)
	mutator.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.UpdateStatus(context.Background(), "admin-1", "t1", domain.TicketStatusClosed)
		done <- err
	}()
	<-mutator.entered

	assert.True(t, svc.InFlight("t1", OpStatus))

	_, err := svc.UpdateStatus(context.Background(), "admin-2", "t1", domain.TicketStatusInProgress)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	assert.Equal(t, int64(1), metrics.MutationCount(string(OpStatus), "conflict"))

	// A different operation kind on the same ticket is not blocked.
	_, err = svc.UpdateAssignee(context.Background(), "admin-2", "t1", nil)
	assert.NoError(t, err)

	close(mutator.release)
	require.NoError(t, <-done)
	assert.False(t, svc.InFlight("t1", OpStatus))
}

func TestAssignTagAlreadyPresentIsIdempotent(t *testing.T) {
	tag := domain.Tag{ID: "tag-bug", Name: "bug"}
	ticket := loadedTicket("t1")
	ticket.Tags = []domain.Tag{tag}
	svc, _, mutator, dispatcher, _ := newMutationFixture(ticket)

	updated, err := svc.AssignTag(context.Background(), "admin-1", "t1", tag)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Len(t, updated.Tags, 1)
	assert.Zero(t, mutator.callCount("AssignTag"))
	assert.Empty(t, dispatcher.byType(events.EventTicketTagAssigned))
	assert.False(t, svc.InFlight("t1", OpTag))
}

func TestRemoveTagAbsentIsIdempotent(t *testing.T) {
	svc, _, mutator, dispatcher, _ := newMutationFixture(loadedTicket("t1"))

	updated, err := svc.RemoveTag(context.Background(), "admin-1", "t1", "tag-bug")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Zero(t, mutator.callCount("RemoveTag"))
	assert.Empty(t, dispatcher.byType(events.EventTicketTagRemoved))
}

func TestAssignTagRollbackRestoresTags(t *testing.T) {
	existing := domain.Tag{ID: "tag-billing", Name: "billing"}
	ticket := loadedTicket("t1")
	ticket.Tags = []domain.Tag{existing}
	svc, st, mutator, _, _ := newMutationFixture(ticket)
	mutator.failing["AssignTag"] = assert.AnError

	_, err := svc.AssignTag(context.Background(), "admin-1", "t1", domain.Tag{ID: "tag-bug", Name: "bug"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERSISTENCE_FAILED"))

	stored, _ := st.Get("t1")
	require.Len(t, stored.Tags, 1)
	assert.Equal(t, "tag-billing", stored.Tags[0].ID)
}

func TestAssignTagRollbackOnUntaggedTicket(t *testing.T) {
	ticket := loadedTicket("t1")
	ticket.Tags = nil
	svc, st, mutator, dispatcher, _ := newMutationFixture(ticket)
	mutator.failing["AssignTag"] = assert.AnError

	_, err := svc.AssignTag(context.Background(), "admin-1", "t1", domain.Tag{ID: "tag-bug", Name: "bug"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERSISTENCE_FAILED"))

	stored, _ := st.Get("t1")
	assert.Empty(t, stored.Tags, "failed tag assignment must be rolled back")
	assert.Empty(t, dispatcher.byType(events.EventTicketTagAssigned))
}

func TestMarkResponsesReadFlipsAndPublishesCount(t *testing.T) {
	ticket := loadedTicket("t1")
	ticket.Responses = []domain.Response{
		{ID: "r1", TicketID: "t1", IsAdmin: false, IsRead: false},
		{ID: "r2", TicketID: "t1", IsAdmin: false, IsRead: false},
		{ID: "r3", TicketID: "t1", IsAdmin: true, IsRead: false},
	}
	svc, st, mutator, dispatcher, _ := newMutationFixture(ticket)

	updated, err := svc.MarkResponsesRead(context.Background(), "admin-1", "t1")
	require.NoError(t, err)
	require.NotNil(t, updated)

	stored, _ := st.Get("t1")
	for _, r := range stored.Responses {
		if !r.IsAdmin {
			assert.True(t, r.IsRead)
		}
	}
	assert.Equal(t, 1, mutator.callCount("MarkResponsesRead"))

	published := dispatcher.byType(events.EventTicketResponsesRead)
	require.Len(t, published, 1)
	assert.Equal(t, 2, published[0].Payload.(events.ResponsesReadPayload).ReadCount)

	// Nothing left to flip: the second call never reaches persistence.
	_, err = svc.MarkResponsesRead(context.Background(), "admin-1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, mutator.callCount("MarkResponsesRead"))
}

func TestMarkResponsesReadRollbackRestoresThread(t *testing.T) {
	ticket := loadedTicket("t1")
	ticket.Responses = []domain.Response{
		{ID: "r1", TicketID: "t1", IsAdmin: false, IsRead: false},
	}
	svc, st, mutator, _, metrics := newMutationFixture(ticket)
	mutator.failing["MarkResponsesRead"] = assert.AnError

	_, err := svc.MarkResponsesRead(context.Background(), "admin-1", "t1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERSISTENCE_FAILED"))

	stored, _ := st.Get("t1")
	require.Len(t, stored.Responses, 1)
	assert.False(t, stored.Responses[0].IsRead)
	assert.Equal(t, int64(1), metrics.MutationCount(string(OpMarkRead), "rolled_back"))
}

func TestAddAdminResponseIsPersistFirst(t *testing.T) {
	svc, st, mutator, _, _ := newMutationFixture(loadedTicket("t1"))
	mutator.failing["CreateResponse"] = assert.AnError

	_, err := svc.AddAdminResponse(context.Background(), "admin-1", "t1", "taking a look")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERSISTENCE_FAILED"))

	stored, _ := st.Get("t1")
	assert.Empty(t, stored.Responses, "nothing applied when persistence fails")
}

func TestAddAdminResponseAppendsOnSuccess(t *testing.T) {
	svc, st, _, dispatcher, _ := newMutationFixture(loadedTicket("t1"))

	resp, err := svc.AddAdminResponse(context.Background(), "admin-1", "t1", "  taking a look  ")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "taking a look", resp.Body)
	assert.True(t, resp.IsAdmin)
	assert.True(t, resp.IsRead, "admin replies are born read")

	stored, _ := st.Get("t1")
	require.Len(t, stored.Responses, 1)
	assert.Equal(t, resp.ID, stored.Responses[0].ID)

	require.Len(t, dispatcher.byType(events.EventResponseReceived), 1)
}

func TestAddAdminResponseRejectsEmptyBody(t *testing.T) {
	svc, _, mutator, _, _ := newMutationFixture(loadedTicket("t1"))

	_, err := svc.AddAdminResponse(context.Background(), "admin-1", "t1", "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Zero(t, mutator.callCount("CreateResponse"))
}
