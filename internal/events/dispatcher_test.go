package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishReachesEveryHandlerDespiteFailures(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())

	var seen []string
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		seen = append(seen, "first")
		return assert.AnError
	})
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		seen = append(seen, "second")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketStatusChanged, TicketID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestPublishIgnoresUnsubscribedTypes(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())

	var called bool
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		called = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketTagAssigned, TicketID: "t1"}))
	assert.False(t, called)
}
