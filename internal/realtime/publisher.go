package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/events"
)

// ChangeMessage is the envelope mirrored onto the redis channel for every
// domain event. Origin carries the publishing instance id so a subscriber
// can skip its own echoes.
type ChangeMessage struct {
	Origin   string           `json:"origin"`
	Type     events.EventType `json:"type"`
	TicketID string           `json:"ticket_id"`
	Payload  json.RawMessage  `json:"payload,omitempty"`
}

// Publisher mirrors locally dispatched events onto the shared redis
// channel so other dashboard instances converge on the same state.
type Publisher struct {
	client     *redis.Client
	channel    string
	instanceID string
	logger     *zap.Logger
}

// NewPublisher creates the publisher. instanceID must match the
// subscriber's so this instance's own messages are filtered out.
func NewPublisher(client *redis.Client, channel, instanceID string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		logger:     logger,
	}
}

// RegisterHandlers subscribes the publisher to every ticket-scoped event
// type on the dispatcher.
func (p *Publisher) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketStatusChanged,
		events.EventTicketPriorityChanged,
		events.EventTicketAssigned,
		events.EventTicketTagAssigned,
		events.EventTicketTagRemoved,
		events.EventTicketResponsesRead,
		events.EventResponseReceived,
		events.EventNoteAdded,
		events.EventNoteDeleted,
		events.EventNotePinToggled,
	} {
		dispatcher.Subscribe(eventType, p.handleEvent)
	}
}

func (p *Publisher) handleEvent(ctx context.Context, event events.Event) error {
	if p.client == nil {
		return nil
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		p.logger.Warn("change payload marshal failed", zap.Error(err))
		payload = nil
	}
	msg := ChangeMessage{
		Origin:   p.instanceID,
		Type:     event.Type,
		TicketID: event.TicketID,
		Payload:  payload,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		// The local mutation already settled; a missed broadcast only
		// delays convergence until the next fetch.
		p.logger.Warn("change publish failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
	return nil
}
