package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/store"
)

// Subscriber listens on the shared redis channel and folds remote changes
// into the local store. A remote change is handled by refetching the
// ticket row rather than trusting the payload, so instances converge on
// the database's view even when messages arrive out of order.
type Subscriber struct {
	client     *redis.Client
	channel    string
	instanceID string
	store      *store.Store
	tickets    repository.TicketRepository
	logger     *zap.Logger
}

// NewSubscriber creates the subscriber.
func NewSubscriber(client *redis.Client, channel, instanceID string, s *store.Store, tickets repository.TicketRepository, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		store:      s,
		tickets:    tickets,
		logger:     logger,
	}
}

// Run blocks consuming the channel until ctx is cancelled. Callers start
// it on its own goroutine.
func (s *Subscriber) Run(ctx context.Context) {
	if s.client == nil {
		s.logger.Warn("redis not configured; remote change feed disabled")
		return
	}

	sub := s.client.Subscribe(ctx, s.channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	s.logger.Info("subscribed to change feed", zap.String("channel", s.channel))
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleMessage(ctx, msg.Payload)
		}
	}
}

func (s *Subscriber) handleMessage(ctx context.Context, raw string) {
	var msg ChangeMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		s.logger.Warn("malformed change message dropped", zap.Error(err))
		return
	}
	if msg.Origin == s.instanceID {
		return
	}

	switch msg.Type {
	case events.EventNoteAdded, events.EventNoteDeleted, events.EventNotePinToggled:
		// Note aggregates are recomputed from the repository on read;
		// nothing cached locally to update.
		return
	}

	// Only tickets in the loaded window are refreshed; everything else is
	// picked up by the next page fetch.
	if _, loaded := s.store.Get(msg.TicketID); !loaded {
		return
	}

	ticket, err := s.tickets.GetByID(ctx, msg.TicketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.store.RemoveIfPresent(msg.TicketID)
			return
		}
		s.logger.Warn("remote change refetch failed", zap.String("ticket_id", msg.TicketID), zap.Error(err))
		return
	}

	s.store.ReplaceTicket(*ticket)
	s.logger.Debug("remote change applied", zap.String("ticket_id", ticket.ID), zap.String("type", string(msg.Type)))
}
