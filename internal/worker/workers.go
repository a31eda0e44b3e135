package worker

import (
	"context"

	"github.com/spec-kit/ticket-triage/internal/realtime"
	"github.com/spec-kit/ticket-triage/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartRealtimeWorker launches the remote change feed consumer.
func StartRealtimeWorker(ctx context.Context, subscriber *realtime.Subscriber) {
	if subscriber == nil {
		return
	}
	go subscriber.Run(ctx)
}
