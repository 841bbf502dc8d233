package service

import (
	"context"
	"fmt"

	"github.com/garyjia/ncr-tracker/internal/application/dispatcher"
	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/event"
)

// RegisterNotificationHandlers forwards report events to notifier
func RegisterNotificationHandlers(d dispatcher.Dispatcher, notifier port.Notifier) {
	d.Subscribe(event.TypeNCRCreated, "notify-created", func(ctx context.Context, evt *event.Event) error {
		return notifier.NotifyCreated(ctx, evt.Report)
	})

	d.Subscribe(event.TypeNCRStatusChanged, "notify-status-changed", func(ctx context.Context, evt *event.Event) error {
		return notifier.NotifyStatusChanged(ctx, evt.Report, evt.PreviousStatus)
	})

	d.Subscribe(event.TypeNCROverdue, "notify-overdue", func(ctx context.Context, evt *event.Event) error {
		if len(evt.Reports) == 0 {
			return nil
		}
		if err := notifier.NotifyOverdue(ctx, evt.Reports); err != nil {
			return fmt.Errorf("overdue digest of %d reports: %w", len(evt.Reports), err)
		}
		return nil
	})
}
