package app

import (
	"context"
	"fmt"

	"imgresize/internal/event"
	"imgresize/internal/storage"

	"go.uber.org/zap"
)

// NotificationListener turns bucket notifications into handler tasks
type NotificationListener struct {
	client storage.Client
	logger *zap.Logger
}

// ListenAndEnqueue forwards object-created notifications to tasks until
// ctx is done or the notification stream fails.
func (l *NotificationListener) ListenAndEnqueue(ctx context.Context, bucket, prefix, suffix string, tasks chan<- event.UploadEvent) error {
	notifyCh, errCh := l.client.Listen(ctx, bucket, prefix, suffix)

	var received int64
	for {
		select {
		case n, ok := <-notifyCh:
			if !ok {
				// The stream closes on cancellation or after reporting an error
				if err := <-errCh; err != nil {
					return fmt.Errorf("error listening for notifications: %w", err)
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				l.logger.Info("Notification stream closed", zap.Int64("received", received))
				return nil
			}

			if !event.IsObjectCreated(n.EventName) {
				continue
			}
			received++

			ev := event.UploadEvent{
				Bucket:      n.Object.Bucket,
				Key:         n.Object.Key,
				ContentType: n.Object.ContentType,
				Size:        n.Object.Size,
			}
			if ev.Bucket == "" {
				ev.Bucket = bucket
			}

			select {
			case tasks <- ev:
				l.logger.Debug("Enqueued event", zap.String("key", ev.Key), zap.String("event", n.EventName))
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
