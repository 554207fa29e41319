package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

// Refresher reloads every cache snapshot. Implemented by the cache
// coordinator; declared here so the worker has no service dependency.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// NewCacheRefreshHandler builds the periodic full-reload handler. Failures
// are returned to asynq for retry; the caches keep serving their previous
// snapshots in the meantime.
func NewCacheRefreshHandler(refresher Refresher, metrics *jobmetrics.Metrics, logger *slog.Logger) TaskHandler {
	return TaskHandler{
		Type: TaskTypeCacheRefresh,
		Handler: func(ctx context.Context, t *asynq.Task) error {
			tracker := metrics.Track("cache_refresh")
			err := refresher.RefreshAll(ctx)
			if err != nil && logger != nil {
				logger.Error("cache refresh job", slog.Any("error", err))
			}
			return tracker.End(err)
		},
	}
}

// NewSendEmailHandler builds the transactional mail handler. Actual SMTP
// delivery is out of scope; the handler records the send.
func NewSendEmailHandler(metrics *jobmetrics.Metrics, logger *slog.Logger) TaskHandler {
	return TaskHandler{
		Type: TaskTypeSendEmail,
		Handler: func(ctx context.Context, t *asynq.Task) error {
			var payload SendEmailPayload
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
			tracker := metrics.Track("send_email")
			if logger != nil {
				logger.Info("send email",
					slog.String("to", payload.To),
					slog.String("subject", payload.Subject))
			}
			return tracker.End(nil)
		},
	}
}

// NewNotificationFanoutHandler builds the notification delivery handler.
// Push transport is out of scope; recipients poll their stored
// notifications, so delivery here is a log line plus metrics.
func NewNotificationFanoutHandler(metrics *jobmetrics.Metrics, logger *slog.Logger) TaskHandler {
	return TaskHandler{
		Type: TaskTypeNotificationFanout,
		Handler: func(ctx context.Context, t *asynq.Task) error {
			var payload NotificationPayload
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
			tracker := metrics.Track("notification_fanout")
			if logger != nil {
				logger.Info("notification fanout",
					slog.String("notification", payload.NotificationID.String()),
					slog.Int64("recipient", payload.RecipientID))
			}
			return tracker.End(nil)
		},
	}
}
