package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeCacheRefresh is the periodic full cache reload.
	TaskTypeCacheRefresh = "cache:refresh_all"
	// TaskTypeNotificationFanout delivers a stored notification.
	TaskTypeNotificationFanout = "notify:fanout"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs the send-email task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NotificationPayload identifies a stored notification to deliver.
type NotificationPayload struct {
	NotificationID uuid.UUID `json:"notificationId"`
	RecipientID    int64     `json:"recipientId"`
	Message        string    `json:"message"`
}

// NewNotificationFanoutTask constructs the fan-out task.
func NewNotificationFanoutTask(payload NotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotificationFanout, data), nil
}

// NewCacheRefreshTask constructs the periodic cache reload task. It carries
// no payload; the handler refreshes every cache.
func NewCacheRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCacheRefresh, nil)
}
