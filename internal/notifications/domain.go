package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Notification is one stored message for a client. Delivery is pull-based;
// clients list their unread notifications.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	RecipientID int64     `json:"recipientId"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}
