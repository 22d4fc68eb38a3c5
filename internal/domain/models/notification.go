package models

import "time"

type NotificationType string

const (
	NotificationLowStock        NotificationType = "low_stock"
	NotificationPaymentReminder NotificationType = "payment_reminder"
	NotificationGeneral         NotificationType = "general"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	return t == NotificationLowStock || t == NotificationPaymentReminder || t == NotificationGeneral
}

// Notification is a persisted alert. UserID and CustomerID are optional
// targets; both nil means broadcast. Rows are created as side effects of
// engine operations (or by external schedulers for reminders) and the read
// flag is the only mutable field.
type Notification struct {
	ID         string           `json:"id"`
	UserID     *string          `json:"user_id,omitempty"`
	CustomerID *string          `json:"customer_id,omitempty"`
	Message    string           `json:"message"`
	Type       NotificationType `json:"type"`
	IsRead     bool             `json:"is_read"`
	CreatedAt  time.Time        `json:"created_at"`
}
