package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/storage"
)

// Notifications is the append-only alert sink. Engine operations create
// alerts inside their own transactions; this type covers the read side,
// the mark-read mutation, and creation of reminder/general alerts by
// external schedulers. low_stock stays engine-owned.
type Notifications struct {
	store  storage.Store
	logger *slog.Logger
}

func NewNotifications(store storage.Store, logger *slog.Logger) *Notifications {
	return &Notifications{store: store, logger: logger}
}

// NotificationInput carries an externally created alert.
type NotificationInput struct {
	Type       models.NotificationType `json:"type"`
	Message    string                  `json:"message"`
	UserID     *string                 `json:"user_id"`
	CustomerID *string                 `json:"customer_id"`
}

func (n *Notifications) Create(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	if in.Type != models.NotificationPaymentReminder && in.Type != models.NotificationGeneral {
		return nil, storage.Invalid("type", "must be payment_reminder or general")
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, storage.Invalid("message", "must not be empty")
	}
	if in.UserID != nil {
		if _, err := n.store.GetUser(ctx, *in.UserID); err != nil {
			return nil, err
		}
	}
	if in.CustomerID != nil {
		if _, err := n.store.GetCustomer(ctx, *in.CustomerID); err != nil {
			return nil, err
		}
	}

	alert := &models.Notification{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		CustomerID: in.CustomerID,
		Message:    in.Message,
		Type:       in.Type,
	}
	if err := n.store.SaveNotification(ctx, alert); err != nil {
		return nil, err
	}

	n.logger.Info("notification created", slog.String("type", string(alert.Type)))
	return alert, nil
}

func (n *Notifications) List(ctx context.Context, f storage.NotificationFilter) ([]models.Notification, error) {
	return n.store.ListNotifications(ctx, f)
}

// MarkRead flips the read flag, the only mutation notifications allow.
func (n *Notifications) MarkRead(ctx context.Context, id string) error {
	return n.store.MarkNotificationRead(ctx, id)
}
