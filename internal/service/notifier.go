package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/qwestard/storefront/internal/apperr"
	"gitlab.ozon.dev/qwestard/storefront/internal/metrics"
	"gitlab.ozon.dev/qwestard/storefront/internal/models"
)

// EventNotificationNew is the realtime event consumed by clients.
const EventNotificationNew = "notification:new"

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetPushToken(ctx context.Context, userID, token string) error
}

// Dispatcher pushes an event to every live session of a user and reports how
// many sessions received it.
type Dispatcher interface {
	EmitToUser(userID string, event string, payload interface{}) int
}

type PushSender interface {
	Send(ctx context.Context, deviceToken, body string) error
}

// NotificationPayload is what goes over the socket: the persisted record
// minus the owner and read flag.
type NotificationPayload struct {
	ID        string                  `json:"_id"`
	Message   string                  `json:"message"`
	Type      models.NotificationType `json:"type"`
	CreatedAt time.Time               `json:"createdAt"`
}

// Notifier persists notifications and fans them out: realtime first, push
// fallback when no session is live. Persistence is authoritative; both
// delivery channels are best-effort and never fail the call.
type Notifier struct {
	store NotificationStore
	users UserDirectory
	hub   Dispatcher
	push  PushSender
	mt    *metrics.Metrics
	now   func() time.Time
}

func NewNotifier(store NotificationStore, users UserDirectory, hub Dispatcher, push PushSender, mt *metrics.Metrics) *Notifier {
	return &Notifier{
		store: store,
		users: users,
		hub:   hub,
		push:  push,
		mt:    mt,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (n *Notifier) Notify(ctx context.Context, userID, message string, typ models.NotificationType) (*models.Notification, error) {
	if !models.ValidNotificationType(typ) {
		typ = models.NotificationGeneric
	}
	notif := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Type:      typ,
		IsRead:    false,
		CreatedAt: n.now(),
	}
	if err := n.store.Create(ctx, notif); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	payload := NotificationPayload{
		ID:        notif.ID,
		Message:   notif.Message,
		Type:      notif.Type,
		CreatedAt: notif.CreatedAt,
	}
	delivered := n.hub.EmitToUser(userID, EventNotificationNew, payload)
	if delivered > 0 {
		n.mt.Notifications.WithLabelValues("realtime").Inc()
		return notif, nil
	}

	n.mt.Notifications.WithLabelValues("stored").Inc()
	n.sendPush(ctx, userID, message)
	return notif, nil
}

// sendPush is fire-and-forget: a missing user, absent token or provider
// failure is logged and absorbed.
func (n *Notifier) sendPush(ctx context.Context, userID, message string) {
	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("push fallback: lookup user %s: %v", userID, err)
		return
	}
	if user.PushToken == "" {
		log.Printf("push fallback: user %s has no registered device token", userID)
		return
	}
	if err := n.push.Send(ctx, user.PushToken, message); err != nil {
		log.Printf("push fallback: send to user %s: %v", userID, err)
		return
	}
	n.mt.Notifications.WithLabelValues("push").Inc()
}

func (n *Notifier) ListByUser(ctx context.Context, userID string) ([]*models.Notification, error) {
	return n.store.ListByUser(ctx, userID)
}

func (n *Notifier) MarkRead(ctx context.Context, id, userID string) error {
	return n.store.MarkRead(ctx, id, userID)
}

// RegisterDevice stores the user's push provider token, last write wins.
func (n *Notifier) RegisterDevice(ctx context.Context, userID, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty device token", apperr.ErrValidation)
	}
	return n.users.SetPushToken(ctx, userID, token)
}
