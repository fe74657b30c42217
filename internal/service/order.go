package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/qwestard/storefront/internal/apperr"
	"gitlab.ozon.dev/qwestard/storefront/internal/audit"
	"gitlab.ozon.dev/qwestard/storefront/internal/metrics"
	"gitlab.ozon.dev/qwestard/storefront/internal/models"
)

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Order, error)
	ListAll(ctx context.Context) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	CancelWithinWindow(ctx context.Context, id, userID string, cutoff time.Time) error
	DuePendingConfirmations(ctx context.Context, now time.Time, limit int) ([]*models.Order, error)
}

// Catalog resolves product references at order time. The catalog itself is
// outside this core; only the price lookup contract matters here.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
}

type EventNotifier interface {
	Notify(ctx context.Context, userID, message string, typ models.NotificationType) (*models.Notification, error)
}

type Auditor interface {
	Log(record audit.Record)
}

type CreateOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	Items         []CreateOrderItem `json:"items"`
	RecipientName string            `json:"recipient_name"`
	PhoneNumber   string            `json:"phone_number"`
	Address       string            `json:"address"`
}

// OrderService is the lifecycle engine: it owns order creation with snapshot
// pricing, the cancellation window and the legality of status transitions.
type OrderService struct {
	orders   OrderStore
	catalog  Catalog
	notifier EventNotifier
	auditor  Auditor
	mt       *metrics.Metrics

	confirmDelay time.Duration
	cancelWindow time.Duration
	now          func() time.Time
}

func NewOrderService(orders OrderStore, catalog Catalog, notifier EventNotifier, auditor Auditor, mt *metrics.Metrics, confirmDelay, cancelWindow time.Duration) *OrderService {
	return &OrderService{
		orders:       orders,
		catalog:      catalog,
		notifier:     notifier,
		auditor:      auditor,
		mt:           mt,
		confirmDelay: confirmDelay,
		cancelWindow: cancelWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the request, snapshots current catalog prices into the
// line items and persists the order as pending with its auto-confirm
// deadline. Product resolution happens before any write, so a missing
// product never leaves a partial order.
func (s *OrderService) Create(ctx context.Context, userID string, req CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", apperr.ErrValidation)
	}
	if req.RecipientName == "" || req.PhoneNumber == "" || req.Address == "" {
		return nil, fmt.Errorf("%w: recipient name, phone number and address are required", apperr.ErrValidation)
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", apperr.ErrValidation)
		}
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		product, err := s.catalog.GetByID(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, fmt.Errorf("product %s: %w", it.ProductID, apperr.ErrNotFound)
			}
			return nil, fmt.Errorf("resolve product %s: %w", it.ProductID, err)
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Quantity:  it.Quantity,
			UnitPrice: product.Price,
		})
	}

	now := s.now()
	order := &models.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Items:         items,
		Status:        models.OrderStatusPending,
		RecipientName: req.RecipientName,
		PhoneNumber:   req.PhoneNumber,
		Address:       req.Address,
		CreatedAt:     now,
		ConfirmDueAt:  now.Add(s.confirmDelay),
	}
	order.Total = order.ComputeTotal()

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.mt.OrdersCreated.Inc()
	s.auditor.Log(audit.Record{
		Timestamp: now,
		OrderID:   order.ID,
		UserID:    userID,
		NewStatus: string(models.OrderStatusPending),
		Message:   "order created",
	})
	s.emit(ctx, userID, fmt.Sprintf("Your order has been placed, total %.2f.", order.Total), models.NotificationOrderPlaced)
	return order, nil
}

// Cancel transitions a pending order to canceled if it still belongs to the
// user and its creation is within the cancellation window. The whole
// precondition is checked by one compare-and-swap, so racing admin updates
// cannot both win.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID string) (*models.Order, error) {
	order, err := s.orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cutoff := now.Add(-s.cancelWindow)
	if err := s.orders.CancelWithinWindow(ctx, orderID, userID, cutoff); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("%w: order is too late to cancel or not cancellable", apperr.ErrConflict)
		}
		return nil, err
	}

	old := order.Status
	order.Status = models.OrderStatusCanceled

	s.mt.OrdersCanceled.Inc()
	s.auditor.Log(audit.Record{
		Timestamp: now,
		OrderID:   order.ID,
		UserID:    userID,
		OldStatus: string(old),
		NewStatus: string(models.OrderStatusCanceled),
		Message:   "order canceled by user",
	})
	s.emit(ctx, userID, "Your order has been canceled.", models.NotificationOrderCanceled)
	return order, nil
}

// UpdateStatus applies an admin transition. Legality is checked against the
// observed status, and the write re-checks it, so a stale read loses with
// ErrConflict instead of overwriting a concurrent transition.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus) (*models.Order, error) {
	if !models.ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, newStatus)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(order.Status, newStatus) {
		return nil, fmt.Errorf("%w: transition %s -> %s is not allowed", apperr.ErrValidation, order.Status, newStatus)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, order.Status, newStatus); err != nil {
		return nil, err
	}

	old := order.Status
	order.Status = newStatus

	s.mt.StatusUpdates.Inc()
	s.auditor.Log(audit.Record{
		Timestamp: s.now(),
		OrderID:   order.ID,
		UserID:    order.UserID,
		OldStatus: string(old),
		NewStatus: string(newStatus),
		Message:   "order status updated by admin",
	})

	typ := models.NotificationOrderStatus
	if newStatus == models.OrderStatusCanceled {
		typ = models.NotificationOrderCanceled
	}
	s.emit(ctx, order.UserID,
		fmt.Sprintf("Your order status changed from %s to %s.", old, newStatus), typ)
	return order, nil
}

func (s *OrderService) GetForUser(ctx context.Context, orderID, userID string) (*models.Order, error) {
	return s.orders.GetByIDForUser(ctx, orderID, userID)
}

func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *OrderService) ListAll(ctx context.Context) ([]*models.Order, error) {
	return s.orders.ListAll(ctx)
}

// emit raises a user-facing event. Notification failures never propagate to
// the lifecycle operation that triggered them.
func (s *OrderService) emit(ctx context.Context, userID, message string, typ models.NotificationType) {
	if _, err := s.notifier.Notify(ctx, userID, message, typ); err != nil {
		log.Printf("notify user %s: %v", userID, err)
	}
}
