package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusShipping  OrderStatus = "shipping"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// forwardRank orders the admin-driven chain. Completed and canceled are
// terminal and have no outgoing edges.
var forwardRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusConfirmed: 1,
	OrderStatusPreparing: 2,
	OrderStatusShipping:  3,
	OrderStatusCompleted: 4,
}

func ValidStatus(s OrderStatus) bool {
	if s == OrderStatusCanceled {
		return true
	}
	_, ok := forwardRank[s]
	return ok
}

// CanTransition reports whether from -> to is a legal edge: strictly forward
// along pending -> confirmed -> preparing -> shipping -> completed, or a jump
// to canceled from pending, confirmed or preparing. Same-state transitions
// are rejected.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return false
	}
	if to == OrderStatusCanceled {
		switch from {
		case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing:
			return true
		}
		return false
	}
	fr, ok := forwardRank[from]
	if !ok {
		return false
	}
	tr, ok := forwardRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

type OrderItem struct {
	ProductID  string  `json:"product_id"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	IsReviewed bool    `json:"is_reviewed"`
}

type Order struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	Items         []OrderItem `json:"items"`
	Status        OrderStatus `json:"status"`
	Total         float64     `json:"total"`
	RecipientName string      `json:"recipient_name"`
	PhoneNumber   string      `json:"phone_number"`
	Address       string      `json:"address"`
	CreatedAt     time.Time   `json:"created_at"`
	ConfirmDueAt  time.Time   `json:"confirm_due_at"`
}

// ComputeTotal sums snapshot price times quantity over the line items.
// The stored total is written once at creation and never recomputed.
func (o *Order) ComputeTotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.UnitPrice * float64(it.Quantity)
	}
	return sum
}

type NotificationType string

const (
	NotificationOrderPlaced    NotificationType = "ORDER_PLACED"
	NotificationOrderConfirmed NotificationType = "ORDER_CONFIRMED"
	NotificationOrderCanceled  NotificationType = "ORDER_CANCELED"
	NotificationOrderStatus    NotificationType = "ORDER_STATUS"
	NotificationGeneric        NotificationType = "GENERIC"
)

func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationOrderPlaced, NotificationOrderConfirmed,
		NotificationOrderCanceled, NotificationOrderStatus, NotificationGeneric:
		return true
	}
	return false
}

type Notification struct {
	ID        string           `json:"_id"`
	UserID    string           `json:"user_id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	PushToken string `json:"push_token,omitempty"`
}

type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}
