package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gitlab.ozon.dev/qwestard/storefront/internal/apperr"
	"gitlab.ozon.dev/qwestard/storefront/internal/models"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists the order and its line items in a single transaction, so
// a failing item insert never leaves a partial order behind.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, status, total, recipient_name, phone_number, address, created_at, confirm_due_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.UserID, o.Status, o.Total, o.RecipientName, o.PhoneNumber, o.Address, o.CreatedAt, o.ConfirmDueAt,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	for i, it := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, product_id, quantity, unit_price, is_reviewed)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, i, it.ProductID, it.Quantity, it.UnitPrice, it.IsReviewed,
		)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, total, recipient_name, phone_number, address, created_at, confirm_due_at
		 FROM orders WHERE id=$1`, id)

	o := &models.Order{}
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Total,
		&o.RecipientName, &o.PhoneNumber, &o.Address, &o.CreatedAt, &o.ConfirmDueAt)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetByIDForUser scopes the read to the owner. A missing order and an order
// owned by someone else are indistinguishable to the caller.
func (r *OrderRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.Order, error) {
	o, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	return r.list(ctx,
		`SELECT id, user_id, status, total, recipient_name, phone_number, address, created_at, confirm_due_at
		 FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]*models.Order, error) {
	return r.list(ctx,
		`SELECT id, user_id, status, total, recipient_name, phone_number, address, created_at, confirm_due_at
		 FROM orders ORDER BY created_at DESC`)
}

// UpdateStatus applies from -> to as a compare-and-swap: the row is updated
// only if the status is still the one the caller observed. A lost race or a
// stale precondition surfaces as ErrConflict.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status=$1 WHERE id=$2 AND status=$3`, to, id, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// CancelWithinWindow cancels the order only when it still belongs to the
// user, is still pending, and was created after the cutoff. One statement, so
// a concurrent admin transition cannot interleave.
func (r *OrderRepository) CancelWithinWindow(ctx context.Context, id, userID string, cutoff time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status=$1
		 WHERE id=$2 AND user_id=$3 AND status=$4 AND created_at >= $5`,
		models.OrderStatusCanceled, id, userID, models.OrderStatusPending, cutoff)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// DuePendingConfirmations returns pending orders whose auto-confirm deadline
// has passed. The sweeper re-validates each with a CAS before promoting.
func (r *OrderRepository) DuePendingConfirmations(ctx context.Context, now time.Time, limit int) ([]*models.Order, error) {
	return r.list(ctx,
		`SELECT id, user_id, status, total, recipient_name, phone_number, address, created_at, confirm_due_at
		 FROM orders WHERE status=$1 AND confirm_due_at <= $2 ORDER BY confirm_due_at LIMIT $3`,
		models.OrderStatusPending, now, limit)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var res []*models.Order
	for rows.Next() {
		o := &models.Order{}
		err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.Total,
			&o.RecipientName, &o.PhoneNumber, &o.Address, &o.CreatedAt, &o.ConfirmDueAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	for _, o := range res {
		if err := r.loadItems(ctx, o); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, o *models.Order) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, quantity, unit_price, is_reviewed
		 FROM order_items WHERE order_id=$1 ORDER BY position`, o.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice, &it.IsReviewed); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}
