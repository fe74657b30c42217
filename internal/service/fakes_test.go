package service

import (
	"context"
	"errors"
	"time"

	"gitlab.ozon.dev/qwestard/storefront/internal/apperr"
	"gitlab.ozon.dev/qwestard/storefront/internal/audit"
	"gitlab.ozon.dev/qwestard/storefront/internal/models"
)

type fakeOrderStore struct {
	orders    map[string]*models.Order
	createErr error
	listErr   error
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*models.Order)}
}

func (f *fakeOrderStore) Create(_ context.Context, o *models.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.orders[o.ID]; exists {
		return errors.New("order already exists")
	}
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, id string) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) GetByIDForUser(ctx context.Context, id, userID string) (*models.Order, error) {
	o, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID string) ([]*models.Order, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var res []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			cp := *o
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (f *fakeOrderStore) ListAll(_ context.Context) ([]*models.Order, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var res []*models.Order
	for _, o := range f.orders {
		cp := *o
		res = append(res, &cp)
	}
	return res, nil
}

func (f *fakeOrderStore) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus) error {
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return apperr.ErrConflict
	}
	o.Status = to
	return nil
}

func (f *fakeOrderStore) CancelWithinWindow(_ context.Context, id, userID string, cutoff time.Time) error {
	o, ok := f.orders[id]
	if !ok || o.UserID != userID || o.Status != models.OrderStatusPending || o.CreatedAt.Before(cutoff) {
		return apperr.ErrConflict
	}
	o.Status = models.OrderStatusCanceled
	return nil
}

func (f *fakeOrderStore) DuePendingConfirmations(_ context.Context, now time.Time, limit int) ([]*models.Order, error) {
	var res []*models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderStatusPending && !o.ConfirmDueAt.After(now) {
			cp := *o
			res = append(res, &cp)
			if len(res) == limit {
				break
			}
		}
	}
	return res, nil
}

type fakeCatalog struct {
	products map[string]*models.Product
}

func newFakeCatalog(products ...*models.Product) *fakeCatalog {
	m := make(map[string]*models.Product)
	for _, p := range products {
		m[p.ID] = p
	}
	return &fakeCatalog{products: m}
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

type notifyCall struct {
	UserID  string
	Message string
	Type    models.NotificationType
}

type fakeEventNotifier struct {
	calls []notifyCall
	err   error
}

func (f *fakeEventNotifier) Notify(_ context.Context, userID, message string, typ models.NotificationType) (*models.Notification, error) {
	f.calls = append(f.calls, notifyCall{UserID: userID, Message: message, Type: typ})
	if f.err != nil {
		return nil, f.err
	}
	return &models.Notification{UserID: userID, Message: message, Type: typ}, nil
}

type fakeAuditor struct {
	records []audit.Record
}

func (f *fakeAuditor) Log(record audit.Record) {
	f.records = append(f.records, record)
}
