package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/qwestard/storefront/internal/apperr"
	"gitlab.ozon.dev/qwestard/storefront/internal/metrics"
	"gitlab.ozon.dev/qwestard/storefront/internal/models"
)

type fakeNotificationStore struct {
	notifications map[string]*models.Notification
	createErr     error
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{notifications: make(map[string]*models.Notification)}
}

func (f *fakeNotificationStore) Create(_ context.Context, n *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *n
	f.notifications[n.ID] = &cp
	return nil
}

func (f *fakeNotificationStore) ListByUser(_ context.Context, userID string) ([]*models.Notification, error) {
	var res []*models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			cp := *n
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (f *fakeNotificationStore) MarkRead(_ context.Context, id, userID string) error {
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return apperr.ErrNotFound
	}
	n.IsRead = true
	return nil
}

type fakeUserDirectory struct {
	users map[string]*models.User
}

func (f *fakeUserDirectory) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserDirectory) SetPushToken(_ context.Context, userID, token string) error {
	u, ok := f.users[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	u.PushToken = token
	return nil
}

type fakeDispatcher struct {
	delivered int
	events    []string
	payloads  []interface{}
}

func (f *fakeDispatcher) EmitToUser(_ string, event string, payload interface{}) int {
	f.events = append(f.events, event)
	f.payloads = append(f.payloads, payload)
	return f.delivered
}

type fakePushSender struct {
	sent []string
	err  error
}

func (f *fakePushSender) Send(_ context.Context, deviceToken, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, deviceToken)
	return nil
}

func newTestNotifier(store *fakeNotificationStore, users *fakeUserDirectory, hub *fakeDispatcher, push *fakePushSender) *Notifier {
	return NewNotifier(store, users, hub, push, metrics.New(prometheus.NewRegistry()))
}

func TestNotifyPersistsAndEmitsRealtime(t *testing.T) {
	store := newFakeNotificationStore()
	users := &fakeUserDirectory{users: map[string]*models.User{"user1": {ID: "user1"}}}
	hub := &fakeDispatcher{delivered: 2}
	pushSender := &fakePushSender{}
	n := newTestNotifier(store, users, hub, pushSender)

	notif, err := n.Notify(context.Background(), "user1", "order placed", models.NotificationOrderPlaced)
	require.NoError(t, err)

	assert.NotEmpty(t, notif.ID)
	assert.False(t, notif.IsRead)
	assert.Len(t, store.notifications, 1)
	require.Len(t, hub.events, 1)
	assert.Equal(t, EventNotificationNew, hub.events[0])

	payload, ok := hub.payloads[0].(NotificationPayload)
	require.True(t, ok)
	assert.Equal(t, notif.ID, payload.ID)
	assert.Equal(t, "order placed", payload.Message)

	// Delivered live, so no push attempt.
	assert.Empty(t, pushSender.sent)
}

func TestNotifyFallsBackToPushWhenOffline(t *testing.T) {
	store := newFakeNotificationStore()
	users := &fakeUserDirectory{users: map[string]*models.User{
		"user1": {ID: "user1", PushToken: "device-token-1"},
	}}
	hub := &fakeDispatcher{delivered: 0}
	pushSender := &fakePushSender{}
	n := newTestNotifier(store, users, hub, pushSender)

	_, err := n.Notify(context.Background(), "user1", "order confirmed", models.NotificationOrderConfirmed)
	require.NoError(t, err)

	assert.Len(t, store.notifications, 1)
	assert.Equal(t, []string{"device-token-1"}, pushSender.sent)
}

func TestNotifyNoSessionNoTokenStillPersists(t *testing.T) {
	store := newFakeNotificationStore()
	users := &fakeUserDirectory{users: map[string]*models.User{"user1": {ID: "user1"}}}
	hub := &fakeDispatcher{delivered: 0}
	pushSender := &fakePushSender{}
	n := newTestNotifier(store, users, hub, pushSender)

	notif, err := n.Notify(context.Background(), "user1", "msg", models.NotificationOrderPlaced)
	require.NoError(t, err)

	assert.False(t, notif.IsRead)
	assert.Len(t, store.notifications, 1)
	assert.Empty(t, pushSender.sent)
}

func TestNotifyPushFailureIsAbsorbed(t *testing.T) {
	store := newFakeNotificationStore()
	users := &fakeUserDirectory{users: map[string]*models.User{
		"user1": {ID: "user1", PushToken: "t"},
	}}
	hub := &fakeDispatcher{delivered: 0}
	pushSender := &fakePushSender{err: errors.New("provider down")}
	n := newTestNotifier(store, users, hub, pushSender)

	notif, err := n.Notify(context.Background(), "user1", "msg", models.NotificationOrderCanceled)
	require.NoError(t, err)
	assert.NotNil(t, notif)
	assert.Len(t, store.notifications, 1)
}

func TestNotifyUnknownUserPushLookupIsAbsorbed(t *testing.T) {
	store := newFakeNotificationStore()
	users := &fakeUserDirectory{users: map[string]*models.User{}}
	n := newTestNotifier(store, users, &fakeDispatcher{}, &fakePushSender{})

	notif, err := n.Notify(context.Background(), "ghost", "msg", models.NotificationGeneric)
	require.NoError(t, err)
	assert.NotNil(t, notif)
}

func TestNotifyStoreFailureIsFatal(t *testing.T) {
	store := newFakeNotificationStore()
	store.createErr = errors.New("db down")
	users := &fakeUserDirectory{users: map[string]*models.User{"user1": {ID: "user1"}}}
	hub := &fakeDispatcher{delivered: 1}
	n := newTestNotifier(store, users, hub, &fakePushSender{})

	_, err := n.Notify(context.Background(), "user1", "msg", models.NotificationGeneric)
	assert.Error(t, err)
	// Persistence is authoritative: nothing may be dispatched without it.
	assert.Empty(t, hub.events)
}

func TestNotifyUnknownTypeFallsBackToGeneric(t *testing.T) {
	store := newFakeNotificationStore()
	users := &fakeUserDirectory{users: map[string]*models.User{"user1": {ID: "user1"}}}
	n := newTestNotifier(store, users, &fakeDispatcher{delivered: 1}, &fakePushSender{})

	notif, err := n.Notify(context.Background(), "user1", "msg", models.NotificationType("weird"))
	require.NoError(t, err)
	assert.Equal(t, models.NotificationGeneric, notif.Type)
}

func TestMarkReadOwnershipScoped(t *testing.T) {
	store := newFakeNotificationStore()
	store.notifications["n1"] = &models.Notification{
		ID: "n1", UserID: "user1", CreatedAt: time.Now().UTC(),
	}
	users := &fakeUserDirectory{users: map[string]*models.User{}}
	n := newTestNotifier(store, users, &fakeDispatcher{}, &fakePushSender{})
	ctx := context.Background()

	err := n.MarkRead(ctx, "n1", "intruder")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.False(t, store.notifications["n1"].IsRead)

	err = n.MarkRead(ctx, "n1", "user1")
	require.NoError(t, err)
	assert.True(t, store.notifications["n1"].IsRead)
}

func TestRegisterDevice(t *testing.T) {
	store := newFakeNotificationStore()
	users := &fakeUserDirectory{users: map[string]*models.User{"user1": {ID: "user1"}}}
	n := newTestNotifier(store, users, &fakeDispatcher{}, &fakePushSender{})
	ctx := context.Background()

	err := n.RegisterDevice(ctx, "user1", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, n.RegisterDevice(ctx, "user1", "tok-1"))
	assert.Equal(t, "tok-1", users.users["user1"].PushToken)

	// Last write wins.
	require.NoError(t, n.RegisterDevice(ctx, "user1", "tok-2"))
	assert.Equal(t, "tok-2", users.users["user1"].PushToken)
}
