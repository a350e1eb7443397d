package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comanda/internal/domain"
	apperrors "comanda/internal/errors"
	"comanda/internal/events"
	"comanda/internal/infrastructure/metrics"
)

// fakeNotificationStore enforces the unique message id like the MySQL table.
type fakeNotificationStore struct {
	mu    sync.Mutex
	rows  map[string]domain.OrderNotification
	order []string

	FindByMessageIDFunc func(ctx context.Context, tenantID, messageID string) (*domain.OrderNotification, error)
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{rows: make(map[string]domain.OrderNotification)}
}

func (f *fakeNotificationStore) Insert(ctx context.Context, n *domain.OrderNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.TenantID == n.TenantID && row.Metadata.MessageID == n.Metadata.MessageID {
			return apperrors.NewConflictError("notification already exists")
		}
	}
	f.rows[n.ID] = *n
	f.order = append(f.order, n.ID)
	return nil
}

func (f *fakeNotificationStore) FindByID(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.rows[id]
	if !ok || n.TenantID != tenantID {
		return nil, apperrors.NewNotFoundError("notification not found")
	}
	return &n, nil
}

func (f *fakeNotificationStore) FindByMessageID(ctx context.Context, tenantID, messageID string) (*domain.OrderNotification, error) {
	if f.FindByMessageIDFunc != nil {
		return f.FindByMessageIDFunc(ctx, tenantID, messageID)
	}
	return f.findByMessageID(tenantID, messageID)
}

func (f *fakeNotificationStore) findByMessageID(tenantID, messageID string) (*domain.OrderNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		if n.TenantID == tenantID && n.Metadata.MessageID == messageID {
			found := n
			return &found, nil
		}
	}
	return nil, apperrors.NewNotFoundError("notification not found")
}

func (f *fakeNotificationStore) List(ctx context.Context, tenantID string, filter domain.NotificationFilter) ([]domain.OrderNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.OrderNotification
	for _, id := range f.order {
		n := f.rows[id]
		if n.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && n.Status != *filter.Status {
			continue
		}
		if filter.TableID != "" && n.TableID != filter.TableID {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeNotificationStore) Update(ctx context.Context, n *domain.OrderNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[n.ID] = *n
	return nil
}

func (f *fakeNotificationStore) MarkAllRead(ctx context.Context, tenantID string, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, n := range f.rows {
		if n.TenantID == tenantID && n.Status == domain.NotificationUnread {
			n.Status = domain.NotificationRead
			n.ReadAt = &now
			f.rows[id] = n
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationStore) CountUnread(ctx context.Context, tenantID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.rows {
		if n.TenantID == tenantID && n.Status == domain.NotificationUnread {
			count++
		}
	}
	return count, nil
}

var notifyNow = time.Date(2024, 5, 1, 20, 15, 0, 0, time.UTC)

func newTestNotificationService(store NotificationRepository) *NotificationService {
	return NewNotificationService(store, metrics.New(), zap.NewNop()).
		WithClock(func() time.Time { return notifyNow })
}

func newItemsEvent(appended bool) events.NewItemsEvent {
	return events.NewItemsEvent{
		OrderID:  "o1",
		TenantID: "t1",
		TableID:  "tb4",
		Appended: appended,
		Items: []events.ItemSnapshot{
			{ID: "a", MenuItemID: "burger", Name: "Burger", Quantity: 2, Total: 24,
				Modifiers: []domain.ItemModifier{{Name: "Cheese"}}},
			{ID: "b", MenuItemID: "fries", Name: "Fries", Quantity: 1, Total: 4.5, Notes: "extra salt"},
		},
	}
}

func TestNotificationService_HandleNewItems(t *testing.T) {
	store := newFakeNotificationStore()
	svc := newTestNotificationService(store)

	n, err := svc.HandleNewItems(context.Background(), "msg-1", newItemsEvent(false))
	require.NoError(t, err)

	assert.Equal(t, domain.NotificationUnread, n.Status)
	assert.Equal(t, "New order at table tb4: 2x Burger, 1x Fries", n.Message)
	assert.Equal(t, []string{"a", "b"}, n.ItemIDs)
	assert.Equal(t, "msg-1", n.Metadata.MessageID)
	require.Len(t, n.Metadata.Items, 2)
	assert.Equal(t, []string{"Cheese"}, n.Metadata.Items[0].Modifiers)
	assert.Equal(t, "extra salt", n.Metadata.Items[1].Notes)
	assert.Equal(t, notifyNow, n.CreatedAt)
}

func TestNotificationService_HandleNewItems_Appended(t *testing.T) {
	svc := newTestNotificationService(newFakeNotificationStore())

	n, err := svc.HandleNewItems(context.Background(), "msg-1", newItemsEvent(true))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(n.Message, "Items added at table tb4"))
}

func TestNotificationService_HandleNewItems_RedeliveryIsIdempotent(t *testing.T) {
	store := newFakeNotificationStore()
	svc := newTestNotificationService(store)

	first, err := svc.HandleNewItems(context.Background(), "msg-1", newItemsEvent(false))
	require.NoError(t, err)
	second, err := svc.HandleNewItems(context.Background(), "msg-1", newItemsEvent(false))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.rows, 1)

	// A distinct checkout is a distinct alert.
	_, err = svc.HandleNewItems(context.Background(), "msg-2", newItemsEvent(true))
	require.NoError(t, err)
	assert.Len(t, store.rows, 2)
}

func TestNotificationService_HandleNewItems_ConcurrentDuplicate(t *testing.T) {
	store := newFakeNotificationStore()
	svc := newTestNotificationService(store)

	// The first lookup misses; a concurrent consumer inserts before we do.
	calls := 0
	store.FindByMessageIDFunc = func(ctx context.Context, tenantID, messageID string) (*domain.OrderNotification, error) {
		calls++
		if calls == 1 {
			require.NoError(t, store.Insert(ctx, &domain.OrderNotification{
				ID: "winner", TenantID: tenantID, Metadata: domain.NotificationMetadata{MessageID: messageID},
			}))
			return nil, apperrors.NewNotFoundError("notification not found")
		}
		return store.findByMessageID(tenantID, messageID)
	}

	n, err := svc.HandleNewItems(context.Background(), "msg-1", newItemsEvent(false))
	require.NoError(t, err)
	assert.Equal(t, "winner", n.ID)
}

func TestNotificationService_HandleNewItems_LookupErrorIsReturned(t *testing.T) {
	store := newFakeNotificationStore()
	store.FindByMessageIDFunc = func(ctx context.Context, tenantID, messageID string) (*domain.OrderNotification, error) {
		return nil, errors.New("db down")
	}
	svc := newTestNotificationService(store)

	_, err := svc.HandleNewItems(context.Background(), "msg-1", newItemsEvent(false))

	assert.Error(t, err)
	assert.Empty(t, store.rows)
}

func TestNotificationService_MarkRead(t *testing.T) {
	store := newFakeNotificationStore()
	svc := newTestNotificationService(store)
	n, err := svc.HandleNewItems(context.Background(), "msg-1", newItemsEvent(false))
	require.NoError(t, err)

	read, err := svc.MarkRead(context.Background(), "t1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationRead, read.Status)
	require.NotNil(t, read.ReadAt)

	_, err = svc.MarkRead(context.Background(), "t1", n.ID)
	_, ok := apperrors.IsInvalidStatusTransitionError(err)
	assert.True(t, ok, "READ cannot be read again")

	_, err = svc.Archive(context.Background(), "t1", n.ID)
	require.NoError(t, err)
	_, err = svc.MarkRead(context.Background(), "t1", n.ID)
	_, ok = apperrors.IsInvalidStatusTransitionError(err)
	assert.True(t, ok, "ARCHIVED cannot go back to READ")
}

func TestNotificationService_Archive(t *testing.T) {
	store := newFakeNotificationStore()
	svc := newTestNotificationService(store)
	n, err := svc.HandleNewItems(context.Background(), "msg-1", newItemsEvent(false))
	require.NoError(t, err)

	archived, err := svc.Archive(context.Background(), "t1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationArchived, archived.Status)
	require.NotNil(t, archived.ArchivedAt)

	again, err := svc.Archive(context.Background(), "t1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, *archived.ArchivedAt, *again.ArchivedAt)

	_, err = svc.Archive(context.Background(), "t2", n.ID)
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestNotificationService_MarkAllReadAndCount(t *testing.T) {
	store := newFakeNotificationStore()
	svc := newTestNotificationService(store)
	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := svc.HandleNewItems(context.Background(), id, newItemsEvent(false))
		require.NoError(t, err)
	}

	count, err := svc.UnreadCount(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	updated, err := svc.MarkAllRead(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	count, err = svc.UnreadCount(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
