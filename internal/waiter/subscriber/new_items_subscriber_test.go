package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comanda/internal/domain"
	"comanda/internal/events"
)

type mockRelay struct {
	HandleNewItemsFunc func(ctx context.Context, messageID string, ev events.NewItemsEvent) (*domain.OrderNotification, error)
}

func (m *mockRelay) HandleNewItems(ctx context.Context, messageID string, ev events.NewItemsEvent) (*domain.OrderNotification, error) {
	return m.HandleNewItemsFunc(ctx, messageID, ev)
}

func newItemsDelivery(t *testing.T) events.Delivery {
	raw, err := json.Marshal(events.NewItemsEvent{OrderID: "o1", TenantID: "t1", TableID: "tb1"})
	require.NoError(t, err)
	return events.Delivery{MessageID: "msg-7", Pattern: events.PatternNewItems, Data: raw}
}

func TestNewItemsSubscriber_PassesMessageID(t *testing.T) {
	var got string
	relay := &mockRelay{
		HandleNewItemsFunc: func(ctx context.Context, messageID string, ev events.NewItemsEvent) (*domain.OrderNotification, error) {
			got = messageID
			assert.Equal(t, "tb1", ev.TableID)
			return &domain.OrderNotification{ID: "n1"}, nil
		},
	}
	router := events.NewRouter(zap.NewNop())
	NewNewItemsSubscriber(relay, zap.NewNop()).Register(router)

	require.NoError(t, router.Dispatch(context.Background(), newItemsDelivery(t)))
	assert.Equal(t, "msg-7", got)
}

func TestNewItemsSubscriber_ErrorGoesToRetry(t *testing.T) {
	relay := &mockRelay{
		HandleNewItemsFunc: func(ctx context.Context, messageID string, ev events.NewItemsEvent) (*domain.OrderNotification, error) {
			return nil, errors.New("db down")
		},
	}
	router := events.NewRouter(zap.NewNop())
	NewNewItemsSubscriber(relay, zap.NewNop()).Register(router)

	assert.Error(t, router.Dispatch(context.Background(), newItemsDelivery(t)))
}
