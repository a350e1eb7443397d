package subscriber

import (
	"context"

	"go.uber.org/zap"

	"comanda/internal/domain"
	"comanda/internal/events"
)

type Relay interface {
	HandleNewItems(ctx context.Context, messageID string, ev events.NewItemsEvent) (*domain.OrderNotification, error)
}

// NewItemsSubscriber turns checkout events into waiter alerts.
type NewItemsSubscriber struct {
	relay  Relay
	logger *zap.Logger
}

func NewNewItemsSubscriber(relay Relay, logger *zap.Logger) *NewItemsSubscriber {
	return &NewItemsSubscriber{relay: relay, logger: logger}
}

func (s *NewItemsSubscriber) Register(r *events.Router) {
	r.Handle(events.PatternNewItems, s.HandleNewItems)
}

func (s *NewItemsSubscriber) HandleNewItems(ctx context.Context, d events.Delivery) error {
	var evt events.NewItemsEvent
	if err := d.Decode(&evt); err != nil {
		return err
	}

	if _, err := s.relay.HandleNewItems(ctx, d.MessageID, evt); err != nil {
		s.logger.Warn("notification relay failed",
			zap.String("orderId", evt.OrderID),
			zap.String("messageId", d.MessageID),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err),
		)
		return err
	}
	return nil
}
