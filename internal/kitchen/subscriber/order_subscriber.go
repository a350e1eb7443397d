package subscriber

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"comanda/internal/domain"
	"comanda/internal/events"
)

type TicketProjector interface {
	CreateFromAccepted(ctx context.Context, messageID string, ev events.ItemsAcceptedEvent) (*domain.KitchenTicket, error)
	CancelOrderTickets(ctx context.Context, tenantID, orderID string) (int, error)
	CancelItems(ctx context.Context, tenantID, orderID string, orderItemIDs []string) (int, error)
}

// OrderSubscriber keeps the kitchen board in line with order events.
type OrderSubscriber struct {
	projector TicketProjector
	logger    *zap.Logger
}

func NewOrderSubscriber(projector TicketProjector, logger *zap.Logger) *OrderSubscriber {
	return &OrderSubscriber{projector: projector, logger: logger}
}

func (s *OrderSubscriber) Register(r *events.Router) {
	r.Handle(events.PatternItemsAccepted, s.HandleItemsAccepted)
	r.Handle(events.PatternOrderStatusChanged, s.HandleOrderStatusChanged)
	r.Handle(events.PatternItemsStatusChanged, s.HandleItemsStatusChanged)
}

func (s *OrderSubscriber) HandleItemsAccepted(ctx context.Context, d events.Delivery) error {
	var evt events.ItemsAcceptedEvent
	if err := d.Decode(&evt); err != nil {
		return err
	}

	ticket, err := s.projector.CreateFromAccepted(ctx, d.MessageID, evt)
	if err != nil {
		s.logger.Warn("ticket projection failed",
			zap.String("orderId", evt.OrderID),
			zap.String("messageId", d.MessageID),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err),
		)
		return err
	}
	if ticket != nil {
		s.logger.Debug("items accepted projected",
			zap.String("ticketId", ticket.ID),
			zap.String("messageId", d.MessageID),
		)
	}
	return nil
}

func (s *OrderSubscriber) HandleOrderStatusChanged(ctx context.Context, d events.Delivery) error {
	var evt events.OrderStatusChangedEvent
	if err := d.Decode(&evt); err != nil {
		return err
	}
	if evt.To != domain.OrderStatusCancelled {
		return nil
	}
	if evt.TenantID == "" || evt.OrderID == "" {
		return fmt.Errorf("order status event %s is missing tenantId or orderId", d.MessageID)
	}

	if _, err := s.projector.CancelOrderTickets(ctx, evt.TenantID, evt.OrderID); err != nil {
		s.logger.Warn("cancelling order tickets failed",
			zap.String("orderId", evt.OrderID),
			zap.String("messageId", d.MessageID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// HandleItemsStatusChanged only cares about items leaving the kitchen for
// good; forward progress is driven from the kitchen itself.
func (s *OrderSubscriber) HandleItemsStatusChanged(ctx context.Context, d events.Delivery) error {
	var evt events.ItemsStatusChangedEvent
	if err := d.Decode(&evt); err != nil {
		return err
	}
	if evt.Status != domain.ItemStatusRejected && evt.Status != domain.ItemStatusCancelled {
		return nil
	}
	if evt.TenantID == "" || evt.OrderID == "" {
		return fmt.Errorf("items status event %s is missing tenantId or orderId", d.MessageID)
	}

	if _, err := s.projector.CancelItems(ctx, evt.TenantID, evt.OrderID, evt.ItemIDs); err != nil {
		s.logger.Warn("cancelling ticket items failed",
			zap.String("orderId", evt.OrderID),
			zap.String("messageId", d.MessageID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
