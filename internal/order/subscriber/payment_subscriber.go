package subscriber

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"comanda/internal/domain"
	"comanda/internal/events"
)

type PaymentService interface {
	CompletePayment(ctx context.Context, tenantID, orderID, paymentID string) (*domain.Order, error)
}

// PaymentSubscriber closes orders when the payment collaborator reports a
// completed payment.
type PaymentSubscriber struct {
	service PaymentService
	logger  *zap.Logger
}

func NewPaymentSubscriber(service PaymentService, logger *zap.Logger) *PaymentSubscriber {
	return &PaymentSubscriber{service: service, logger: logger}
}

func (s *PaymentSubscriber) Register(r *events.Router) {
	r.Handle(events.PatternPaymentCompleted, s.HandlePaymentCompleted)
}

func (s *PaymentSubscriber) HandlePaymentCompleted(ctx context.Context, d events.Delivery) error {
	var evt events.PaymentCompletedEvent
	if err := d.Decode(&evt); err != nil {
		return err
	}
	if evt.TenantID == "" || evt.OrderID == "" {
		return fmt.Errorf("payment event %s is missing tenantId or orderId", d.MessageID)
	}

	if _, err := s.service.CompletePayment(ctx, evt.TenantID, evt.OrderID, evt.PaymentID); err != nil {
		s.logger.Warn("payment completion failed",
			zap.String("orderId", evt.OrderID),
			zap.String("messageId", d.MessageID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
