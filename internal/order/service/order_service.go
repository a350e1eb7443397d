package service

import (
	"context"
	"fmt"
	"time"

	"comanda/internal/domain"
	apperrors "comanda/internal/errors"
	"comanda/internal/events"
	"comanda/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type OrderRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*domain.Order, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id string) (*domain.Order, error)
	FindOpenByTable(ctx context.Context, tenantID, tableID string) (*domain.Order, error)
	List(ctx context.Context, tenantID string, f domain.OrderFilter) ([]domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
}

type OrderItemRepository interface {
	UpdateStatus(ctx context.Context, item domain.OrderItem) error
}

// OrderService owns every state change of an existing order. Writes run in one
// transaction with the order row locked; events go out after commit.
type OrderService struct {
	tx        Transactor
	orderRepo OrderRepository
	itemRepo  OrderItemRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrderService(
	tx Transactor,
	orderRepo OrderRepository,
	itemRepo OrderItemRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		tx:        tx,
		orderRepo: orderRepo,
		itemRepo:  itemRepo,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

func (s *OrderService) GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	return s.orderRepo.FindByID(ctx, tenantID, orderID)
}

func (s *OrderService) GetOpenOrder(ctx context.Context, tenantID, tableID string) (*domain.Order, error) {
	return s.orderRepo.FindOpenByTable(ctx, tenantID, tableID)
}

func (s *OrderService) ListOrders(ctx context.Context, tenantID string, f domain.OrderFilter) ([]domain.Order, error) {
	return s.orderRepo.List(ctx, tenantID, f)
}

// UpdateItemsStatus moves a batch of items to one status. The batch is all or
// nothing: every item is validated before any is changed.
func (s *OrderService) UpdateItemsStatus(ctx context.Context, tenantID, orderID string, change domain.ItemStatusChange) (*domain.Order, error) {
	ids := dedupe(change.ItemIDs)
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("itemIds must not be empty",
			apperrors.ValidationDetail{Field: "itemIds", Message: "at least one item id is required"})
	}
	if _, ok := domain.ParseItemStatus(string(change.Status)); !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown item status %q", change.Status),
			apperrors.ValidationDetail{Field: "status", Message: "unknown status"})
	}
	if change.Status == domain.ItemStatusRejected && change.Reason == "" {
		return nil, apperrors.NewValidationError("a reason is required to reject items",
			apperrors.ValidationDetail{Field: "reason", Message: "required when status is REJECTED"})
	}

	var (
		order   *domain.Order
		from    domain.OrderStatus
		changed []domain.OrderItem
	)
	now := s.now()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByIDForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		targets := make([]*domain.OrderItem, 0, len(ids))
		for _, id := range ids {
			item, ok := order.ItemByID(id)
			if !ok {
				return apperrors.NewNotFoundError(fmt.Sprintf("item %s not found in order %s", id, orderID))
			}
			if !domain.IsValidItemTransition(item.Status, change.Status) {
				return apperrors.NewInvalidStatusTransitionError("order item", id, string(item.Status), string(change.Status))
			}
			targets = append(targets, item)
		}

		changed = changed[:0]
		for _, item := range targets {
			item.ApplyStatus(change.Status, change.Reason, now)
			if err := s.itemRepo.UpdateStatus(ctx, *item); err != nil {
				return err
			}
			changed = append(changed, *item)
		}

		order.RecomputeTotals()
		order.PromoteIfStarted(now)
		order.UpdatedAt = now
		return s.orderRepo.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ItemTransitions.WithLabelValues(string(change.Status)).Add(float64(len(changed)))
	s.logger.Info("order items status updated",
		zap.String("tenantId", tenantID),
		zap.String("orderId", orderID),
		zap.String("status", string(change.Status)),
		zap.Int("itemCount", len(changed)),
		zap.String("actorId", change.ActorID),
	)

	if change.Status == domain.ItemStatusAccepted {
		s.publish(ctx, events.NewMessage(events.PatternItemsAccepted, events.ItemsAcceptedEvent{
			OrderID:    order.ID,
			TenantID:   order.TenantID,
			TableID:    order.TableID,
			WaiterID:   order.WaiterID,
			Items:      events.SnapshotItems(changed),
			AcceptedAt: now,
		}))
	}
	s.publish(ctx, events.NewMessage(events.PatternItemsStatusChanged, events.ItemsStatusChangedEvent{
		OrderID:   order.ID,
		TenantID:  order.TenantID,
		TableID:   order.TableID,
		ItemIDs:   ids,
		Status:    change.Status,
		Reason:    change.Reason,
		ChangedAt: now,
	}))
	if order.Status != from {
		s.publishStatusChanged(ctx, order, from, now)
	}
	if order.PaymentReady() {
		s.logger.Info("order ready for payment", zap.String("orderId", order.ID), zap.Float64("total", order.Total))
	}

	return order, nil
}

// ResendAccepted publishes items_accepted again for every item still
// ACCEPTED. The kitchen skips items that already sit on a ticket, so a
// repeat only fills the gap left by a lost publish. Unlike the event emitted
// by UpdateItemsStatus, a publish failure here is returned to the caller.
func (s *OrderService) ResendAccepted(ctx context.Context, tenantID, orderID string) (int, error) {
	order, err := s.orderRepo.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return 0, err
	}
	if order.Status.IsTerminal() {
		return 0, apperrors.NewConflictError(fmt.Sprintf("order %s is %s", order.ID, order.Status))
	}

	var accepted []domain.OrderItem
	for _, item := range order.Items {
		if item.Status == domain.ItemStatusAccepted {
			accepted = append(accepted, item)
		}
	}
	if len(accepted) == 0 {
		return 0, nil
	}

	msg := events.NewMessage(events.PatternItemsAccepted, events.ItemsAcceptedEvent{
		OrderID:    order.ID,
		TenantID:   order.TenantID,
		TableID:    order.TableID,
		WaiterID:   order.WaiterID,
		Items:      events.SnapshotItems(accepted),
		AcceptedAt: s.now(),
	})
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return 0, fmt.Errorf("resending accepted items: %w", err)
	}

	s.logger.Info("accepted items resent to kitchen",
		zap.String("tenantId", tenantID),
		zap.String("orderId", orderID),
		zap.String("messageId", msg.ID),
		zap.Int("itemCount", len(accepted)),
	)
	return len(accepted), nil
}

// CancelOrder cancels an open order and every item that has not reached a
// terminal status.
func (s *OrderService) CancelOrder(ctx context.Context, tenantID, orderID, actorID string) (*domain.Order, error) {
	var (
		order     *domain.Order
		from      domain.OrderStatus
		cancelled []string
	)
	now := s.now()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByIDForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		if !order.CanCancel() {
			return apperrors.NewInvalidStatusTransitionError("order", orderID, string(order.Status), string(domain.OrderStatusCancelled))
		}
		from = order.Status

		cancelled = order.Cancel(now)
		for _, id := range cancelled {
			item, _ := order.ItemByID(id)
			if err := s.itemRepo.UpdateStatus(ctx, *item); err != nil {
				return err
			}
		}
		return s.orderRepo.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ItemTransitions.WithLabelValues(string(domain.ItemStatusCancelled)).Add(float64(len(cancelled)))
	s.logger.Info("order cancelled",
		zap.String("tenantId", tenantID),
		zap.String("orderId", orderID),
		zap.Int("cancelledItems", len(cancelled)),
		zap.String("actorId", actorID),
	)

	s.publishStatusChanged(ctx, order, from, now)
	if len(cancelled) > 0 {
		s.publish(ctx, events.NewMessage(events.PatternItemsStatusChanged, events.ItemsStatusChangedEvent{
			OrderID:   order.ID,
			TenantID:  order.TenantID,
			TableID:   order.TableID,
			ItemIDs:   cancelled,
			Status:    domain.ItemStatusCancelled,
			Reason:    "order cancelled",
			ChangedAt: now,
		}))
	}
	return order, nil
}

// ApplyDiscount sets an absolute discount, subtracted after tax.
func (s *OrderService) ApplyDiscount(ctx context.Context, tenantID, orderID string, discount float64) (*domain.Order, error) {
	if discount < 0 {
		return nil, apperrors.NewValidationError("discount must not be negative",
			apperrors.ValidationDetail{Field: "discount", Message: "must be >= 0"})
	}

	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByIDForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return apperrors.NewConflictError(fmt.Sprintf("order %s is %s and can no longer be discounted", orderID, order.Status))
		}
		order.Discount = domain.RoundMoney(discount)
		order.RecomputeTotals()
		order.UpdatedAt = s.now()
		return s.orderRepo.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("discount applied", zap.String("orderId", orderID), zap.Float64("discount", order.Discount), zap.Float64("total", order.Total))
	return order, nil
}

// CompletePayment closes a payment-ready order. Repeating it on an order that
// is already paid returns the order unchanged, so redelivered payment events
// are harmless.
func (s *OrderService) CompletePayment(ctx context.Context, tenantID, orderID, paymentID string) (*domain.Order, error) {
	var (
		order   *domain.Order
		from    domain.OrderStatus
		already bool
	)
	now := s.now()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByIDForUpdate(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderStatusCompleted && order.PaymentStatus == domain.PaymentStatusPaid {
			already = true
			return nil
		}
		if order.Status.IsTerminal() {
			return apperrors.NewInvalidStatusTransitionError("order", orderID, string(order.Status), string(domain.OrderStatusCompleted))
		}
		if !order.PaymentReady() {
			return apperrors.NewConflictError(fmt.Sprintf("order %s has items that are not served yet", orderID))
		}

		from = order.Status
		order.Status = domain.OrderStatusCompleted
		order.PaymentStatus = domain.PaymentStatusPaid
		order.CompletedAt = &now
		order.UpdatedAt = now
		return s.orderRepo.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	if already {
		s.logger.Debug("payment already completed", zap.String("orderId", orderID))
		return order, nil
	}

	s.logger.Info("payment completed",
		zap.String("tenantId", tenantID),
		zap.String("orderId", orderID),
		zap.String("paymentId", paymentID),
		zap.Float64("total", order.Total),
	)
	s.publishStatusChanged(ctx, order, from, now)
	return order, nil
}

func (s *OrderService) publishStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus, now time.Time) {
	s.publish(ctx, events.NewMessage(events.PatternOrderStatusChanged, events.OrderStatusChangedEvent{
		OrderID:       order.ID,
		TenantID:      order.TenantID,
		TableID:       order.TableID,
		From:          from,
		To:            order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total,
		ChangedAt:     now,
	}))
}

// publish never fails the caller: the state change is already committed.
func (s *OrderService) publish(ctx context.Context, msg events.Message) {
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("pattern", msg.Pattern),
			zap.String("messageId", msg.ID),
			zap.Error(err),
		)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
