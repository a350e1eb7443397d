package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"comanda/internal/domain"
	apperrors "comanda/internal/errors"
	"comanda/internal/events"
	"comanda/internal/infrastructure/metrics"
)

type NotificationRepository interface {
	Insert(ctx context.Context, n *domain.OrderNotification) error
	FindByID(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error)
	FindByMessageID(ctx context.Context, tenantID, messageID string) (*domain.OrderNotification, error)
	List(ctx context.Context, tenantID string, f domain.NotificationFilter) ([]domain.OrderNotification, error)
	Update(ctx context.Context, n *domain.OrderNotification) error
	MarkAllRead(ctx context.Context, tenantID string, now time.Time) (int, error)
	CountUnread(ctx context.Context, tenantID string) (int, error)
}

const maxMessageLength = 500

// NotificationService is the waiter's alert inbox. It never acts on orders;
// waiters accept or reject items against the order service directly.
type NotificationService struct {
	repo    NotificationRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewNotificationService(repo NotificationRepository, m *metrics.Metrics, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:    repo,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// WithClock replaces the time source. Used by tests.
func (s *NotificationService) WithClock(now func() time.Time) *NotificationService {
	s.now = now
	return s
}

// HandleNewItems stores one UNREAD alert per delivery. Redelivery of the same
// message returns the alert created the first time.
func (s *NotificationService) HandleNewItems(ctx context.Context, messageID string, ev events.NewItemsEvent) (*domain.OrderNotification, error) {
	if messageID == "" {
		return nil, apperrors.NewValidationError("new items delivery has no message id")
	}
	if ev.TenantID == "" || ev.OrderID == "" {
		return nil, apperrors.NewValidationError("new items event requires tenantId and orderId")
	}

	existing, err := s.repo.FindByMessageID(ctx, ev.TenantID, messageID)
	if err == nil {
		s.metrics.NotificationsCreated.WithLabelValues("duplicate").Inc()
		return existing, nil
	}
	if _, ok := apperrors.IsNotFoundError(err); !ok {
		return nil, err
	}

	now := s.now()
	n := &domain.OrderNotification{
		ID:       uuid.NewString(),
		TenantID: ev.TenantID,
		OrderID:  ev.OrderID,
		TableID:  ev.TableID,
		Status:   domain.NotificationUnread,
		Message:  buildMessage(ev),
		Metadata: domain.NotificationMetadata{
			MessageID: messageID,
			Items:     make([]domain.NotificationItemInfo, 0, len(ev.Items)),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, item := range ev.Items {
		n.ItemIDs = append(n.ItemIDs, item.ID)
		n.Metadata.Items = append(n.Metadata.Items, itemInfo(item))
	}

	if err := s.repo.Insert(ctx, n); err != nil {
		// Lost a race against a concurrent delivery of the same message.
		if _, ok := apperrors.IsConflictError(err); ok {
			if found, ferr := s.repo.FindByMessageID(ctx, ev.TenantID, messageID); ferr == nil {
				s.metrics.NotificationsCreated.WithLabelValues("duplicate").Inc()
				return found, nil
			}
		}
		return nil, err
	}

	s.metrics.NotificationsCreated.WithLabelValues("created").Inc()
	s.logger.Info("Waiter notification created",
		zap.String("notificationId", n.ID),
		zap.String("orderId", n.OrderID),
		zap.String("tableId", n.TableID),
		zap.Int("items", len(n.ItemIDs)),
	)
	return n, nil
}

func buildMessage(ev events.NewItemsEvent) string {
	parts := make([]string, 0, len(ev.Items))
	for _, item := range ev.Items {
		parts = append(parts, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
	}

	verb := "New order"
	if ev.Appended {
		verb = "Items added"
	}
	msg := fmt.Sprintf("%s at table %s: %s", verb, ev.TableID, strings.Join(parts, ", "))
	if runes := []rune(msg); len(runes) > maxMessageLength {
		msg = string(runes[:maxMessageLength-3]) + "..."
	}
	return msg
}

func itemInfo(item events.ItemSnapshot) domain.NotificationItemInfo {
	var mods []string
	for _, m := range item.Modifiers {
		mods = append(mods, m.Name)
	}
	return domain.NotificationItemInfo{
		ID:         item.ID,
		MenuItemID: item.MenuItemID,
		Name:       item.Name,
		Quantity:   item.Quantity,
		Modifiers:  mods,
		Notes:      item.Notes,
		Total:      item.Total,
	}
}

func (s *NotificationService) Get(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error) {
	return s.repo.FindByID(ctx, tenantID, id)
}

func (s *NotificationService) List(ctx context.Context, tenantID string, f domain.NotificationFilter) ([]domain.OrderNotification, error) {
	return s.repo.List(ctx, tenantID, f)
}

func (s *NotificationService) UnreadCount(ctx context.Context, tenantID string) (int, error) {
	return s.repo.CountUnread(ctx, tenantID)
}

// MarkRead only moves UNREAD to READ.
func (s *NotificationService) MarkRead(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error) {
	n, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if n.Status != domain.NotificationUnread {
		return nil, apperrors.NewInvalidStatusTransitionError("notification", n.ID, string(n.Status), string(domain.NotificationRead))
	}

	now := s.now()
	n.Status = domain.NotificationRead
	n.ReadAt = &now
	n.UpdatedAt = now
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Archive is allowed from any status; archiving twice returns the
// notification unchanged.
func (s *NotificationService) Archive(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error) {
	n, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if n.Status == domain.NotificationArchived {
		return n, nil
	}

	now := s.now()
	n.Status = domain.NotificationArchived
	n.ArchivedAt = &now
	n.UpdatedAt = now
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, tenantID string) (int, error) {
	return s.repo.MarkAllRead(ctx, tenantID, s.now())
}
