package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"comanda/internal/config"
	"comanda/internal/domain"
	apperrors "comanda/internal/errors"
	"comanda/internal/events"
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type TicketRepository interface {
	Insert(ctx context.Context, t *domain.KitchenTicket) error
	FindByID(ctx context.Context, tenantID, id string) (*domain.KitchenTicket, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id string) (*domain.KitchenTicket, error)
	FindBySourceMessageID(ctx context.Context, tenantID, messageID string) (*domain.KitchenTicket, error)
	FindOpenByOrder(ctx context.Context, tenantID, orderID string) ([]domain.KitchenTicket, error)
	ListActive(ctx context.Context, tenantID string) ([]domain.KitchenTicket, error)
	TicketedOrderItems(ctx context.Context, orderItemIDs []string) (map[string]bool, error)
	Update(ctx context.Context, t *domain.KitchenTicket) error
	UpdateItem(ctx context.Context, item domain.KitchenTicketItem) error
}

type TicketNumberer interface {
	Next(ctx context.Context, tenantID string, now time.Time) (string, error)
}

// OrderStatusUpdater is the synchronous call-back into the order service.
// ItemStatuses reads back what the order holds when a call-back is refused.
type OrderStatusUpdater interface {
	UpdateItemsStatus(ctx context.Context, tenantID, orderID string, change domain.ItemStatusChange) error
	ItemStatuses(ctx context.Context, tenantID, orderID string) (map[string]domain.ItemStatus, error)
}

type TableDirectory interface {
	GetTable(ctx context.Context, tenantID, tableID string) (*domain.TableInfo, error)
}

// TicketService projects accepted order items into cook-facing tickets.
// Local state never moves ahead of the order service: every authoritative
// change is reported first and only then persisted here.
type TicketService struct {
	tx       Transactor
	repo     TicketRepository
	numberer TicketNumberer
	orders   OrderStatusUpdater
	tables   TableDirectory
	cfg      config.KitchenConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewTicketService(
	tx Transactor,
	repo TicketRepository,
	numberer TicketNumberer,
	orders OrderStatusUpdater,
	tables TableDirectory,
	cfg config.KitchenConfig,
	logger *zap.Logger,
) *TicketService {
	return &TicketService{
		tx:       tx,
		repo:     repo,
		numberer: numberer,
		orders:   orders,
		tables:   tables,
		cfg:      cfg,
		logger:   logger,
		now:      clock,
	}
}

// Timestamps are stored with millisecond precision; lastTickAt must compare
// equal after a round trip.
func clock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// WithClock replaces the time source. Used by tests.
func (s *TicketService) WithClock(now func() time.Time) *TicketService {
	s.now = now
	return s
}

func (s *TicketService) Get(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return s.repo.FindByID(ctx, tenantID, ticketID)
}

func (s *TicketService) ListActive(ctx context.Context, tenantID string) ([]domain.KitchenTicket, error) {
	return s.repo.ListActive(ctx, tenantID)
}

// CreateFromAccepted builds one ticket per items-accepted delivery. A
// redelivered message returns the ticket it created the first time; order
// items that already sit on a ticket are skipped. It returns nil, nil when
// nothing is left to cook.
func (s *TicketService) CreateFromAccepted(ctx context.Context, messageID string, ev events.ItemsAcceptedEvent) (*domain.KitchenTicket, error) {
	if messageID == "" {
		return nil, apperrors.NewValidationError("items accepted delivery has no message id")
	}
	if ev.TenantID == "" || ev.OrderID == "" {
		return nil, apperrors.NewValidationError("items accepted event requires tenantId and orderId")
	}

	existing, err := s.repo.FindBySourceMessageID(ctx, ev.TenantID, messageID)
	if err == nil {
		s.logger.Info("Ticket already created for message",
			zap.String("messageId", messageID),
			zap.String("ticketId", existing.ID),
		)
		return existing, nil
	}
	if _, ok := apperrors.IsNotFoundError(err); !ok {
		return nil, err
	}

	ids := make([]string, len(ev.Items))
	for i, item := range ev.Items {
		ids[i] = item.ID
	}
	ticketed, err := s.repo.TicketedOrderItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	var fresh []events.ItemSnapshot
	for _, item := range ev.Items {
		if !ticketed[item.ID] {
			fresh = append(fresh, item)
		}
	}
	if len(fresh) > 0 {
		fresh = s.dropWithdrawn(ctx, ev, fresh)
	}
	if len(fresh) == 0 {
		s.logger.Info("No new items to ticket",
			zap.String("messageId", messageID),
			zap.String("orderId", ev.OrderID),
		)
		return nil, nil
	}

	now := s.now()
	number, err := s.numberer.Next(ctx, ev.TenantID, now)
	if err != nil {
		return nil, fmt.Errorf("numbering ticket: %w", err)
	}

	ticket := &domain.KitchenTicket{
		ID:                uuid.NewString(),
		TenantID:          ev.TenantID,
		OrderID:           ev.OrderID,
		TableID:           ev.TableID,
		TicketNumber:      number,
		SourceMessageID:   messageID,
		Status:            domain.TicketStatusPending,
		Priority:          domain.PriorityNormal,
		LastTickAt:        now,
		WarningThreshold:  s.cfg.WarningThreshold,
		CriticalThreshold: s.cfg.CriticalThreshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.snapshotTable(ctx, ticket)

	for _, item := range fresh {
		ticket.Items = append(ticket.Items, newTicketItem(ticket.ID, item, now))
	}

	if err := s.repo.Insert(ctx, ticket); err != nil {
		if _, ok := apperrors.IsConflictError(err); ok {
			if found, ferr := s.repo.FindBySourceMessageID(ctx, ev.TenantID, messageID); ferr == nil {
				return found, nil
			}
		}
		return nil, err
	}

	s.logger.Info("Ticket created",
		zap.String("ticketId", ticket.ID),
		zap.String("ticketNumber", ticket.TicketNumber),
		zap.String("orderId", ticket.OrderID),
		zap.Int("items", len(ticket.Items)),
	)
	return ticket, nil
}

// dropWithdrawn leaves out items the order already rejected or cancelled.
// That happens when the items_accepted delivery was retried and the
// rejection overtook it. The lookup is best effort; report reconciles later
// if the order service is unreachable now.
func (s *TicketService) dropWithdrawn(ctx context.Context, ev events.ItemsAcceptedEvent, items []events.ItemSnapshot) []events.ItemSnapshot {
	statuses, err := s.orders.ItemStatuses(ctx, ev.TenantID, ev.OrderID)
	if err != nil {
		s.logger.Warn("Order item statuses unavailable, ticketing every item",
			zap.String("orderId", ev.OrderID),
			zap.Error(err),
		)
		return items
	}

	kept := items[:0]
	for _, item := range items {
		if st, ok := statuses[item.ID]; ok && withdrawn(st) {
			s.logger.Info("Skipping withdrawn order item",
				zap.String("orderId", ev.OrderID),
				zap.String("orderItemId", item.ID),
				zap.String("status", string(st)),
			)
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func withdrawn(st domain.ItemStatus) bool {
	return st == domain.ItemStatusRejected || st == domain.ItemStatusCancelled
}

// snapshotTable is best effort: the ticket is created without display names
// when the table service fails.
func (s *TicketService) snapshotTable(ctx context.Context, t *domain.KitchenTicket) {
	if s.tables == nil || t.TableID == "" {
		return
	}
	info, err := s.tables.GetTable(ctx, t.TenantID, t.TableID)
	if err != nil {
		s.logger.Warn("Table snapshot unavailable",
			zap.String("tableId", t.TableID),
			zap.Error(err),
		)
		return
	}
	if info.Name != "" {
		t.TableName = &info.Name
	}
	if info.FloorName != "" {
		t.FloorName = &info.FloorName
	}
}

func newTicketItem(ticketID string, item events.ItemSnapshot, now time.Time) domain.KitchenTicketItem {
	mods := make([]string, 0, len(item.Modifiers))
	for _, m := range item.Modifiers {
		mods = append(mods, m.Name)
	}
	course := item.CourseNumber
	if course < 1 {
		course = 1
	}
	return domain.KitchenTicketItem{
		ID:             uuid.NewString(),
		TicketID:       ticketID,
		OrderItemID:    item.ID,
		MenuItemID:     item.MenuItemID,
		Name:           item.Name,
		Quantity:       item.Quantity,
		Modifiers:      mods,
		Notes:          item.Notes,
		Station:        item.Station,
		CourseNumber:   course,
		Status:         domain.TicketItemStatusPending,
		ReportedStatus: domain.ItemStatusAccepted,
		IsAllergy:      strings.Contains(strings.ToLower(item.Notes), "allerg"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// report is one call-back batch: the items that reached status.
type report struct {
	status domain.ItemStatus
	items  []*domain.KitchenTicketItem
}

// mutate runs fn on the locked ticket, sends the resulting reports to the
// order service and persists the ticket. Nothing is written when fn or a
// call-back fails.
func (s *TicketService) mutate(ctx context.Context, tenantID, ticketID string, fn func(t *domain.KitchenTicket, now time.Time) ([]report, error)) (*domain.KitchenTicket, error) {
	var out *domain.KitchenTicket
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.repo.FindByIDForUpdate(ctx, tenantID, ticketID)
		if err != nil {
			return err
		}

		now := s.now()
		reports, err := fn(t, now)
		if err != nil {
			return err
		}
		dropped, err := s.report(ctx, t, reports, now)
		if err != nil {
			return err
		}
		if dropped {
			if err := settle(t, now); err != nil {
				return err
			}
		}
		if err := s.save(ctx, t, now); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// report sends each batch to the order service. A refused batch is
// reconciled against the order's actual item statuses: items the order
// already moved past the target count as reported, withdrawn items are
// cancelled here, and only the rest is sent again. dropped tells whether
// any item was cancelled that way.
func (s *TicketService) report(ctx context.Context, t *domain.KitchenTicket, reports []report, now time.Time) (dropped bool, err error) {
	var actor string
	if t.ChefID != nil {
		actor = *t.ChefID
	}

	for _, r := range reports {
		var pending []*domain.KitchenTicketItem
		for _, item := range r.items {
			if item.Status != domain.TicketItemStatusCancelled && item.NeedsReport(r.status) {
				pending = append(pending, item)
			}
		}
		if len(pending) == 0 {
			continue
		}

		err := s.send(ctx, t, actor, r.status, pending)
		if _, refused := apperrors.IsInvalidStatusTransitionError(err); refused {
			var cancelled bool
			pending, cancelled, err = s.reconcile(ctx, t, r.status, pending, now)
			dropped = dropped || cancelled
			if err == nil && len(pending) > 0 {
				err = s.send(ctx, t, actor, r.status, pending)
			}
		}
		if err != nil {
			s.logger.Error("Order service rejected item update",
				zap.String("ticketId", t.ID),
				zap.String("orderId", t.OrderID),
				zap.String("status", string(r.status)),
				zap.Error(err),
			)
			return dropped, err
		}
		for _, item := range pending {
			item.ReportedStatus = r.status
		}
	}
	return dropped, nil
}

func (s *TicketService) send(ctx context.Context, t *domain.KitchenTicket, actor string, status domain.ItemStatus, items []*domain.KitchenTicketItem) error {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.OrderItemID
	}
	return s.orders.UpdateItemsStatus(ctx, t.TenantID, t.OrderID, domain.ItemStatusChange{
		ItemIDs: ids,
		Status:  status,
		ActorID: actor,
	})
}

// reconcile returns the items the order has not yet seen reach target.
func (s *TicketService) reconcile(ctx context.Context, t *domain.KitchenTicket, target domain.ItemStatus, items []*domain.KitchenTicketItem, now time.Time) ([]*domain.KitchenTicketItem, bool, error) {
	statuses, err := s.orders.ItemStatuses(ctx, t.TenantID, t.OrderID)
	if err != nil {
		return nil, false, err
	}

	var behind []*domain.KitchenTicketItem
	cancelled := false
	for _, item := range items {
		st, ok := statuses[item.OrderItemID]
		switch {
		case ok && withdrawn(st):
			item.Status = domain.TicketItemStatusCancelled
			item.ReportedStatus = st
			item.UpdatedAt = now
			cancelled = true
		case ok && st.Reached(target):
			item.ReportedStatus = st
		default:
			behind = append(behind, item)
			continue
		}
		s.logger.Warn("Ticket item caught up with order",
			zap.String("ticketId", t.ID),
			zap.String("orderItemId", item.OrderItemID),
			zap.String("orderStatus", string(st)),
		)
	}
	return behind, cancelled, nil
}

// settle applies the ticket rules after items were cancelled underneath it.
func settle(t *domain.KitchenTicket, now time.Time) error {
	switch {
	case len(t.ActiveItems()) == 0:
		return cancelTicket(t, now)
	case t.Status == domain.TicketStatusInProgress && t.AllActiveReady():
		return moveTicket(t, domain.TicketStatusReady, now)
	}
	return nil
}

func (s *TicketService) save(ctx context.Context, t *domain.KitchenTicket, now time.Time) error {
	t.UpdatedAt = now
	if err := s.repo.Update(ctx, t); err != nil {
		return err
	}
	for _, item := range t.Items {
		if err := s.repo.UpdateItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// Start moves the ticket to IN_PROGRESS and every pending item to PREPARING.
func (s *TicketService) Start(ctx context.Context, tenantID, ticketID, chefID string) (*domain.KitchenTicket, error) {
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		if err := moveTicket(t, domain.TicketStatusInProgress, now); err != nil {
			return nil, err
		}
		if chefID != "" {
			t.ChefID = &chefID
		}

		var started []*domain.KitchenTicketItem
		for i := range t.Items {
			item := &t.Items[i]
			if item.Status == domain.TicketItemStatusPending {
				startItem(item, now)
				started = append(started, item)
			}
		}
		return []report{{status: domain.ItemStatusPreparing, items: started}}, nil
	})
}

// StartItems fires individual items. A pending ticket starts with them.
func (s *TicketService) StartItems(ctx context.Context, tenantID, ticketID string, itemIDs []string) (*domain.KitchenTicket, error) {
	if len(itemIDs) == 0 {
		return nil, apperrors.NewValidationError("itemIds must not be empty")
	}
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		if t.Status != domain.TicketStatusPending && t.Status != domain.TicketStatusInProgress {
			return nil, apperrors.NewInvalidStatusTransitionError("ticket", t.ID, string(t.Status), string(domain.TicketStatusInProgress))
		}
		items, err := pickItems(t, itemIDs, domain.TicketItemStatusPreparing)
		if err != nil {
			return nil, err
		}

		if t.Status == domain.TicketStatusPending {
			if err := moveTicket(t, domain.TicketStatusInProgress, now); err != nil {
				return nil, err
			}
		}
		for _, item := range items {
			startItem(item, now)
		}
		return []report{{status: domain.ItemStatusPreparing, items: items}}, nil
	})
}

// MarkItemsReady finishes individual items and promotes the ticket to READY
// once every non-cancelled item is ready.
func (s *TicketService) MarkItemsReady(ctx context.Context, tenantID, ticketID string, itemIDs []string) (*domain.KitchenTicket, error) {
	if len(itemIDs) == 0 {
		return nil, apperrors.NewValidationError("itemIds must not be empty")
	}
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		if t.Status != domain.TicketStatusInProgress {
			return nil, apperrors.NewInvalidStatusTransitionError("ticket", t.ID, string(t.Status), string(domain.TicketStatusReady))
		}
		items, err := pickItems(t, itemIDs, domain.TicketItemStatusReady)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			readyItem(item, now)
		}
		if t.AllActiveReady() {
			if err := moveTicket(t, domain.TicketStatusReady, now); err != nil {
				return nil, err
			}
		}
		return []report{{status: domain.ItemStatusReady, items: items}}, nil
	})
}

// MarkReady finishes the whole ticket. Items still pending or recalled go
// through PREPARING first so the order sees every step.
func (s *TicketService) MarkReady(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		if t.Status == domain.TicketStatusPending {
			if err := moveTicket(t, domain.TicketStatusInProgress, now); err != nil {
				return nil, err
			}
		}
		if !domain.IsValidTicketTransition(t.Status, domain.TicketStatusReady) {
			return nil, apperrors.NewInvalidStatusTransitionError("ticket", t.ID, string(t.Status), string(domain.TicketStatusReady))
		}

		var started, finished []*domain.KitchenTicketItem
		for i := range t.Items {
			item := &t.Items[i]
			if item.Status == domain.TicketItemStatusRecalled {
				item.Status = domain.TicketItemStatusPending
			}
			if item.Status == domain.TicketItemStatusPending {
				startItem(item, now)
				started = append(started, item)
			}
			if item.Status == domain.TicketItemStatusPreparing {
				readyItem(item, now)
				finished = append(finished, item)
			}
		}
		if !t.AllActiveReady() {
			return nil, apperrors.NewConflictError(fmt.Sprintf("ticket %s has no items to finish", t.ID))
		}
		if err := moveTicket(t, domain.TicketStatusReady, now); err != nil {
			return nil, err
		}
		return []report{
			{status: domain.ItemStatusPreparing, items: started},
			{status: domain.ItemStatusReady, items: finished},
		}, nil
	})
}

// Bump clears a ready ticket from the board. The order is not told; serving
// is the waiter's call.
func (s *TicketService) Bump(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		return nil, moveTicket(t, domain.TicketStatusCompleted, now)
	})
}

// Cancel removes a ticket from the board without touching the order.
func (s *TicketService) Cancel(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		return nil, cancelTicket(t, now)
	})
}

// CancelOrderTickets cancels every open ticket of a cancelled order. It
// returns how many tickets changed.
func (s *TicketService) CancelOrderTickets(ctx context.Context, tenantID, orderID string) (int, error) {
	cancelled := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		tickets, err := s.repo.FindOpenByOrder(ctx, tenantID, orderID)
		if err != nil {
			return err
		}

		now := s.now()
		for i := range tickets {
			t := &tickets[i]
			if err := cancelTicket(t, now); err != nil {
				return err
			}
			if err := s.save(ctx, t, now); err != nil {
				return err
			}
			cancelled++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if cancelled > 0 {
		s.logger.Info("Tickets cancelled with order",
			zap.String("orderId", orderID),
			zap.Int("tickets", cancelled),
		)
	}
	return cancelled, nil
}

// CancelItems drops rejected or cancelled order items from open tickets. A
// ticket left without active items is cancelled; one whose remaining items are
// all ready becomes READY.
func (s *TicketService) CancelItems(ctx context.Context, tenantID, orderID string, orderItemIDs []string) (int, error) {
	wanted := make(map[string]bool, len(orderItemIDs))
	for _, id := range orderItemIDs {
		wanted[id] = true
	}

	changed := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		tickets, err := s.repo.FindOpenByOrder(ctx, tenantID, orderID)
		if err != nil {
			return err
		}

		now := s.now()
		for i := range tickets {
			t := &tickets[i]
			touched := false
			for j := range t.Items {
				item := &t.Items[j]
				if !wanted[item.OrderItemID] || item.Status == domain.TicketItemStatusCancelled {
					continue
				}
				item.Status = domain.TicketItemStatusCancelled
				item.UpdatedAt = now
				touched = true
			}
			if !touched {
				continue
			}

			if err := settle(t, now); err != nil {
				return err
			}
			if err := s.save(ctx, t, now); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// Pause stops the ticket timer. Pausing twice is a no-op.
func (s *TicketService) Pause(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		if t.Status.IsTerminal() {
			return nil, apperrors.NewConflictError(fmt.Sprintf("ticket %s is %s", t.ID, t.Status))
		}
		t.Pause(now)
		return nil, nil
	})
}

func (s *TicketService) Resume(ctx context.Context, tenantID, ticketID string) (*domain.KitchenTicket, error) {
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		if t.Status.IsTerminal() {
			return nil, apperrors.NewConflictError(fmt.Sprintf("ticket %s is %s", t.ID, t.Status))
		}
		t.Resume(now)
		return nil, nil
	})
}

// RecallItem sends a cooked or cooking item back for a re-cook. The order is
// not moved backwards; the item is reported again only past its last reported
// status.
func (s *TicketService) RecallItem(ctx context.Context, tenantID, ticketID, itemID, reason string) (*domain.KitchenTicket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("recall requires a reason", apperrors.ValidationDetail{
			Field:   "reason",
			Message: "reason must not be empty",
		})
	}
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		if t.Status != domain.TicketStatusInProgress && t.Status != domain.TicketStatusReady {
			return nil, apperrors.NewInvalidStatusTransitionError("ticket", t.ID, string(t.Status), string(domain.TicketStatusInProgress))
		}
		items, err := pickItems(t, []string{itemID}, domain.TicketItemStatusRecalled)
		if err != nil {
			return nil, err
		}

		item := items[0]
		item.Status = domain.TicketItemStatusRecalled
		item.RecallCount++
		item.RecallReason = &reason
		item.ElapsedSeconds = 0
		item.ReadyAt = nil
		item.UpdatedAt = now

		// Reopening a ready ticket is the one backwards edge of the board.
		if t.Status == domain.TicketStatusReady {
			t.Status = domain.TicketStatusInProgress
			t.ReadyAt = nil
			t.LastTickAt = now
		}
		return nil, nil
	})
}

// RequeueItem puts a recalled item back in the pending queue.
func (s *TicketService) RequeueItem(ctx context.Context, tenantID, ticketID, itemID string) (*domain.KitchenTicket, error) {
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		if t.Status.IsTerminal() {
			return nil, apperrors.NewConflictError(fmt.Sprintf("ticket %s is %s", t.ID, t.Status))
		}
		items, err := pickItems(t, []string{itemID}, domain.TicketItemStatusPending)
		if err != nil {
			return nil, err
		}
		items[0].Status = domain.TicketItemStatusPending
		items[0].StartedAt = nil
		items[0].UpdatedAt = now
		return nil, nil
	})
}

func (s *TicketService) SetPriority(ctx context.Context, tenantID, ticketID, priority string) (*domain.KitchenTicket, error) {
	p, ok := domain.ParseTicketPriority(priority)
	if !ok {
		return nil, apperrors.NewValidationError("invalid priority", apperrors.ValidationDetail{
			Field:   "priority",
			Message: "priority must be one of NORMAL, HIGH, URGENT, FIRE",
		})
	}
	return s.mutate(ctx, tenantID, ticketID, func(t *domain.KitchenTicket, now time.Time) ([]report, error) {
		if t.Status.IsTerminal() {
			return nil, apperrors.NewConflictError(fmt.Sprintf("ticket %s is %s", t.ID, t.Status))
		}
		t.Priority = p
		for i := range t.Items {
			t.Items[i].IsRush = p.Rush()
			t.Items[i].UpdatedAt = now
		}
		return nil, nil
	})
}

func moveTicket(t *domain.KitchenTicket, to domain.TicketStatus, now time.Time) error {
	if !domain.IsValidTicketTransition(t.Status, to) {
		return apperrors.NewInvalidStatusTransitionError("ticket", t.ID, string(t.Status), string(to))
	}
	t.Status = to
	switch to {
	case domain.TicketStatusInProgress:
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
	case domain.TicketStatusReady:
		t.ReadyAt = &now
	case domain.TicketStatusCompleted:
		t.CompletedAt = &now
	}
	return nil
}

func cancelTicket(t *domain.KitchenTicket, now time.Time) error {
	if err := moveTicket(t, domain.TicketStatusCancelled, now); err != nil {
		return err
	}
	for i := range t.Items {
		if t.Items[i].Status != domain.TicketItemStatusCancelled {
			t.Items[i].Status = domain.TicketItemStatusCancelled
			t.Items[i].UpdatedAt = now
		}
	}
	return nil
}

func startItem(item *domain.KitchenTicketItem, now time.Time) {
	item.Status = domain.TicketItemStatusPreparing
	item.StartedAt = &now
	item.UpdatedAt = now
}

func readyItem(item *domain.KitchenTicketItem, now time.Time) {
	item.Status = domain.TicketItemStatusReady
	item.ReadyAt = &now
	item.UpdatedAt = now
}

// pickItems resolves ids on the ticket and checks that each may move to. The
// whole batch fails on the first bad item.
func pickItems(t *domain.KitchenTicket, ids []string, to domain.TicketItemStatus) ([]*domain.KitchenTicketItem, error) {
	seen := make(map[string]bool, len(ids))
	var out []*domain.KitchenTicketItem
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		item, ok := t.ItemByID(id)
		if !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("ticket item %s not found on ticket %s", id, t.ID))
		}
		if !domain.IsValidTicketItemTransition(item.Status, to) {
			return nil, apperrors.NewInvalidStatusTransitionError("ticket item", id, string(item.Status), string(to))
		}
		out = append(out, item)
	}
	return out, nil
}
