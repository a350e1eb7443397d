package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"comanda/internal/domain"
	dtoerrors "comanda/internal/errors"
	"comanda/internal/events"
	"comanda/internal/infrastructure/metrics"
	"comanda/internal/infrastructure/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TableLocker interface {
	Lock(ctx context.Context, tenantID, tableID string) (func(), error)
}

type CartStore interface {
	Get(ctx context.Context, tenantID, tableID string) (*domain.Cart, error)
	Clear(ctx context.Context, tenantID, tableID string) error
}

// PricingOracle is the catalog. Its prices are the only ones ever billed.
type PricingOracle interface {
	GetMenuItem(ctx context.Context, tenantID, id string) (*domain.MenuItem, error)
	GetModifierGroup(ctx context.Context, tenantID, id string) (*domain.ModifierGroup, error)
	GetModifierOption(ctx context.Context, tenantID, id string) (*domain.ModifierOption, error)
}

type TenantConfigRepository interface {
	FindByTenantID(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
}

type OrderRepository interface {
	FindOpenByTable(ctx context.Context, tenantID, tableID string) (*domain.Order, error)
	Insert(ctx context.Context, o *domain.Order) error
	Update(ctx context.Context, o *domain.Order) error
}

type OrderItemRepository interface {
	Insert(ctx context.Context, item domain.OrderItem) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CheckoutInput struct {
	TenantID     string
	TableID      string
	CustomerID   *string
	CustomerName *string
	WaiterID     *string
	Notes        string
}

type CheckoutResult struct {
	Order    *domain.Order
	NewItems []domain.OrderItem
	Appended bool
}

// CheckoutUseCase turns a table cart into order items. A table has at most one
// open order; later checkouts append to it.
type CheckoutUseCase struct {
	locker           TableLocker
	carts            CartStore
	pricing          PricingOracle
	tenantConfigRepo TenantConfigRepository
	orderRepo        OrderRepository
	itemRepo         OrderItemRepository
	tx               Transactor
	publisher        events.Publisher
	metrics          *metrics.Metrics
	logger           *zap.Logger
	defaultTaxRate   float64
	maxRetryAttempts int
	now              func() time.Time
}

func NewCheckoutUseCase(
	locker TableLocker,
	carts CartStore,
	pricing PricingOracle,
	tenantConfigRepo TenantConfigRepository,
	orderRepo OrderRepository,
	itemRepo OrderItemRepository,
	tx Transactor,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
	defaultTaxRate float64,
) *CheckoutUseCase {
	return &CheckoutUseCase{
		locker:           locker,
		carts:            carts,
		pricing:          pricing,
		tenantConfigRepo: tenantConfigRepo,
		orderRepo:        orderRepo,
		itemRepo:         itemRepo,
		tx:               tx,
		publisher:        publisher,
		metrics:          m,
		logger:           logger,
		defaultTaxRate:   defaultTaxRate,
		maxRetryAttempts: 3,
		now:              time.Now,
	}
}

func (uc *CheckoutUseCase) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	result, err := uc.checkout(ctx, in)
	if err != nil {
		uc.metrics.Checkouts.WithLabelValues("failed").Inc()
		return nil, err
	}
	if result.Appended {
		uc.metrics.Checkouts.WithLabelValues("appended").Inc()
	} else {
		uc.metrics.Checkouts.WithLabelValues("created").Inc()
	}
	return result, nil
}

func (uc *CheckoutUseCase) checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	// Bloque 1: lock de mesa, cubre lectura del carrito hasta el clear
	release, err := uc.locker.Lock(ctx, in.TenantID, in.TableID)
	if err != nil {
		return nil, err
	}
	defer release()

	uc.logger.Info("checkout started", zap.String("tenantId", in.TenantID), zap.String("tableId", in.TableID))

	cart, err := uc.carts.Get(ctx, in.TenantID, in.TableID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, dtoerrors.NewCartEmptyError(in.TenantID, in.TableID)
	}

	// Bloque 2: precios del catálogo, fuera de transacción
	items, err := uc.priceCart(ctx, in.TenantID, cart)
	if err != nil {
		uc.logger.Warn("checkout rejected by pricing", zap.String("tableId", in.TableID), zap.Error(err))
		return nil, err
	}

	taxRate, err := uc.taxRate(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}

	notes := cart.Notes
	if in.Notes != "" {
		if notes != "" {
			notes += domain.NotesSeparator
		}
		notes += in.Notes
	}

	// Bloque 3: persistir con retry
	result, err := uc.persistWithRetry(ctx, in, items, taxRate, notes)
	if err != nil {
		return nil, err
	}

	// Bloque 4: post-commit. Nada de esto revierte el pedido.
	if err := uc.carts.Clear(ctx, in.TenantID, in.TableID); err != nil {
		uc.logger.Error("failed to clear cart after checkout", zap.String("tableId", in.TableID), zap.Error(err))
	}

	order := result.Order
	msg := events.NewMessage(events.PatternNewItems, events.NewItemsEvent{
		OrderID:   order.ID,
		TenantID:  order.TenantID,
		TableID:   order.TableID,
		WaiterID:  order.WaiterID,
		Appended:  result.Appended,
		Items:     events.SnapshotItems(result.NewItems),
		CreatedAt: uc.now(),
	})
	if err := uc.publisher.Publish(ctx, msg); err != nil {
		uc.logger.Error("failed to publish new items event",
			zap.String("orderId", order.ID),
			zap.String("messageId", msg.ID),
			zap.Error(err),
		)
	}

	uc.logger.Info("checkout completed",
		zap.String("orderId", order.ID),
		zap.Bool("appended", result.Appended),
		zap.Int("newItems", len(result.NewItems)),
		zap.Float64("total", order.Total),
	)
	return result, nil
}

// priceCart resolves every cart line against the catalog. One unavailable
// item or modifier fails the whole checkout.
func (uc *CheckoutUseCase) priceCart(ctx context.Context, tenantID string, cart *domain.Cart) ([]domain.OrderItem, error) {
	groups := make(map[string]*domain.ModifierGroup)
	items := make([]domain.OrderItem, 0, len(cart.Items))

	for _, line := range cart.Items {
		menuItem, err := uc.pricing.GetMenuItem(ctx, tenantID, line.MenuItemID)
		if err != nil {
			if _, ok := dtoerrors.IsNotFoundError(err); ok {
				return nil, dtoerrors.NewItemUnavailableError(line.MenuItemID, line.Name, "not in the menu")
			}
			return nil, err
		}
		if !menuItem.Available() {
			return nil, dtoerrors.NewItemUnavailableError(menuItem.ID, menuItem.Name, menuItem.Availability)
		}

		modifiers := make([]domain.ItemModifier, 0, len(line.Modifiers))
		for _, m := range line.Modifiers {
			option, err := uc.pricing.GetModifierOption(ctx, tenantID, m.OptionID)
			if err != nil {
				if _, ok := dtoerrors.IsNotFoundError(err); ok {
					return nil, dtoerrors.NewItemUnavailableError(menuItem.ID, menuItem.Name, fmt.Sprintf("modifier %s does not exist", m.OptionID))
				}
				return nil, err
			}
			if m.GroupID != "" && option.GroupID != m.GroupID {
				return nil, dtoerrors.NewValidationError(fmt.Sprintf("modifier %s does not belong to group %s", m.OptionID, m.GroupID))
			}

			group, ok := groups[option.GroupID]
			if !ok {
				group, err = uc.pricing.GetModifierGroup(ctx, tenantID, option.GroupID)
				if err != nil {
					if _, ok := dtoerrors.IsNotFoundError(err); ok {
						return nil, dtoerrors.NewItemUnavailableError(menuItem.ID, menuItem.Name, fmt.Sprintf("modifier group %s does not exist", option.GroupID))
					}
					return nil, err
				}
				groups[option.GroupID] = group
			}
			if group.MenuItemID != "" && group.MenuItemID != menuItem.ID {
				return nil, dtoerrors.NewValidationError(fmt.Sprintf("modifier group %s does not apply to %s", group.ID, menuItem.Name))
			}
			if !group.IsActive || !option.IsAvailable {
				return nil, dtoerrors.NewItemUnavailableError(menuItem.ID, menuItem.Name, fmt.Sprintf("modifier %s is unavailable", option.Name))
			}

			modifiers = append(modifiers, domain.ItemModifier{
				GroupID:  group.ID,
				OptionID: option.ID,
				Name:     option.Name,
				Price:    option.Price,
			})
		}

		course := line.CourseNumber
		if course < 1 {
			course = 1
		}
		item := domain.OrderItem{
			ID:           uuid.NewString(),
			MenuItemID:   menuItem.ID,
			Name:         menuItem.Name,
			Description:  menuItem.Description,
			Station:      menuItem.Station,
			CourseNumber: course,
			Notes:        line.Notes,
			UnitPrice:    menuItem.Price,
			Quantity:     line.Quantity,
			Modifiers:    modifiers,
			Status:       domain.ItemStatusPending,
		}
		item.ComputeTotals()
		items = append(items, item)
	}
	return items, nil
}

func (uc *CheckoutUseCase) taxRate(ctx context.Context, tenantID string) (float64, error) {
	cfg, err := uc.tenantConfigRepo.FindByTenantID(ctx, tenantID)
	if err != nil {
		if _, ok := dtoerrors.IsNotFoundError(err); ok {
			return uc.defaultTaxRate, nil
		}
		return 0, err
	}
	return cfg.TaxRate, nil
}

func (uc *CheckoutUseCase) persistWithRetry(
	ctx context.Context,
	in CheckoutInput,
	priced []domain.OrderItem,
	taxRate float64,
	notes string,
) (*CheckoutResult, error) {
	// Backoff intervals: attempt 1 (0ms), attempt 2 (100ms), attempt 3 (200ms)
	backoffs := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}

	var lastErr error
	for attempt := 1; attempt <= uc.maxRetryAttempts; attempt++ {
		items := make([]domain.OrderItem, len(priced))
		copy(items, priced)

		result, err := uc.persist(ctx, in, items, taxRate, notes)
		if err == nil {
			return result, nil
		}

		// A concurrent session opened by another instance shows up as a
		// duplicate on the open-session index; the next attempt appends to it.
		_, conflict := dtoerrors.IsConflictError(err)
		if !mysql.IsDeadlock(err) && !conflict {
			return nil, err
		}
		lastErr = err
		if attempt < uc.maxRetryAttempts {
			wait := backoffs[attempt%len(backoffs)]
			jitter := time.Duration(float64(wait) * (rand.Float64()*0.4 - 0.2))
			uc.logger.Warn("checkout transaction retrying", zap.Int("attempt", attempt), zap.String("tableId", in.TableID), zap.Error(err))
			time.Sleep(wait + jitter)
		}
	}
	return nil, lastErr
}

func (uc *CheckoutUseCase) persist(
	ctx context.Context,
	in CheckoutInput,
	items []domain.OrderItem,
	taxRate float64,
	notes string,
) (*CheckoutResult, error) {
	now := uc.now()
	result := &CheckoutResult{}

	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := uc.orderRepo.FindOpenByTable(ctx, in.TenantID, in.TableID)
		switch {
		case err == nil:
			result.Appended = true
			order.AppendNotes(notes)
			if order.CustomerID == nil {
				order.CustomerID = in.CustomerID
			}
			if order.CustomerName == nil {
				order.CustomerName = in.CustomerName
			}
			if order.WaiterID == nil {
				order.WaiterID = in.WaiterID
			}
		case isNotFound(err):
			order = &domain.Order{
				ID:            uuid.NewString(),
				TenantID:      in.TenantID,
				TableID:       in.TableID,
				CustomerID:    in.CustomerID,
				CustomerName:  in.CustomerName,
				WaiterID:      in.WaiterID,
				Notes:         notes,
				Status:        domain.OrderStatusPending,
				PaymentStatus: domain.PaymentStatusPending,
				TaxRate:       taxRate,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := uc.orderRepo.Insert(ctx, order); err != nil {
				return err
			}
		default:
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
			items[i].CreatedAt = now
			items[i].UpdatedAt = now
			if err := uc.itemRepo.Insert(ctx, items[i]); err != nil {
				return err
			}
			order.Items = append(order.Items, items[i])
		}

		order.TaxRate = taxRate
		order.RecomputeTotals()
		order.UpdatedAt = now
		if err := uc.orderRepo.Update(ctx, order); err != nil {
			return err
		}

		result.Order = order
		result.NewItems = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func isNotFound(err error) bool {
	_, ok := dtoerrors.IsNotFoundError(err)
	return ok
}
