package order

import (
	"database/sql"

	"go.uber.org/zap"

	"comanda/internal/config"
	"comanda/internal/events"
	"comanda/internal/infrastructure/metrics"
	"comanda/internal/infrastructure/mysql"
	"comanda/internal/order/controller"
	orderrepo "comanda/internal/order/repository"
	"comanda/internal/order/service"
	"comanda/internal/order/subscriber"
	"comanda/internal/order/usecase"
)

type Module struct {
	Controller *controller.OrderController
	Subscriber *subscriber.PaymentSubscriber
}

func NewModule(
	db *sql.DB,
	cfg *config.Config,
	carts usecase.CartStore,
	pricing usecase.PricingOracle,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Module {
	tx := mysql.NewTransactor(db)
	orderItemRepo := orderrepo.NewMySQLOrderItemRepository(db)
	orderRepo := orderrepo.NewMySQLOrderRepository(db, orderItemRepo)
	tenantConfigRepo := orderrepo.NewMySQLTenantConfigRepository(db)

	var locker usecase.TableLocker
	if cfg.Order.TableLock == "memory" {
		locker = usecase.NewMemoryTableLocker(cfg.Order.TableLockTimeout)
	} else {
		locker = mysql.NewTableLocker(db, cfg.Order.TableLockTimeout, logger)
	}

	checkout := usecase.NewCheckoutUseCase(
		locker,
		carts,
		pricing,
		tenantConfigRepo,
		orderRepo,
		orderItemRepo,
		tx,
		publisher,
		m,
		logger,
		cfg.Order.DefaultTaxRate,
	)
	orderSvc := service.NewOrderService(tx, orderRepo, orderItemRepo, publisher, m, logger)

	return &Module{
		Controller: controller.NewOrderController(checkout, orderSvc, logger),
		Subscriber: subscriber.NewPaymentSubscriber(orderSvc, logger),
	}
}
