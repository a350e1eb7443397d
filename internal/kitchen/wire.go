package kitchen

import (
	"database/sql"

	"go.uber.org/zap"

	"comanda/internal/config"
	"comanda/internal/infrastructure/metrics"
	"comanda/internal/infrastructure/mysql"
	"comanda/internal/infrastructure/natsbus"
	"comanda/internal/kitchen/controller"
	"comanda/internal/kitchen/repository"
	"comanda/internal/kitchen/service"
	"comanda/internal/kitchen/subscriber"
)

type Module struct {
	Controller *controller.TicketController
	Subscriber *subscriber.OrderSubscriber
	Timer      *service.Timer
}

// NewModule wires the kitchen projector. broadcaster may be nil, in which
// case timers are persisted but never pushed to displays.
func NewModule(
	db *sql.DB,
	cfg *config.Config,
	orders service.OrderStatusUpdater,
	tables service.TableDirectory,
	broadcaster *natsbus.Broadcaster,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Module {
	tx := mysql.NewTransactor(db)
	ticketRepo := repository.NewMySQLTicketRepository(db, tx)

	var numberer service.TicketNumberer
	if cfg.Kitchen.TicketNumbering == "memory" {
		numberer = repository.NewMemoryTicketNumberer()
	} else {
		numberer = repository.NewMySQLTicketNumberer(db)
	}

	ticketSvc := service.NewTicketService(tx, ticketRepo, numberer, orders, tables, cfg.Kitchen, logger)

	var (
		push service.Broadcaster
		feed controller.TimerFeed
	)
	if broadcaster != nil {
		push, feed = broadcaster, broadcaster
	}
	timer := service.NewTimer(ticketRepo, push, cfg.Kitchen.TickInterval, cfg.Kitchen.BroadcastInterval, m, logger)

	return &Module{
		Controller: controller.NewTicketController(ticketSvc, feed, logger),
		Subscriber: subscriber.NewOrderSubscriber(ticketSvc, logger),
		Timer:      timer,
	}
}
