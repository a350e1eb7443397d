package waiter

import (
	"database/sql"

	"go.uber.org/zap"

	"comanda/internal/infrastructure/metrics"
	"comanda/internal/waiter/controller"
	"comanda/internal/waiter/repository"
	"comanda/internal/waiter/service"
	"comanda/internal/waiter/subscriber"
)

type Module struct {
	Controller *controller.NotificationController
	Subscriber *subscriber.NewItemsSubscriber
}

func NewModule(db *sql.DB, m *metrics.Metrics, logger *zap.Logger) *Module {
	repo := repository.NewMySQLNotificationRepository(db)
	svc := service.NewNotificationService(repo, m, logger)

	return &Module{
		Controller: controller.NewNotificationController(svc, logger),
		Subscriber: subscriber.NewNewItemsSubscriber(svc, logger),
	}
}
