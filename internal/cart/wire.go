package cart

import (
	"database/sql"

	"go.uber.org/zap"

	"comanda/internal/cart/controller"
	"comanda/internal/cart/repository"
	"comanda/internal/cart/service"
	"comanda/internal/config"
	"comanda/internal/infrastructure/mysql"
)

// NewStore picks the cart backend from configuration.
func NewStore(db *sql.DB, cfg config.CartConfig) service.CartRepository {
	if cfg.Store == "memory" {
		return repository.NewMemoryCartRepository()
	}
	return repository.NewMySQLCartRepository(db, mysql.NewTransactor(db))
}

func NewModule(store service.CartRepository, logger *zap.Logger) *controller.CartController {
	svc := service.NewCartService(store, logger)
	return controller.NewCartController(svc, logger)
}
