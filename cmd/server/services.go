package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"comanda/internal/cart"
	"comanda/internal/events"
	"comanda/internal/infrastructure/natsbus"
	"comanda/internal/kitchen"
	"comanda/internal/order"
	"comanda/internal/rpc"
	"comanda/internal/server"
	"comanda/internal/waiter"
)

func init() {
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(kitchenCmd)
	rootCmd.AddCommand(waiterCmd)
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Run the order service",
	Long: `Run the order service: carts, checkout and the order item state machine.

Publishes order events and consumes payment.completed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("order", startOrder)
	},
}

var kitchenCmd = &cobra.Command{
	Use:   "kitchen",
	Short: "Run the kitchen service",
	Long: `Run the kitchen service: ticket projection, timers and the display API.

Consumes order events, reports item progress back to the order service and
pushes timer updates over NATS.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("kitchen", startKitchen)
	},
}

var waiterCmd = &cobra.Command{
	Use:   "waiter",
	Short: "Run the waiter notification service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("waiter", startWaiter)
	},
}

func startOrder(ctx context.Context, g *errgroup.Group, rt *runtime) error {
	publisher, err := rt.publisher()
	if err != nil {
		return err
	}
	consumer, err := rt.consumer()
	if err != nil {
		return err
	}

	carts := cart.NewStore(rt.db, rt.cfg.Cart)
	cartCtrl := cart.NewModule(carts, rt.logger)
	pricing := rpc.NewPricingClient(rt.rpcClient("catalog", rt.cfg.Services.CatalogURL))
	orders := order.NewModule(rt.db, rt.cfg, carts, pricing, publisher, rt.metrics, rt.logger)

	router := events.NewRouter(rt.logger)
	orders.Subscriber.Register(router)

	handler := server.NewRouter(rt.cfg, func(public, internal chi.Router) {
		cartCtrl.Routes(public)
		orders.Controller.Routes(public)
		orders.Controller.InternalRoutes(internal)
	})
	srv := server.New(rt.cfg.Server.Port, handler, rt.logger)

	g.Go(func() error { return consumer.Run(ctx, router.Dispatch) })
	g.Go(func() error { return srv.Run(ctx) })
	return nil
}

func startKitchen(ctx context.Context, g *errgroup.Group, rt *runtime) error {
	consumer, err := rt.consumer()
	if err != nil {
		return err
	}

	nc, err := natsbus.Connect(rt.cfg.NATS.URL, "comanda-kitchen", rt.logger)
	if err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		nc.Drain()
		return nil
	})

	orders := rpc.NewOrderClient(rt.rpcClient("order", rt.cfg.Services.OrderURL))
	tables := rpc.NewTableClient(rt.rpcClient("table", rt.cfg.Services.TableURL))
	module := kitchen.NewModule(rt.db, rt.cfg, orders, tables, natsbus.NewBroadcaster(nc, rt.logger), rt.metrics, rt.logger)

	router := events.NewRouter(rt.logger)
	module.Subscriber.Register(router)

	handler := server.NewRouter(rt.cfg, func(public, internal chi.Router) {
		module.Controller.Routes(public)
	})
	srv := server.New(rt.cfg.Server.Port, handler, rt.logger)

	g.Go(func() error { return consumer.Run(ctx, router.Dispatch) })
	g.Go(func() error { return module.Timer.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	return nil
}

func startWaiter(ctx context.Context, g *errgroup.Group, rt *runtime) error {
	consumer, err := rt.consumer()
	if err != nil {
		return err
	}

	module := waiter.NewModule(rt.db, rt.metrics, rt.logger)

	router := events.NewRouter(rt.logger)
	module.Subscriber.Register(router)

	handler := server.NewRouter(rt.cfg, func(public, internal chi.Router) {
		module.Controller.Routes(public)
	})
	srv := server.New(rt.cfg.Server.Port, handler, rt.logger)

	g.Go(func() error { return consumer.Run(ctx, router.Dispatch) })
	g.Go(func() error { return srv.Run(ctx) })
	return nil
}
