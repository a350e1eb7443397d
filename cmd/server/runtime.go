package main

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"comanda/internal/config"
	"comanda/internal/infrastructure/logger"
	"comanda/internal/infrastructure/metrics"
	"comanda/internal/infrastructure/mysql"
	"comanda/internal/infrastructure/rabbitmq"
	"comanda/internal/rpc"
)

// runtime holds what every service process shares.
type runtime struct {
	service string
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	db      *sql.DB
	broker  *rabbitmq.Connection
}

func bootstrap(ctx context.Context, service string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, service)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Sync()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	zapLogger.Info("database connected")

	broker, err := rabbitmq.Dial(ctx, cfg.RabbitMQ.URL, zapLogger)
	if err != nil {
		db.Close()
		zapLogger.Sync()
		return nil, err
	}

	return &runtime{
		service: service,
		cfg:     cfg,
		logger:  zapLogger,
		metrics: metrics.New(),
		db:      db,
		broker:  broker,
	}, nil
}

func (rt *runtime) Close() {
	if err := rt.broker.Close(); err != nil {
		rt.logger.Warn("closing rabbitmq connection", zap.Error(err))
	}
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("closing database", zap.Error(err))
	}
	rt.logger.Sync()
}

func (rt *runtime) topology(service string) rabbitmq.Topology {
	return rabbitmq.Topology{
		Exchange:   rt.cfg.RabbitMQ.Exchange,
		Service:    service,
		RetryDelay: rt.cfg.RabbitMQ.RetryDelay,
	}
}

func (rt *runtime) publisher() (*rabbitmq.Publisher, error) {
	ch, err := rt.broker.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(rt.cfg.RabbitMQ.Exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declaring exchange %s: %w", rt.cfg.RabbitMQ.Exchange, err)
	}
	return rabbitmq.NewPublisher(ch, rt.cfg.RabbitMQ.Exchange, rt.cfg.RabbitMQ.PublishTimeout, rt.logger, rt.metrics), nil
}

// consumer declares the service topology on a dedicated channel.
func (rt *runtime) consumer() (*rabbitmq.Consumer, error) {
	ch, err := rt.broker.Channel()
	if err != nil {
		return nil, err
	}
	t := rt.topology(rt.service)
	if err := rabbitmq.Declare(ch, t); err != nil {
		return nil, err
	}
	return rabbitmq.NewConsumer(ch, t, rabbitmq.ConsumerConfig{
		Tag:            rt.service,
		Prefetch:       rt.cfg.RabbitMQ.Prefetch,
		MaxRetries:     rt.cfg.RabbitMQ.MaxRetries,
		PublishTimeout: rt.cfg.RabbitMQ.PublishTimeout,
	}, rt.logger, rt.metrics), nil
}

func (rt *runtime) rpcClient(service, baseURL string) *rpc.Client {
	return rpc.NewClient(service, baseURL, rt.cfg.Services.APIKey, rt.cfg.Services.RPCTimeout, rt.logger, rt.metrics)
}

// watchBroker fails the group when RabbitMQ drops the connection so the
// orchestrator restarts the process.
func (rt *runtime) watchBroker(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-rt.broker.NotifyClose():
		if !ok || err == nil {
			return fmt.Errorf("rabbitmq connection closed")
		}
		return fmt.Errorf("rabbitmq connection lost: %w", err)
	}
}

// run supervises the service goroutines until a signal arrives or one of
// them fails.
func run(service string, start func(ctx context.Context, g *errgroup.Group, rt *runtime) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx, service)
	if err != nil {
		return err
	}
	defer rt.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.watchBroker(gctx) })
	if err := start(gctx, g, rt); err != nil {
		stop()
		g.Wait()
		return err
	}

	err = g.Wait()
	if err != nil {
		rt.logger.Error("service stopped", zap.Error(err))
		return err
	}
	rt.logger.Info("service stopped gracefully")
	return nil
}
