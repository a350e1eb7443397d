package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"comanda/internal/config"
	"comanda/internal/infrastructure/logger"
	"comanda/internal/infrastructure/rabbitmq"
)

var dlqServices []string

func init() {
	dlqCmd.Flags().StringSliceVar(&dlqServices, "service", []string{"order", "kitchen", "waiter"}, "services whose dead letter queues are drained")

	rootCmd.AddCommand(dlqCmd)
}

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Log and acknowledge dead letters",
	Long: `Drain the dead letter queues of the given services.

Every dead message is logged with its failure headers and acknowledged.
Nothing is replayed.

Examples:
  comanda dlq
  comanda dlq --service=kitchen`,
	RunE: runDLQ,
}

func runDLQ(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	zapLogger, err := logger.New(cfg.Log.Level, "dlq")
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer zapLogger.Sync()

	conn, err := rabbitmq.Dial(ctx, cfg.RabbitMQ.URL, zapLogger)
	if err != nil {
		return err
	}
	defer conn.Close()

	g, gctx := errgroup.WithContext(ctx)
	for _, service := range dlqServices {
		ch, err := conn.Channel()
		if err != nil {
			stop()
			g.Wait()
			return err
		}
		t := rabbitmq.Topology{
			Exchange:   cfg.RabbitMQ.Exchange,
			Service:    service,
			RetryDelay: cfg.RabbitMQ.RetryDelay,
		}
		if err := rabbitmq.Declare(ch, t); err != nil {
			stop()
			g.Wait()
			return err
		}

		consumer := rabbitmq.NewDLQConsumer(ch, t, zapLogger)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		zapLogger.Error("dead letter consumer stopped", zap.Error(err))
		return err
	}
	return nil
}
