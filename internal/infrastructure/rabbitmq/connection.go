package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Channel is the subset of *amqp091.Channel used by this package.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type Connection struct {
	conn   *amqp091.Connection
	logger *zap.Logger
}

const dialAttempts = 5

// Dial connects with a linear backoff. The broker is often still starting
// when the services come up.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Connection, error) {
	var err error
	for i := 0; i < dialAttempts; i++ {
		var conn *amqp091.Connection
		conn, err = amqp091.Dial(url)
		if err == nil {
			logger.Info("rabbitmq connected")
			return &Connection{conn: conn, logger: logger}, nil
		}

		if i == dialAttempts-1 {
			break
		}
		wait := time.Duration(i+1) * 2 * time.Second
		logger.Warn("rabbitmq connection failed, retrying",
			zap.Error(err),
			zap.Duration("wait", wait),
			zap.Int("attempt", i+1),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connecting to rabbitmq after %d attempts: %w", dialAttempts, err)
}

// Channel opens a new channel. Publishers and consumers each get their own.
func (c *Connection) Channel() (*amqp091.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	return ch, nil
}

// NotifyClose returns a channel that receives the error when the connection drops.
func (c *Connection) NotifyClose() <-chan *amqp091.Error {
	return c.conn.NotifyClose(make(chan *amqp091.Error, 1))
}

func (c *Connection) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
