package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"comanda/internal/events"
	"comanda/internal/infrastructure/metrics"
)

// Failure headers stamped on messages moved to the DLQ.
const (
	HeaderAttempts         = "x-attempts"
	HeaderOriginalQueue    = "x-original-queue"
	HeaderOriginalExchange = "x-original-exchange"
	HeaderFailureReason    = "x-failure-reason"
	HeaderFailedAt         = "x-failed-at"
)

// Consumer reads one service queue with manual acks. A failed delivery is
// rejected into the retry queue until its death count reaches MaxRetries,
// then it is published to the DLQ and acknowledged.
type Consumer struct {
	ch         Channel
	topology   Topology
	tag        string
	prefetch   int
	maxRetries int
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	publishMu sync.Mutex
}

type ConsumerConfig struct {
	Tag            string
	Prefetch       int
	MaxRetries     int
	PublishTimeout time.Duration
}

func NewConsumer(ch Channel, t Topology, cfg ConsumerConfig, logger *zap.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{
		ch:         ch,
		topology:   t,
		tag:        cfg.Tag,
		prefetch:   cfg.Prefetch,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.PublishTimeout,
		logger:     logger.With(zap.String("queue", t.Queue())),
		metrics:    m,
		now:        time.Now,
	}
}

// Run blocks until ctx is done or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context, handler events.HandlerFunc) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}

	msgs, err := c.ch.Consume(c.topology.Queue(), c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming %s: %w", c.topology.Queue(), err)
	}

	c.logger.Info("consumer started",
		zap.Int("prefetch", c.prefetch),
		zap.Int("maxRetries", c.maxRetries),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", c.topology.Queue())
			}
			// The handler gets a context detached from shutdown so an in-flight
			// message is settled before Run returns.
			c.Process(context.WithoutCancel(ctx), d, handler)
		}
	}
}

// Process settles a single delivery.
func (c *Consumer) Process(ctx context.Context, d amqp091.Delivery, handler events.HandlerFunc) {
	start := c.now()
	deliveries := DeathCount(d.Headers, c.topology.Queue())

	err := c.handle(ctx, d, handler)
	c.metrics.EventHandleDuration.WithLabelValues(c.topology.Queue()).Observe(c.now().Sub(start).Seconds())

	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("acking message", zap.Error(ackErr), zap.String("messageId", d.MessageId))
		}
		c.metrics.EventsConsumed.WithLabelValues(c.topology.Queue(), "ack").Inc()
		return
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("messageId", d.MessageId),
		zap.Int64("deathCount", deliveries),
		zap.Int("maxRetries", c.maxRetries),
	}

	if deliveries < int64(c.maxRetries) {
		c.logger.Warn("handler failed, scheduling retry", fields...)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("nacking message", zap.Error(nackErr), zap.String("messageId", d.MessageId))
		}
		c.metrics.EventsConsumed.WithLabelValues(c.topology.Queue(), "retry").Inc()
		return
	}

	c.logger.Error("retries exhausted, moving to dead letter queue", fields...)
	if dlqErr := c.deadLetter(ctx, d, deliveries+1, err); dlqErr != nil {
		// Leave it on the retry path; the next failure tries the DLQ again.
		c.logger.Error("publishing to dead letter queue", zap.Error(dlqErr), zap.String("messageId", d.MessageId))
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("nacking message", zap.Error(nackErr), zap.String("messageId", d.MessageId))
		}
		c.metrics.EventsConsumed.WithLabelValues(c.topology.Queue(), "retry").Inc()
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("acking message", zap.Error(ackErr), zap.String("messageId", d.MessageId))
	}
	c.metrics.EventsConsumed.WithLabelValues(c.topology.Queue(), "dlq").Inc()
}

func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery, handler events.HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	var env events.Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Pattern == "" {
		if p, ok := d.Headers["pattern"].(string); ok {
			env.Pattern = p
		}
	}

	return handler(ctx, events.Delivery{
		MessageID:   d.MessageId,
		Pattern:     env.Pattern,
		Data:        env.Data,
		Redelivered: d.Redelivered,
	})
}

func (c *Consumer) deadLetter(ctx context.Context, d amqp091.Delivery, attempts int64, cause error) error {
	headers := amqp091.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[HeaderAttempts] = attempts
	headers[HeaderOriginalQueue] = c.topology.Queue()
	headers[HeaderOriginalExchange] = c.topology.Exchange
	headers[HeaderFailureReason] = cause.Error()
	headers[HeaderFailedAt] = c.now().UTC().Format(time.RFC3339)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	return c.ch.PublishWithContext(ctx, c.topology.DLX(), c.topology.DLQ(), false, false, amqp091.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp091.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    d.Timestamp,
		Headers:      headers,
		Body:         d.Body,
	})
}

// DeathCount reads how many times the broker dead-lettered the message out of
// queue. It prefers the x-death entry for queue and falls back to the first one.
func DeathCount(headers amqp091.Table, queue string) int64 {
	deaths, ok := headers["x-death"].([]interface{})
	if !ok || len(deaths) == 0 {
		return 0
	}

	var first amqp091.Table
	for i, raw := range deaths {
		entry, ok := raw.(amqp091.Table)
		if !ok {
			continue
		}
		if i == 0 {
			first = entry
		}
		if q, _ := entry["queue"].(string); q == queue {
			return toInt64(entry["count"])
		}
	}
	if first == nil {
		return 0
	}
	return toInt64(first["count"])
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case int16:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
